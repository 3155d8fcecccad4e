package domain

import (
	"errors"
	"fmt"
)

const (
	// ConnMax is the number of connection slots carried by every node record
	ConnMax = 8

	// HashMaxLen bounds the length of a record hash key
	HashMaxLen = 64
	// AddressMaxLen bounds portal addresses (fits an IPv6 literal)
	AddressMaxLen = 64
	// TargetNameMaxLen bounds iSCSI target names
	TargetNameMaxLen = 224
	// AuthStrMaxLen bounds CHAP usernames and secrets
	AuthStrMaxLen = 256
	// ValueMaxLen bounds any other string value set from text
	ValueMaxLen = 256
)

// ErrInvalidConnCount is returned when a node declares an unusable number of connections
var ErrInvalidConnCount = errors.New("active connection count out of range")

// Startup selects whether a record is brought up by hand or at boot
type Startup int

const (
	StartupManual Startup = iota
	StartupAutomatic
)

// DiscoveryType selects the discovery mechanism of a discovery record
type DiscoveryType int

const (
	DiscoveryTypeSendTargets DiscoveryType = iota
	DiscoveryTypeSLP
	DiscoveryTypeISNS
)

// String returns the protocol name of the discovery type
func (t DiscoveryType) String() string {
	switch t {
	case DiscoveryTypeSendTargets:
		return "sendtargets"
	case DiscoveryTypeSLP:
		return "slp"
	case DiscoveryTypeISNS:
		return "isns"
	default:
		return fmt.Sprintf("type(%d)", int(t))
	}
}

// AuthMethod selects the login authentication method
type AuthMethod int

const (
	AuthMethodNone AuthMethod = iota
	AuthMethodCHAP
)

// Digest is a header or data digest preference, in negotiation order
type Digest int

const (
	DigestNone Digest = iota
	DigestCRC32C
	DigestCRC32CNone
	DigestNoneCRC32C
)

// AuthConfig holds CHAP credentials for both directions
type AuthConfig struct {
	Method           AuthMethod
	Username         string
	Password         string
	PasswordLength   int
	UsernameIn       string
	PasswordIn       string
	PasswordLengthIn int
}

// SyncPasswordLengths recomputes the cached password lengths from the secrets
func (a *AuthConfig) SyncPasswordLengths() {
	a.PasswordLength = len(a.Password)
	a.PasswordLengthIn = len(a.PasswordIn)
}

// ConnTimeouts are per-connection timeouts, in seconds
type ConnTimeouts struct {
	Login  int
	Auth   int
	Active int
	Idle   int
	Ping   int
}

// SendTargetsConfig is the payload of a sendtargets discovery record
type SendTargetsConfig struct {
	Address       string
	Port          int
	Continuous    int
	SendAsyncText int
	Auth          AuthConfig
	Timeouts      ConnTimeouts
}

// SLPConfig is the payload of an SLP discovery record
type SLPConfig struct {
	Interfaces   []string
	Scopes       []string
	PollInterval int
	Auth         AuthConfig
}

// ISNSConfig is reserved for iSNS discovery
type ISNSConfig struct{}

// DiscoveryRecord describes how to locate iSCSI targets.
// Only the payload selected by Type is meaningful.
type DiscoveryRecord struct {
	ID          uint32
	Startup     Startup
	Type        DiscoveryType
	SendTargets SendTargetsConfig
	SLP         SLPConfig
	ISNS        ISNSConfig
}

// Clone returns a deep copy of the record
func (r *DiscoveryRecord) Clone() *DiscoveryRecord {
	c := *r
	c.SLP.Interfaces = append([]string(nil), r.SLP.Interfaces...)
	c.SLP.Scopes = append([]string(nil), r.SLP.Scopes...)
	return &c
}

// SessionParams are the negotiated session-wide iSCSI parameters
type SessionParams struct {
	InitialR2T         int
	ImmediateData      int
	FirstBurstLength   int
	MaxBurstLength     int
	DefaultTime2Wait   int
	DefaultTime2Retain int
	MaxConnections     int
}

// SessionConfig is the session block of a node record
type SessionConfig struct {
	InitialCmdSN       int
	Auth               AuthConfig
	ReplacementTimeout int
	AbortTimeout       int
	ResetTimeout       int
	ISCSI              SessionParams
}

// TCPConfig holds socket tuning for a connection
type TCPConfig struct {
	WindowSize    int
	TypeOfService int
}

// ConnParams are the negotiated per-connection iSCSI parameters
type ConnParams struct {
	MaxRecvDataSegmentLength int
	HeaderDigest             Digest
	DataDigest               Digest
}

// ConnConfig is one connection slot of a node record
type ConnConfig struct {
	Address  string
	Port     int
	Startup  Startup
	TCP      TCPConfig
	Timeouts ConnTimeouts
	ISCSI    ConnParams
}

// NodeRecord describes one target endpoint with its session and connection tuning
type NodeRecord struct {
	ID          uint32
	Name        string
	TPGT        int
	Startup     Startup
	ActiveConns int
	Session     SessionConfig
	Conns       [ConnMax]ConnConfig
}

// Validate checks the structural invariants of the record
func (r *NodeRecord) Validate() error {
	if r.ActiveConns < 1 || r.ActiveConns > ConnMax {
		return fmt.Errorf("%w: %d (want 1..%d)", ErrInvalidConnCount, r.ActiveConns, ConnMax)
	}
	return nil
}

// Portal returns the primary connection's address and port
func (r *NodeRecord) Portal() (string, int) {
	return r.Conns[0].Address, r.Conns[0].Port
}

// Truncate cuts s to at most n bytes
func Truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
