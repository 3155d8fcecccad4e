package domain

// Built-in record templates, used when no config file overrides them.
const (
	defaultAbortTimeout       = 10
	defaultResetTimeout       = 30
	defaultFirstBurstLength   = 256 * 1024
	defaultMaxBurstLength     = 16*1024*1024 - 1024
	defaultWindowSize         = 256 * 1024
	defaultMaxRecvDataSegment = 128 * 1024
	defaultSLPPollInterval    = 5 * 60
)

func defaultConnTimeouts() ConnTimeouts {
	return ConnTimeouts{
		Login:  15,
		Auth:   45,
		Active: 5,
		Idle:   60,
		Ping:   5,
	}
}

// DefaultNode returns the node template
func DefaultNode() *NodeRecord {
	rec := &NodeRecord{
		ActiveConns: 1, // at least one connection must exist
		Session: SessionConfig{
			AbortTimeout: defaultAbortTimeout,
			ResetTimeout: defaultResetTimeout,
			ISCSI: SessionParams{
				InitialR2T:       0,
				ImmediateData:    1,
				FirstBurstLength: defaultFirstBurstLength,
				MaxBurstLength:   defaultMaxBurstLength,
				MaxConnections:   1,
			},
		},
	}

	for i := range rec.Conns {
		rec.Conns[i] = ConnConfig{
			Startup:  StartupManual,
			TCP:      TCPConfig{WindowSize: defaultWindowSize},
			Timeouts: defaultConnTimeouts(),
			ISCSI: ConnParams{
				MaxRecvDataSegmentLength: defaultMaxRecvDataSegment,
				HeaderDigest:             DigestNone,
				DataDigest:               DigestNone,
			},
		}
	}

	return rec
}

// DefaultDiscovery returns the discovery template for the given type
func DefaultDiscovery(t DiscoveryType) *DiscoveryRecord {
	rec := &DiscoveryRecord{
		Startup: StartupManual,
		Type:    t,
	}

	switch t {
	case DiscoveryTypeSendTargets:
		rec.SendTargets.Timeouts = defaultConnTimeouts()
	case DiscoveryTypeSLP:
		rec.SLP.PollInterval = defaultSLPPollInterval
	case DiscoveryTypeISNS:
		// reserved
	}

	return rec
}
