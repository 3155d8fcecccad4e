// Package recinfo builds generic field views over discovery and node records.
//
// A view is an ordered []Field: one entry per printable parameter, carrying
// its dotted name (for example "node.session.iscsi.FirstBurstLength"), a
// type tag, a visibility, a text snapshot of the current value and an
// accessor that reads and writes the owning record. The text codec and the
// print paths work on views only, never on record structs.
//
// Builders are deterministic: two records of the same shape (same type, same
// active connection count) always yield views with identical names in
// identical order.
package recinfo

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"iscsidb/internal/domain"
)

// MaxFields bounds the size of one view
const MaxFields = 256

// UnsetMarker is shown for empty string values
const UnsetMarker = "<empty>"

// ErrTooManyFields is returned when a view would exceed MaxFields
var ErrTooManyFields = errors.New("record view exceeds field limit")

// Type tags the value kind of a field
type Type int

const (
	TypeString Type = iota
	TypeInt
	TypeEnum
)

// Visibility controls how a field is printed and whether text may set it
type Visibility int

const (
	Hidden  Visibility = iota // never printed, not settable from text
	Visible                   // printed as is
	Masked                    // printed as asterisks, settable from text
)

// Option labels shared by several fields
var (
	startupOptions = []string{"manual", "automatic"}
	typeOptions    = []string{"sendtargets", "slp", "isns"}
	authOptions    = []string{"None", "CHAP"}
	yesNoOptions   = []string{"No", "Yes"}
	digestOptions  = []string{"None", "CRC32C", "CRC32C,None", "None,CRC32C"}
)

// Field is a named, typed view of one record parameter
type Field struct {
	Name       string
	Type       Type
	Visibility Visibility
	// Value is the text form of the field, refreshed on every Set*
	Value string
	// Options lists enum labels, indexed by value
	Options []string
	// MaxLen bounds string values
	MaxLen int

	bounded  bool
	min, max int

	getStr func() string
	setStr func(string)
	getInt func() int
	setInt func(int)
}

// Settable reports whether text input may change the field
func (f *Field) Settable() bool {
	return f.Visibility != Hidden
}

// Str returns the current string value
func (f *Field) Str() string {
	if f.getStr == nil {
		return ""
	}
	return f.getStr()
}

// Int returns the current integer (or enum index) value
func (f *Field) Int() int {
	if f.getInt == nil {
		return 0
	}
	return f.getInt()
}

// IsEmpty reports whether the underlying value is unset
func (f *Field) IsEmpty() bool {
	if f.Type == TypeString {
		return f.Str() == ""
	}
	return f.Int() == 0
}

// SetString stores s, truncated to MaxLen
func (f *Field) SetString(s string) error {
	if f.Type != TypeString {
		return fmt.Errorf("field %s is not a string", f.Name)
	}
	f.setStr(domain.Truncate(s, f.MaxLen))
	f.snapshot()
	return nil
}

// SetInt stores n, rejecting values outside the field's bounds
func (f *Field) SetInt(n int) error {
	if f.Type == TypeString {
		return fmt.Errorf("field %s is not an integer", f.Name)
	}
	if f.Type == TypeEnum && (n < 0 || n >= len(f.Options)) {
		return fmt.Errorf("field %s: option index %d out of range", f.Name, n)
	}
	if f.bounded && (n < f.min || n > f.max) {
		return fmt.Errorf("field %s: %d out of range %d..%d", f.Name, n, f.min, f.max)
	}
	f.setInt(n)
	f.snapshot()
	return nil
}

// SetOption stores the index of label. It reports false when label is not
// one of the field's options.
func (f *Field) SetOption(label string) bool {
	if f.Type != TypeEnum {
		return false
	}
	for i, opt := range f.Options {
		if opt == label {
			f.setInt(i)
			f.snapshot()
			return true
		}
	}
	return false
}

func (f *Field) snapshot() {
	switch f.Type {
	case TypeString:
		if v := f.getStr(); v != "" {
			f.Value = v
		} else {
			f.Value = UnsetMarker
		}
	case TypeInt:
		f.Value = strconv.Itoa(f.getInt())
	case TypeEnum:
		v := f.getInt()
		if v >= 0 && v < len(f.Options) {
			f.Value = f.Options[v]
		} else {
			f.Value = strconv.Itoa(v)
		}
	}
}

// builder accumulates fields and remembers the first error
type builder struct {
	fields []Field
	err    error
}

func newBuilder() *builder {
	return &builder{fields: make([]Field, 0, 64)}
}

func (b *builder) add(f Field) {
	if b.err != nil {
		return
	}
	if len(b.fields) >= MaxFields {
		b.err = fmt.Errorf("%w (%d)", ErrTooManyFields, MaxFields)
		return
	}
	f.snapshot()
	b.fields = append(b.fields, f)
}

func (b *builder) str(name string, vis Visibility, max int, p *string) {
	b.add(Field{
		Name:       name,
		Type:       TypeString,
		Visibility: vis,
		MaxLen:     max,
		getStr:     func() string { return *p },
		setStr:     func(s string) { *p = s },
	})
}

func (b *builder) list(name string, p *[]string) {
	b.add(Field{
		Name:       name,
		Type:       TypeString,
		Visibility: Visible,
		MaxLen:     domain.ValueMaxLen,
		getStr:     func() string { return strings.Join(*p, ",") },
		setStr: func(s string) {
			*p = nil
			for _, item := range strings.Split(s, ",") {
				if item = strings.TrimSpace(item); item != "" {
					*p = append(*p, item)
				}
			}
		},
	})
}

func intAccessors[T ~int](p *T) (func() int, func(int)) {
	return func() int { return int(*p) }, func(n int) { *p = T(n) }
}

func num[T ~int](b *builder, name string, vis Visibility, p *T) {
	get, set := intAccessors(p)
	b.add(Field{Name: name, Type: TypeInt, Visibility: vis, getInt: get, setInt: set})
}

func bounded[T ~int](b *builder, name string, p *T, min, max int) {
	get, set := intAccessors(p)
	b.add(Field{
		Name:       name,
		Type:       TypeInt,
		Visibility: Visible,
		bounded:    true,
		min:        min,
		max:        max,
		getInt:     get,
		setInt:     set,
	})
}

func enum[T ~int](b *builder, name string, p *T, opts []string) {
	get, set := intAccessors(p)
	b.add(Field{
		Name:       name,
		Type:       TypeEnum,
		Visibility: Visible,
		Options:    opts,
		getInt:     get,
		setInt:     set,
	})
}

func (b *builder) auth(prefix string, a *domain.AuthConfig) {
	enum(b, prefix+".authmethod", &a.Method, authOptions)
	b.str(prefix+".username", Visible, domain.AuthStrMaxLen, &a.Username)
	b.str(prefix+".password", Masked, domain.AuthStrMaxLen, &a.Password)
	num(b, prefix+".password_length", Hidden, &a.PasswordLength)
	b.str(prefix+".username_in", Visible, domain.AuthStrMaxLen, &a.UsernameIn)
	b.str(prefix+".password_in", Masked, domain.AuthStrMaxLen, &a.PasswordIn)
	num(b, prefix+".password_length_in", Hidden, &a.PasswordLengthIn)
}

func (b *builder) timeouts(prefix string, t *domain.ConnTimeouts) {
	num(b, prefix+".login_timeout", Visible, &t.Login)
	num(b, prefix+".auth_timeout", Visible, &t.Auth)
	num(b, prefix+".active_timeout", Visible, &t.Active)
	num(b, prefix+".idle_timeout", Visible, &t.Idle)
	num(b, prefix+".ping_timeout", Visible, &t.Ping)
}

func (b *builder) result() ([]Field, error) {
	if b.err != nil {
		return nil, b.err
	}
	return b.fields, nil
}

// Discovery builds the view of a discovery record. The shape follows rec.Type.
func Discovery(rec *domain.DiscoveryRecord) ([]Field, error) {
	b := newBuilder()

	enum(b, "discovery.startup", &rec.Startup, startupOptions)
	enum(b, "discovery.type", &rec.Type, typeOptions)

	switch rec.Type {
	case domain.DiscoveryTypeSendTargets:
		st := &rec.SendTargets
		b.str("discovery.sendtargets.address", Visible, domain.AddressMaxLen, &st.Address)
		num(b, "discovery.sendtargets.port", Visible, &st.Port)
		num(b, "discovery.sendtargets.continuous", Visible, &st.Continuous)
		num(b, "discovery.sendtargets.send_async_text", Visible, &st.SendAsyncText)
		b.auth("discovery.sendtargets.auth", &st.Auth)
		b.timeouts("discovery.sendtargets.timeo", &st.Timeouts)
	case domain.DiscoveryTypeSLP:
		slp := &rec.SLP
		b.list("discovery.slp.interfaces", &slp.Interfaces)
		b.list("discovery.slp.scopes", &slp.Scopes)
		num(b, "discovery.slp.poll_interval", Visible, &slp.PollInterval)
		b.auth("discovery.slp.auth", &slp.Auth)
	case domain.DiscoveryTypeISNS:
		// no parameters yet
	}

	return b.result()
}

// Node builds the view of a node record, with one group of connection
// fields per active connection slot.
func Node(rec *domain.NodeRecord) ([]Field, error) {
	if err := rec.Validate(); err != nil {
		return nil, err
	}

	b := newBuilder()

	b.str("node.name", Visible, domain.TargetNameMaxLen, &rec.Name)
	num(b, "node.tpgt", Visible, &rec.TPGT)
	bounded(b, "node.active_cnx", &rec.ActiveConns, 1, domain.ConnMax)
	enum(b, "node.startup", &rec.Startup, startupOptions)

	s := &rec.Session
	num(b, "node.session.initial_cmdsn", Visible, &s.InitialCmdSN)
	b.auth("node.session.auth", &s.Auth)
	num(b, "node.session.timeo.replacement_timeout", Visible, &s.ReplacementTimeout)
	num(b, "node.session.err_timeo.abort_timeout", Visible, &s.AbortTimeout)
	num(b, "node.session.err_timeo.reset_timeout", Visible, &s.ResetTimeout)
	enum(b, "node.session.iscsi.InitialR2T", &s.ISCSI.InitialR2T, yesNoOptions)
	enum(b, "node.session.iscsi.ImmediateData", &s.ISCSI.ImmediateData, yesNoOptions)
	num(b, "node.session.iscsi.FirstBurstLength", Visible, &s.ISCSI.FirstBurstLength)
	num(b, "node.session.iscsi.MaxBurstLength", Visible, &s.ISCSI.MaxBurstLength)
	num(b, "node.session.iscsi.DefaultTime2Retain", Visible, &s.ISCSI.DefaultTime2Retain)
	num(b, "node.session.iscsi.DefaultTime2Wait", Visible, &s.ISCSI.DefaultTime2Wait)
	num(b, "node.session.iscsi.MaxConnections", Visible, &s.ISCSI.MaxConnections)

	for i := 0; i < rec.ActiveConns; i++ {
		c := &rec.Conns[i]
		prefix := fmt.Sprintf("node.cnx[%d]", i)
		b.str(prefix+".address", Visible, domain.AddressMaxLen, &c.Address)
		num(b, prefix+".port", Visible, &c.Port)
		enum(b, prefix+".startup", &c.Startup, startupOptions)
		num(b, prefix+".tcp.window_size", Visible, &c.TCP.WindowSize)
		num(b, prefix+".tcp.type_of_service", Visible, &c.TCP.TypeOfService)
		b.timeouts(prefix+".timeo", &c.Timeouts)
		num(b, prefix+".iscsi.MaxRecvDataSegmentLength", Visible, &c.ISCSI.MaxRecvDataSegmentLength)
		enum(b, prefix+".iscsi.HeaderDigest", &c.ISCSI.HeaderDigest, digestOptions)
		enum(b, prefix+".iscsi.DataDigest", &c.ISCSI.DataDigest, digestOptions)
	}

	return b.result()
}

// Lookup returns the field with the given name
func Lookup(fields []Field, name string) (*Field, bool) {
	for i := range fields {
		if fields[i].Name == name {
			return &fields[i], true
		}
	}
	return nil, false
}
