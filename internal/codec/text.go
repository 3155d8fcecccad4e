package codec

import (
	"strings"

	"github.com/sirupsen/logrus"

	"iscsidb/internal/recinfo"
)

// MaskedValue replaces a non-empty secret in every printed form
const MaskedValue = "********"

// DisplayValue returns the printable value of a field. Masked fields never
// reveal their content.
func DisplayValue(f *recinfo.Field) string {
	if f.Visibility == recinfo.Masked {
		if f.Str() != "" {
			return MaskedValue
		}
		return recinfo.UnsetMarker
	}
	return f.Value
}

// Format renders the printable fields as "name = value" lines
func Format(fields []recinfo.Field) string {
	var sb strings.Builder
	for i := range fields {
		f := &fields[i]
		if f.Visibility == recinfo.Hidden {
			continue
		}
		sb.WriteString(f.Name)
		sb.WriteString(" = ")
		sb.WriteString(DisplayValue(f))
		sb.WriteByte('\n')
	}
	return sb.String()
}

// ParseInt reads the leading base-10 digits of s. Input without digits
// yields 0.
func ParseInt(s string) int {
	s = strings.TrimSpace(s)
	neg := false
	if s != "" && (s[0] == '-' || s[0] == '+') {
		neg = s[0] == '-'
		s = s[1:]
	}
	n := 0
	for i := 0; i < len(s) && s[i] >= '0' && s[i] <= '9'; i++ {
		n = n*10 + int(s[i]-'0')
	}
	if neg {
		return -n
	}
	return n
}

const spaceChars = " \t\r\v\f"

func isSpace(c byte) bool {
	return strings.IndexByte(spaceChars, c) >= 0
}

// splitLine parses "name = value". The second result names the problem when
// the line is malformed.
func splitLine(line string) (name, value, problem string) {
	i := 0
	for i < len(line) && !isSpace(line[i]) && line[i] != '=' {
		i++
	}
	name = line[:i]
	if i == len(line) {
		return "", "", "has no value"
	}
	for i < len(line) && isSpace(line[i]) {
		i++
	}
	if i == len(line) || line[i] != '=' {
		return "", "", "has no '=' separator"
	}
	i++
	for i < len(line) && isSpace(line[i]) {
		i++
	}
	if i == len(line) {
		return "", "", "has no value"
	}
	return name, line[i:], ""
}

// Apply parses config text and stores every recognized value into fields.
// Problems are logged and skipped, so Apply never fails. It returns the
// number of fields updated.
func Apply(text string, fields []recinfo.Field, log logrus.FieldLogger) int {
	updated := 0
	lines := strings.Split(text, "\n")

	for n, raw := range lines {
		lineNo := n + 1
		last := n == len(lines)-1
		if last {
			// text ending in "\n" leaves an empty tail, anything else is
			// a final line without a terminator
			if raw != "" {
				log.Warnf("config line %d is not newline-terminated, skipped", lineNo)
			}
			break
		}

		line := strings.Trim(raw, spaceChars)
		if line == "" || line[0] == '#' {
			continue
		}

		name, value, problem := splitLine(line)
		if problem != "" {
			log.Warnf("config line %d %s", lineNo, problem)
			continue
		}

		f, ok := lookupSettable(fields, name)
		if !ok {
			log.Debugf("config line %d: no parameter %q in this record", lineNo, name)
			continue
		}

		if applyValue(f, value, lineNo, log) {
			updated++
		}
	}

	return updated
}

func lookupSettable(fields []recinfo.Field, name string) (*recinfo.Field, bool) {
	for i := range fields {
		if fields[i].Settable() && fields[i].Name == name {
			return &fields[i], true
		}
	}
	return nil, false
}

func applyValue(f *recinfo.Field, value string, lineNo int, log logrus.FieldLogger) bool {
	old := DisplayValue(f)
	switch f.Type {
	case recinfo.TypeInt:
		if err := f.SetInt(ParseInt(value)); err != nil {
			log.Warnf("config line %d: %v", lineNo, err)
			return false
		}
	case recinfo.TypeString:
		if value == recinfo.UnsetMarker {
			value = ""
		}
		if err := f.SetString(value); err != nil {
			log.Warnf("config line %d: %v", lineNo, err)
			return false
		}
	case recinfo.TypeEnum:
		if !f.SetOption(value) {
			log.Warnf("config line %d contains unknown value format %q for parameter name %q",
				lineNo, value, f.Name)
			return false
		}
	}

	log.WithField("param", f.Name).Debugf("updated, old value %s new value %s", old, DisplayValue(f))
	return true
}
