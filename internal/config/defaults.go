package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/sirupsen/logrus"

	"iscsidb/internal/codec"
	"iscsidb/internal/domain"
	"iscsidb/internal/recinfo"
)

// Defaults holds the record templates new records start from
type Defaults struct {
	Node        *domain.NodeRecord
	SendTargets *domain.DiscoveryRecord
	SLP         *domain.DiscoveryRecord
	ISNS        *domain.DiscoveryRecord
}

// BuildDefaults returns the hardcoded templates
func BuildDefaults() *Defaults {
	return &Defaults{
		Node:        domain.DefaultNode(),
		SendTargets: domain.DefaultDiscovery(domain.DiscoveryTypeSendTargets),
		SLP:         domain.DefaultDiscovery(domain.DiscoveryTypeSLP),
		ISNS:        domain.DefaultDiscovery(domain.DiscoveryTypeISNS),
	}
}

// Discovery returns the template for t
func (d *Defaults) Discovery(t domain.DiscoveryType) (*domain.DiscoveryRecord, bool) {
	switch t {
	case domain.DiscoveryTypeSendTargets:
		return d.SendTargets, true
	case domain.DiscoveryTypeSLP:
		return d.SLP, true
	case domain.DiscoveryTypeISNS:
		return d.ISNS, true
	}
	return nil, false
}

// LoadDefaults builds the hardcoded templates and applies the iscsid.conf
// at path to each of them. A missing file leaves the hardcoded values.
//
// The file mixes node.* and discovery.* parameters; every template takes
// what it recognizes. The three discovery templates share the
// discovery.startup and discovery.type names, so each template keeps its
// own type whatever the file says.
func LoadDefaults(path string, log logrus.FieldLogger) (*Defaults, error) {
	d := BuildDefaults()

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		log.WithField("path", path).Debug("no iscsid config, using built-in defaults")
		return d, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	text := string(data)

	nodeFields, err := recinfo.Node(d.Node)
	if err != nil {
		return nil, fmt.Errorf("failed to describe node defaults: %w", err)
	}
	n := codec.Apply(text, nodeFields, log)

	for _, rec := range []*domain.DiscoveryRecord{d.SendTargets, d.SLP, d.ISNS} {
		typ := rec.Type
		fields, err := recinfo.Discovery(rec)
		if err != nil {
			return nil, fmt.Errorf("failed to describe %s defaults: %w", typ, err)
		}
		n += codec.Apply(text, fields, log)
		rec.Type = typ
	}

	d.Node.Session.Auth.SyncPasswordLengths()
	d.SendTargets.SendTargets.Auth.SyncPasswordLengths()
	d.SLP.SLP.Auth.SyncPasswordLengths()

	log.WithFields(logrus.Fields{"path": path, "updated": n}).Debug("loaded iscsid config")
	return d, nil
}
