package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"

	"iscsidb/internal/codec"
	"iscsidb/internal/config"
	"iscsidb/internal/domain"
	"iscsidb/internal/repository"
	"iscsidb/internal/repository/sqlite"
)

// Options configures Open
type Options struct {
	// ConfigFile is the iscsid.conf that overrides the built-in templates.
	// A missing file is not an error.
	ConfigFile string
	// DiscoveryPath and NodePath locate the two tables
	DiscoveryPath string
	NodePath      string

	// Logger defaults to the logrus standard logger
	Logger logrus.FieldLogger
	// Output receives printed records, os.Stdout when nil
	Output io.Writer
	// EventBus receives change events; a private bus is created when nil
	EventBus *EventBus
}

// DB is an open record database
type DB struct {
	configFile string
	log        logrus.FieldLogger
	out        io.Writer
	events     *EventBus

	discovery repository.Table
	nodes     repository.Table

	mu       sync.RWMutex
	defaults *config.Defaults
}

// Open loads the record templates and opens (creating if needed) both tables
func Open(opts Options) (*DB, error) {
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	events := opts.EventBus
	if events == nil {
		events = NewEventBus()
	}

	defaults, err := config.LoadDefaults(opts.ConfigFile, log)
	if err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	discovery, err := sqlite.Open(opts.DiscoveryPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open discovery table: %w", err)
	}
	nodes, err := sqlite.Open(opts.NodePath)
	if err != nil {
		discovery.Close()
		return nil, fmt.Errorf("failed to open node table: %w", err)
	}

	return &DB{
		configFile: opts.ConfigFile,
		log:        log,
		out:        out,
		events:     events,
		discovery:  discovery,
		nodes:      nodes,
		defaults:   defaults,
	}, nil
}

// Close releases both tables
func (db *DB) Close() error {
	return errors.Join(db.discovery.Close(), db.nodes.Close())
}

// Events returns the handle's event bus
func (db *DB) Events() *EventBus {
	return db.events
}

// SyncDefaults rebuilds the record templates from the config file
func (db *DB) SyncDefaults() error {
	defaults, err := config.LoadDefaults(db.configFile, db.log)
	if err != nil {
		return fmt.Errorf("failed to reload defaults: %w", err)
	}

	db.mu.Lock()
	db.defaults = defaults
	db.mu.Unlock()

	db.events.Publish(Event{
		Type:    EventDefaultsReloaded,
		Payload: map[string]string{"path": db.configFile},
	})
	return nil
}

// NodeDefaults returns a copy of the node template
func (db *DB) NodeDefaults() domain.NodeRecord {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return *db.defaults.Node
}

// DiscoveryDefaults returns a copy of the discovery template for t
func (db *DB) DiscoveryDefaults(t domain.DiscoveryType) (*domain.DiscoveryRecord, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	rec, ok := db.defaults.Discovery(t)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedDiscoveryType, t)
	}
	return rec.Clone(), nil
}

// SendTargetsDefaults returns a copy of the sendtargets template payload
func (db *DB) SendTargetsDefaults() domain.SendTargetsConfig {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.defaults.SendTargets.SendTargets
}

// SLPDefaults returns a copy of the SLP template payload
func (db *DB) SLPDefaults() domain.SLPConfig {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.defaults.SLP.Clone().SLP
}

func decodeDiscovery(key string, value []byte) (*domain.DiscoveryRecord, error) {
	var rec domain.DiscoveryRecord
	if err := codec.Unmarshal(value, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode discovery record %q: %w", key, err)
	}
	return &rec, nil
}

func decodeNode(key string, value []byte) (*domain.NodeRecord, error) {
	var rec domain.NodeRecord
	if err := codec.Unmarshal(value, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode node record %q: %w", key, err)
	}
	return &rec, nil
}

// ReadDiscovery returns the discovery record with short id id, or
// repository.ErrNotFound
func (db *DB) ReadDiscovery(ctx context.Context, id uint32) (*domain.DiscoveryRecord, error) {
	key, value, err := repository.GetByID(ctx, db.discovery, id)
	if err != nil {
		return nil, err
	}
	return decodeDiscovery(key, value)
}

// ReadNode returns the node record with short id id, or
// repository.ErrNotFound
func (db *DB) ReadNode(ctx context.Context, id uint32) (*domain.NodeRecord, error) {
	key, value, err := repository.GetByID(ctx, db.nodes, id)
	if err != nil {
		return nil, err
	}
	return decodeNode(key, value)
}

// WriteNode replaces the node record stored under short id id. The record
// keeps its key; rec.ID is set from it.
func (db *DB) WriteNode(ctx context.Context, id uint32, rec *domain.NodeRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	key, _, err := repository.GetByID(ctx, db.nodes, id)
	if err != nil {
		return err
	}

	rec.ID = domain.UniqueID(key)
	err = repository.WithLock(db.nodes, func() error {
		return db.put(ctx, db.nodes, key, rec)
	})
	if err != nil {
		db.log.WithFields(logrus.Fields{"table": "node", "key": key}).WithError(err).Error("can not write record")
		return err
	}

	db.events.Publish(Event{
		Type:    EventNodeUpdated,
		Payload: map[string]string{"key": key, "id": domain.FormatID(rec.ID)},
	})
	return nil
}

// AddDiscovery merges rec into the stored record with the same key, or
// stores it as a new record. rec.ID is set from the key.
func (db *DB) AddDiscovery(ctx context.Context, rec *domain.DiscoveryRecord) error {
	key, err := domain.HashKeyDiscovery(rec)
	if err != nil {
		return err
	}
	id := domain.UniqueID(key)
	log := db.log.WithFields(logrus.Fields{"table": "discovery", "key": key, "id": domain.FormatID(id)})

	existed := false
	err = repository.WithLock(db.discovery, func() error {
		stored := rec.Clone()

		value, err := db.discovery.Get(ctx, key)
		switch {
		case err == nil:
			if stored, err = decodeDiscovery(key, value); err != nil {
				return err
			}
			stored.Merge(rec)
			existed = true
			log.Debug("updating existing record")
		case errors.Is(err, repository.ErrNotFound):
			log.Debug("adding new record")
		default:
			return err
		}

		stored.ID = id
		return db.put(ctx, db.discovery, key, stored)
	})
	if err != nil {
		log.WithError(err).Error("can not update record")
		return err
	}

	rec.ID = id
	db.publishUpsert(EventDiscoveryAdded, EventDiscoveryUpdated, existed, key, id)
	return nil
}

// AddNode merges rec into the stored node with the same key, or stores it
// as a new record. With a non-nil drec the node is keyed under that
// discovery record. rec.ID is set from the key.
func (db *DB) AddNode(ctx context.Context, drec *domain.DiscoveryRecord, rec *domain.NodeRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	key, err := domain.HashKeyNode(drec, rec)
	if err != nil {
		return err
	}
	id := domain.UniqueID(key)
	log := db.log.WithFields(logrus.Fields{"table": "node", "key": key, "id": domain.FormatID(id)})

	existed := false
	err = repository.WithLock(db.nodes, func() error {
		stored := *rec

		value, err := db.nodes.Get(ctx, key)
		switch {
		case err == nil:
			prev, err := decodeNode(key, value)
			if err != nil {
				return err
			}
			prev.Merge(rec)
			stored = *prev
			existed = true
			log.Debug("updating existing record")
		case errors.Is(err, repository.ErrNotFound):
			log.Debug("adding new record")
		default:
			return err
		}

		stored.ID = id
		return db.put(ctx, db.nodes, key, &stored)
	})
	if err != nil {
		log.WithError(err).Error("can not update record")
		return err
	}

	rec.ID = id
	db.publishUpsert(EventNodeAdded, EventNodeUpdated, existed, key, id)
	return nil
}

// put encodes and stores rec; the caller holds t's lock
func (db *DB) put(ctx context.Context, t repository.Table, key string, rec any) error {
	value, err := codec.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode record %q: %w", key, err)
	}
	return t.Put(ctx, key, value)
}

func (db *DB) publishUpsert(added, updated EventType, existed bool, key string, id uint32) {
	typ := added
	if existed {
		typ = updated
	}
	db.events.Publish(Event{
		Type:    typ,
		Payload: map[string]string{"key": key, "id": domain.FormatID(id)},
	})
}
