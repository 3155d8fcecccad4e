package service

import (
	"context"
	"errors"
	"fmt"
	"io"

	"iscsidb/internal/codec"
	"iscsidb/internal/domain"
	"iscsidb/internal/loader"
	"iscsidb/internal/recinfo"
	"iscsidb/internal/repository"
)

// ErrUnimplementedDiscoveryType is returned by NewDiscovery for discovery
// types that can not be stored yet
var ErrUnimplementedDiscoveryType = errors.New("not implemented discovery type")

// NewDiscovery ingests a discovery response obtained from address:port.
// The discovery record and every node in info are merge-upserted; the
// discovery record is returned.
func (db *DB) NewDiscovery(ctx context.Context, address string, port int, typ domain.DiscoveryType, info string) (*domain.DiscoveryRecord, error) {
	if err := db.SyncDefaults(); err != nil {
		return nil, err
	}

	if typ != domain.DiscoveryTypeSendTargets {
		db.log.WithField("type", typ.String()).Error("not implemented discovery type")
		return nil, fmt.Errorf("%w: %s", ErrUnimplementedDiscoveryType, typ)
	}

	drec, err := db.DiscoveryDefaults(typ)
	if err != nil {
		return nil, err
	}
	drec.SendTargets.Address = domain.Truncate(address, domain.AddressMaxLen)
	drec.SendTargets.Port = port

	key, err := domain.HashKeyDiscovery(drec)
	if err != nil {
		return nil, err
	}
	drec.ID = domain.UniqueID(key)

	draft := db.NodeDefaults()
	if err := loader.Ingest(ctx, db, drec, &draft, info, db.log); err != nil {
		return nil, fmt.Errorf("failed to ingest discovery info from %s: %w", key, err)
	}
	return drec, nil
}

// Export writes every stored record through exp, discovery records first
func (db *DB) Export(ctx context.Context, exp codec.Exporter, w io.Writer) error {
	var records []codec.Record

	err := repository.WithLock(db.discovery, func() error {
		return scanDecoded(ctx, db.discovery, func(key string, value []byte) error {
			rec, err := decodeDiscovery(key, value)
			if err != nil {
				return err
			}
			fields, err := recinfo.Discovery(rec)
			if err != nil {
				return err
			}
			records = append(records, codec.Record{Kind: "discovery", ID: domain.UniqueID(key), Fields: fields})
			return nil
		})
	})
	if err != nil {
		return fmt.Errorf("failed to export discovery records: %w", err)
	}

	err = repository.WithLock(db.nodes, func() error {
		return scanDecoded(ctx, db.nodes, func(key string, value []byte) error {
			rec, err := decodeNode(key, value)
			if err != nil {
				return err
			}
			fields, err := recinfo.Node(rec)
			if err != nil {
				return err
			}
			records = append(records, codec.Record{Kind: "node", ID: domain.UniqueID(key), Fields: fields})
			return nil
		})
	})
	if err != nil {
		return fmt.Errorf("failed to export node records: %w", err)
	}

	return exp.Export(records, w)
}

// scanDecoded scans t and stops at the first error returned by fn
func scanDecoded(ctx context.Context, t repository.Table, fn func(key string, value []byte) error) error {
	var cbErr error
	err := t.Scan(ctx, func(key string, value []byte) bool {
		cbErr = fn(key, value)
		return cbErr == nil
	})
	if err != nil {
		return err
	}
	return cbErr
}
