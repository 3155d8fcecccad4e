package service

import (
	"context"
	"fmt"
	"io"
	"strings"

	"iscsidb/internal/codec"
	"iscsidb/internal/domain"
	"iscsidb/internal/recinfo"
	"iscsidb/internal/repository"
)

// AllRecords makes PrintDiscovery and PrintNode list every record
const AllRecords = -1

func writeDiscoveryLine(w io.Writer, id uint32, rec *domain.DiscoveryRecord) error {
	if rec.Type != domain.DiscoveryTypeSendTargets {
		return nil
	}
	_, err := fmt.Fprintf(w, "[%06x] %s:%d via sendtargets\n", id, rec.SendTargets.Address, rec.SendTargets.Port)
	return err
}

func writeNodeLine(w io.Writer, id uint32, rec *domain.NodeRecord) error {
	addr, port := rec.Portal()
	_, err := fmt.Fprintf(w, "[%06x] %s:%d,%d %s\n", id, addr, port, rec.TPGT, rec.Name)
	return err
}

// printTable scans t under its lock. With id == AllRecords every entry goes
// to list, otherwise entries whose key maps to id go to full. It returns
// the number of entries handled.
func printTable(ctx context.Context, t repository.Table, id int,
	list, full func(key string, value []byte) error) (int, error) {
	found := 0
	err := repository.WithLock(t, func() error {
		return scanDecoded(ctx, t, func(key string, value []byte) error {
			var err error
			switch {
			case id < 0:
				err = list(key, value)
			case uint32(id) == domain.UniqueID(key):
				err = full(key, value)
			default:
				return nil
			}
			if err != nil {
				return err
			}
			found++
			return nil
		})
	})
	return found, err
}

// PrintDiscovery writes discovery records to the handle's output. With
// AllRecords it lists one line per record, otherwise it prints the
// parameters of every record whose id is id. It returns how many records
// were handled; more than one for a single id means the id collides.
func (db *DB) PrintDiscovery(ctx context.Context, id int) (int, error) {
	return printTable(ctx, db.discovery, id,
		func(key string, value []byte) error {
			rec, err := decodeDiscovery(key, value)
			if err != nil {
				return err
			}
			return writeDiscoveryLine(db.out, domain.UniqueID(key), rec)
		},
		func(key string, value []byte) error {
			rec, err := decodeDiscovery(key, value)
			if err != nil {
				return err
			}
			fields, err := recinfo.Discovery(rec)
			if err != nil {
				return err
			}
			_, err = io.WriteString(db.out, codec.Format(fields))
			return err
		})
}

// PrintNode writes node records to the handle's output, like PrintDiscovery
func (db *DB) PrintNode(ctx context.Context, id int) (int, error) {
	return printTable(ctx, db.nodes, id,
		func(key string, value []byte) error {
			rec, err := decodeNode(key, value)
			if err != nil {
				return err
			}
			return writeNodeLine(db.out, domain.UniqueID(key), rec)
		},
		func(key string, value []byte) error {
			rec, err := decodeNode(key, value)
			if err != nil {
				return err
			}
			fields, err := recinfo.Node(rec)
			if err != nil {
				return err
			}
			_, err = io.WriteString(db.out, codec.Format(fields))
			return err
		})
}

// PrintNodes lists the nodes found through drec and returns their count
func (db *DB) PrintNodes(ctx context.Context, drec *domain.DiscoveryRecord) (int, error) {
	parent, err := domain.HashKeyDiscovery(drec)
	if err != nil {
		return 0, err
	}
	prefix := parent + "#"

	found := 0
	err = repository.WithLock(db.nodes, func() error {
		return scanDecoded(ctx, db.nodes, func(key string, value []byte) error {
			if !strings.HasPrefix(key, prefix) {
				return nil
			}
			rec, err := decodeNode(key, value)
			if err != nil {
				return err
			}
			if err := writeNodeLine(db.out, domain.UniqueID(key), rec); err != nil {
				return err
			}
			found++
			return nil
		})
	})
	return found, err
}
