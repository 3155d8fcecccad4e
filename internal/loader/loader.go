// Package loader ingests discovery responses into the record tables.
//
// A discovery response is a text blob of KEY=VALUE lines:
//
//	DTN=iqn.2001-04.com.example:storage.disk2.sys1.xyz
//	TT=1
//	TP=3260
//	TA=10.16.16.227
//	;
//	DTN=iqn.2001-04.com.example:storage.disk2.sys2.xyz
//	TA=10.16.16.228
//	;
//	!
//
// Each ";" commits the node accumulated so far. The node draft is not reset
// between entries, so the second entry above inherits TT and TP from the
// first. "!" ends the blob.
package loader

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"iscsidb/internal/codec"
	"iscsidb/internal/domain"
)

// ErrSyntax is returned for an unknown key or a line that is not KEY=VALUE
var ErrSyntax = errors.New("discovery info syntax error")

// Discovery response keys
const (
	KeyTargetName = "DTN"
	KeyTPGT       = "TT"
	KeyPort       = "TP"
	KeyAddress    = "TA"
)

const (
	entryEnd = ";"
	infoEnd  = "!"
)

// Upserter merges records into the tables
type Upserter interface {
	AddDiscovery(ctx context.Context, drec *domain.DiscoveryRecord) error
	AddNode(ctx context.Context, drec *domain.DiscoveryRecord, nrec *domain.NodeRecord) error
}

// Ingest parses info and upserts drec plus one node per entry. draft holds
// the node values entries start from and accumulates every assignment.
//
// Ingest stops at the first bad line. Entries committed before it stay
// committed.
func Ingest(ctx context.Context, u Upserter, drec *domain.DiscoveryRecord, draft *domain.NodeRecord, info string, log logrus.FieldLogger) error {
	sc := bufio.NewScanner(strings.NewReader(info))
	lineNo := 0
	entries := 0

	for sc.Scan() {
		lineNo++
		line := strings.TrimSuffix(sc.Text(), "\r")

		switch line {
		case entryEnd:
			if err := commit(ctx, u, drec, draft); err != nil {
				return fmt.Errorf("entry %d (line %d): %w", entries+1, lineNo, err)
			}
			entries++
			continue
		case infoEnd:
			log.WithField("entries", entries).Debug("discovery info complete")
			return nil
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return fmt.Errorf("%w: line %d: expected KEY=VALUE, got %q", ErrSyntax, lineNo, line)
		}
		if err := assign(draft, key, value); err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
		log.WithField("key", key).Debugf("discovery info value %s", value)
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("failed to read discovery info: %w", err)
	}

	log.WithField("entries", entries).Debug("discovery info ended without terminator")
	return nil
}

func assign(draft *domain.NodeRecord, key, value string) error {
	switch key {
	case KeyTargetName:
		draft.Name = domain.Truncate(value, domain.TargetNameMaxLen)
	case KeyTPGT:
		draft.TPGT = codec.ParseInt(value)
	case KeyPort:
		draft.Conns[0].Port = codec.ParseInt(value)
	case KeyAddress:
		draft.Conns[0].Address = domain.Truncate(value, domain.AddressMaxLen)
	default:
		return fmt.Errorf("%w: unknown key %q", ErrSyntax, key)
	}
	return nil
}

// commit upserts the discovery record, then a copy of the draft under it.
// The two writes take separate locks.
func commit(ctx context.Context, u Upserter, drec *domain.DiscoveryRecord, draft *domain.NodeRecord) error {
	if err := u.AddDiscovery(ctx, drec); err != nil {
		return fmt.Errorf("failed to update discovery record: %w", err)
	}
	nrec := *draft
	if err := u.AddNode(ctx, drec, &nrec); err != nil {
		return fmt.Errorf("failed to update node record: %w", err)
	}
	return nil
}
