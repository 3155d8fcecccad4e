package repository

import (
	"context"
	"errors"
	"fmt"

	"iscsidb/internal/domain"
)

// ErrNotFound is returned when no record matches a key or id. It is a
// normal lookup result, not a failure.
var ErrNotFound = errors.New("record not found")

// Table is a persistent key/value table shared between processes.
//
// Get, Put and Scan do not lock. Callers that scan, or that read and then
// write, hold the table's exclusive lock for the whole sequence.
type Table interface {
	// Get returns the value stored under key, or ErrNotFound
	Get(ctx context.Context, key string) ([]byte, error)
	// Put stores value under key, replacing any previous value
	Put(ctx context.Context, key string, value []byte) error
	// Scan calls fn for every entry in insertion order until fn returns false.
	// fn must not call back into the table.
	Scan(ctx context.Context, fn func(key string, value []byte) bool) error

	// Lock takes the exclusive lock, blocking until it is available
	Lock() error
	// Unlock releases the exclusive lock
	Unlock() error

	// Close releases resources
	Close() error
}

// WithLock runs fn while holding t's exclusive lock. The lock is released
// on every return path.
func WithLock(t Table, fn func() error) (err error) {
	if err := t.Lock(); err != nil {
		return fmt.Errorf("failed to lock table: %w", err)
	}
	defer func() {
		if uerr := t.Unlock(); uerr != nil && err == nil {
			err = fmt.Errorf("failed to unlock table: %w", uerr)
		}
	}()
	return fn()
}

// GetByID scans t under its lock for the first key whose short id is id.
// Ids may collide; the entry stored first wins.
func GetByID(ctx context.Context, t Table, id uint32) (key string, value []byte, err error) {
	err = WithLock(t, func() error {
		found := false
		scanErr := t.Scan(ctx, func(k string, v []byte) bool {
			if domain.UniqueID(k) == id {
				key, value, found = k, v, true
				return false
			}
			return true
		})
		if scanErr != nil {
			return scanErr
		}
		if !found {
			return fmt.Errorf("%w: id %s", ErrNotFound, domain.FormatID(id))
		}
		return nil
	})
	if err != nil {
		return "", nil, err
	}
	return key, value, nil
}
