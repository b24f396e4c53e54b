// Package source tracks externally fetched field values that have not yet
// been confirmed by a user edit.
package source

import (
	"context"
	"encoding/json"
	"fmt"
)

// Derived entity statuses.
const (
	StatusUnfinished = "unfinished"
	StatusFinished   = "finished"
)

// Record maps a field name to its fetched, unconfirmed candidate values.
type Record map[string]json.RawMessage

// Store holds one Record per entity id.
type Store interface {
	Get(ctx context.Context, id string) (Record, bool, error)
	Add(ctx context.Context, id string, rec Record) error
	Delete(ctx context.Context, id string) error
}

// Reconcile removes every patched field from the cached record of id. The
// remainder is written back, or the entry is deleted once no field is left.
// It runs before the entity update and is not undone if that update fails.
func Reconcile(ctx context.Context, store Store, id string, patched []string) error {
	rec, ok, err := store.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("reading source record %s: %w", id, err)
	}
	if !ok || len(patched) == 0 {
		return nil
	}

	remaining := make(Record, len(rec))
	for k, v := range rec {
		remaining[k] = v
	}
	for _, field := range patched {
		delete(remaining, field)
	}

	if len(remaining) == 0 {
		if err := store.Delete(ctx, id); err != nil {
			return fmt.Errorf("deleting source record %s: %w", id, err)
		}
		return nil
	}
	if len(remaining) == len(rec) {
		return nil
	}
	if err := store.Add(ctx, id, remaining); err != nil {
		return fmt.Errorf("writing source record %s: %w", id, err)
	}
	return nil
}

// Status reports StatusUnfinished while a non-empty record exists for id.
func Status(ctx context.Context, store Store, id string) (string, error) {
	rec, ok, err := store.Get(ctx, id)
	if err != nil {
		return "", fmt.Errorf("reading source record %s: %w", id, err)
	}
	if ok && len(rec) > 0 {
		return StatusUnfinished, nil
	}
	return StatusFinished, nil
}
