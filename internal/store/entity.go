package store

import (
	"context"
	"encoding/json/v2"
	"fmt"
	"iter"

	"github.com/dgraph-io/badger/v4"

	"github.com/pagevoice/pagevoice-server/internal/errors"
)

// Entity provides generic persistence for one record type under a key prefix.
type Entity[T any] struct {
	store  *Store
	prefix string
}

// NewEntity creates an Entity for type T.
func NewEntity[T any](s *Store, prefix string) *Entity[T] {
	return &Entity[T]{store: s, prefix: prefix}
}

// Put writes an entity, creating or replacing it.
func (e *Entity[T]) Put(ctx context.Context, id string, entity *T) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("failed to marshal entity: %w", err)
	}

	key := []byte(e.prefix + id)
	return e.store.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, data)
	})
}

// Create writes a new entity. Returns an already-exists error when the id is
// taken.
func (e *Entity[T]) Create(ctx context.Context, id string, entity *T) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("failed to marshal entity: %w", err)
	}

	key := []byte(e.prefix + id)
	return e.store.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if err == nil {
			return errors.AlreadyExists("record already exists").WithDetails(map[string]any{"id": id})
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("failed to check existing key: %w", err)
		}
		return txn.Set(key, data)
	})
}

// Get retrieves an entity by id.
func (e *Entity[T]) Get(ctx context.Context, id string) (*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := []byte(e.prefix + id)
	var entity T
	err := e.store.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return errors.NotFoundf("record %s not found", id)
		}
		if err != nil {
			return fmt.Errorf("failed to get key: %w", err)
		}
		return item.Value(func(val []byte) error {
			if err := json.Unmarshal(val, &entity); err != nil {
				return errors.DataIntegrity("stored record is malformed").WithCause(err)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return &entity, nil
}

// Delete removes an entity by id. Idempotent.
func (e *Entity[T]) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	key := []byte(e.prefix + id)
	return e.store.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
}

// ListPrefix iterates every entity whose id begins with idPrefix. Pass an
// empty string to walk the whole entity space.
func (e *Entity[T]) ListPrefix(ctx context.Context, idPrefix string) iter.Seq2[*T, error] {
	prefix := []byte(e.prefix + idPrefix)
	return func(yield func(*T, error) bool) {
		e.store.db.View(func(txn *badger.Txn) error {
			opts := badger.DefaultIteratorOptions
			opts.Prefix = prefix
			opts.PrefetchValues = true

			it := txn.NewIterator(opts)
			defer it.Close()

			for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
				if ctx.Err() != nil {
					yield(nil, ctx.Err())
					return ctx.Err()
				}

				var entity T
				err := it.Item().Value(func(val []byte) error {
					return json.Unmarshal(val, &entity)
				})
				if err != nil {
					err = errors.DataIntegrity("stored record is malformed").WithCause(err)
					yield(nil, err)
					return err
				}
				if !yield(&entity, nil) {
					return nil // consumer stopped early
				}
			}
			return nil
		})
	}
}
