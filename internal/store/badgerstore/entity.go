package badgerstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/apphub/apphub-server/internal/store"
)

// Entity provides generic CRUD operations over JSON records stored under a key prefix.
type Entity[T any] struct {
	db      *badger.DB
	prefix  string
	indexes []index[T]
}

// index is a unique secondary index: one index key per value, pointing at the record id.
type index[T any] struct {
	name            string
	keyGen          func(*T) []string
	lookupTransform func(string) string
}

// NewEntity creates an Entity for type T stored under prefix.
func NewEntity[T any](db *badger.DB, prefix string) *Entity[T] {
	return &Entity[T]{db: db, prefix: prefix}
}

// WithIndex adds a unique secondary index. lookupTransform, when non-nil, is
// applied to values passed to GetByIndex so lookups match the stored form.
func (e *Entity[T]) WithIndex(name string, keyGen func(*T) []string, lookupTransform func(string) string) *Entity[T] {
	e.indexes = append(e.indexes, index[T]{
		name:            name,
		keyGen:          keyGen,
		lookupTransform: lookupTransform,
	})
	return e
}

func (e *Entity[T]) key(id string) []byte {
	return buildKey(e.prefix, id)
}

func (e *Entity[T]) indexKey(name, value string) []byte {
	return buildKey(e.prefix, "idx:"+name+":"+value)
}

// Create stores a new record. Returns store.ErrAlreadyExists when the id or
// any unique index value is taken.
func (e *Entity[T]) Create(ctx context.Context, id string, entity *T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return e.db.Update(func(txn *badger.Txn) error {
		return e.createTxn(txn, id, entity)
	})
}

func (e *Entity[T]) createTxn(txn *badger.Txn, id string, entity *T) error {
	data, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("marshal entity: %w", err)
	}

	_, err = txn.Get(e.key(id))
	if err == nil {
		return store.ErrAlreadyExists
	}
	if !errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("check existing key: %w", err)
	}

	for _, idx := range e.indexes {
		for _, value := range idx.keyGen(entity) {
			_, err := txn.Get(e.indexKey(idx.name, value))
			if err == nil {
				return store.ErrAlreadyExists.WithMessagef("%s %q already in use", idx.name, value)
			}
			if !errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("check index key: %w", err)
			}
		}
	}

	if err := txn.Set(e.key(id), data); err != nil {
		return fmt.Errorf("set key: %w", err)
	}
	return e.setIndexes(txn, id, entity)
}

// Get retrieves a record by id. Returns store.ErrNotFound when missing.
func (e *Entity[T]) Get(ctx context.Context, id string) (*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out *T
	err := e.db.View(func(txn *badger.Txn) error {
		var err error
		out, err = e.getTxn(txn, id)
		return err
	})
	return out, err
}

func (e *Entity[T]) getTxn(txn *badger.Txn, id string) (*T, error) {
	var entity T
	if err := getJSON(txn, e.key(id), &entity); err != nil {
		return nil, err
	}
	return &entity, nil
}

// GetByIndex retrieves a record through a secondary index.
func (e *Entity[T]) GetByIndex(ctx context.Context, indexName, value string) (*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for _, idx := range e.indexes {
		if idx.name == indexName && idx.lookupTransform != nil {
			value = idx.lookupTransform(value)
			break
		}
	}

	var out *T
	err := e.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(e.indexKey(indexName, value))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return store.ErrNotFound
		}
		if err != nil {
			return err
		}
		id, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		out, err = e.getTxn(txn, string(id))
		return err
	})
	return out, err
}

// Update replaces an existing record, moving its index entries.
// Returns store.ErrNotFound when the record does not exist.
func (e *Entity[T]) Update(ctx context.Context, id string, entity *T) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("marshal entity: %w", err)
	}

	return e.db.Update(func(txn *badger.Txn) error {
		old, err := e.getTxn(txn, id)
		if err != nil {
			return err
		}

		for _, idx := range e.indexes {
			oldKeys := make(map[string]bool)
			for _, k := range idx.keyGen(old) {
				oldKeys[k] = true
			}
			for _, value := range idx.keyGen(entity) {
				if oldKeys[value] {
					continue
				}
				_, err := txn.Get(e.indexKey(idx.name, value))
				if err == nil {
					return store.ErrAlreadyExists.WithMessagef("%s %q already in use", idx.name, value)
				}
				if !errors.Is(err, badger.ErrKeyNotFound) {
					return fmt.Errorf("check index key: %w", err)
				}
			}
		}

		if err := e.deleteIndexes(txn, old); err != nil {
			return err
		}
		if err := txn.Set(e.key(id), data); err != nil {
			return fmt.Errorf("set key: %w", err)
		}
		return e.setIndexes(txn, id, entity)
	})
}

// Delete removes a record and its index entries.
// Returns store.ErrNotFound when the record does not exist.
func (e *Entity[T]) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return e.db.Update(func(txn *badger.Txn) error {
		return e.deleteTxn(txn, id)
	})
}

func (e *Entity[T]) deleteTxn(txn *badger.Txn, id string) error {
	old, err := e.getTxn(txn, id)
	if err != nil {
		return err
	}
	if err := e.deleteIndexes(txn, old); err != nil {
		return err
	}
	if err := txn.Delete(e.key(id)); err != nil {
		return fmt.Errorf("delete key: %w", err)
	}
	return nil
}

// List returns an iterator over all records, in key order.
func (e *Entity[T]) List(ctx context.Context) iter.Seq2[*T, error] {
	return func(yield func(*T, error) bool) {
		_ = e.db.View(func(txn *badger.Txn) error {
			for key, val := range scanPrefix(txn, []byte(e.prefix)) {
				if ctx.Err() != nil {
					yield(nil, ctx.Err())
					return ctx.Err()
				}
				if strings.HasPrefix(string(key[len(e.prefix):]), "idx:") {
					continue
				}

				var entity T
				if err := json.Unmarshal(val, &entity); err != nil {
					yield(nil, fmt.Errorf("unmarshal entity: %w", err))
					return err
				}
				if !yield(&entity, nil) {
					return nil
				}
			}
			return nil
		})
	}
}

func (e *Entity[T]) setIndexes(txn *badger.Txn, id string, entity *T) error {
	for _, idx := range e.indexes {
		for _, value := range idx.keyGen(entity) {
			if err := txn.Set(e.indexKey(idx.name, value), []byte(id)); err != nil {
				return fmt.Errorf("set index key: %w", err)
			}
		}
	}
	return nil
}

func (e *Entity[T]) deleteIndexes(txn *badger.Txn, entity *T) error {
	for _, idx := range e.indexes {
		for _, value := range idx.keyGen(entity) {
			if err := txn.Delete(e.indexKey(idx.name, value)); err != nil {
				return fmt.Errorf("delete index key: %w", err)
			}
		}
	}
	return nil
}
