// Package badgerstore implements store.Store on an embedded Badger database.
// It is the default backend for single-node deployments.
package badgerstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"

	"github.com/apphub/apphub-server/internal/store"
)

var (
	_ store.Store    = (*Store)(nil)
	_ store.Accounts = (*Store)(nil)
)

// Store wraps a Badger database instance.
type Store struct {
	db       *badger.DB
	logger   *slog.Logger
	defaults store.DefaultAppConfig

	users *Entity[userRecord]
}

// Option configures a Store.
type Option func(*Store)

// WithDefaultAppConfig sets the AppConfig written on first read.
func WithDefaultAppConfig(fn store.DefaultAppConfig) Option {
	return func(s *Store) { s.defaults = fn }
}

// Open opens (creating if needed) a Badger database in dir.
func Open(dir string, logger *slog.Logger, opts ...Option) (*Store, error) {
	bopts := badger.DefaultOptions(dir)
	bopts.Logger = nil
	bopts.SyncWrites = true
	bopts.CompactL0OnClose = true
	return open(bopts, logger, opts...)
}

// OpenInMemory opens a throwaway in-memory database. Used by tests and tools.
func OpenInMemory(logger *slog.Logger, opts ...Option) (*Store, error) {
	bopts := badger.DefaultOptions("").WithInMemory(true)
	bopts.Logger = nil
	return open(bopts, logger, opts...)
}

func open(bopts badger.Options, logger *slog.Logger, opts ...Option) (*Store, error) {
	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("open badger db: %w", err)
	}

	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	s := &Store{
		db:       db,
		logger:   logger,
		defaults: store.StaticAppConfig(true),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.users = NewEntity[userRecord](db, prefixUser).
		WithIndex("email",
			func(u *userRecord) []string { return []string{store.NormalizeEmail(u.Email)} },
			store.NormalizeEmail,
		)

	s.logger.Info("badger database opened", "path", bopts.Dir, "in_memory", bopts.InMemory)
	return s, nil
}

// Ping checks that the database accepts reads.
func (s *Store) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.db.IsClosed() {
		return fmt.Errorf("badger database is closed")
	}
	return s.db.View(func(*badger.Txn) error { return nil })
}

// Close gracefully closes the database.
func (s *Store) Close() error {
	if s.db.IsClosed() {
		return nil
	}
	s.logger.Info("closing badger database")
	return s.db.Close()
}

// RunGC reclaims space in value log files. Safe to call periodically.
func (s *Store) RunGC() {
	for s.db.RunValueLogGC(0.5) == nil {
	}
}

func (s *Store) view(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.View(fn)
}

func (s *Store) update(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(fn)
}

// decodeAll unmarshals every value under prefix.
func decodeAll[T any](txn *badger.Txn, prefix []byte) ([]T, error) {
	var out []T
	for key, val := range scanPrefix(txn, prefix) {
		var v T
		if err := json.Unmarshal(val, &v); err != nil {
			return nil, fmt.Errorf("unmarshal %s: %w", key, err)
		}
		out = append(out, v)
	}
	return out, nil
}
