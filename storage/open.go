package storage

import (
	"chat-room/contract"
	"chat-room/domain"
	"chat-room/errors"
	"context"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
)

const (
	MEMORY = "memory"
	BADGER = "badger"
	SQLITE = "sqlite"
	MONGO  = "mongo"
)

// Store is a MessageStore owning resources that must be released.
type Store interface {
	contract.MessageStore
	Close() error
}

type Options struct {
	Backend       string
	BadgerPath    string
	SQLitePath    string
	MongoURI      string
	MongoDatabase string
	// ReadOnly opens badger without taking its directory lock, for inspection next to a running server.
	ReadOnly bool
}

// Open builds the store selected by opts.Backend.
func Open(ctx context.Context, opts Options, log *slog.Logger) (Store, error) {
	switch opts.Backend {
	case MEMORY, "":
		return NewMemoryStore(), nil
	case BADGER:
		if opts.ReadOnly {
			return openBadgerReader(opts.BadgerPath, log)
		}
		db, err := badger.Open(badger.DefaultOptions(opts.BadgerPath).
			WithLoggingLevel(badger.WARNING))
		if err != nil {
			return nil, fmt.Errorf("database opening failed: %w", err)
		}
		store, err := NewBadgerStore(db, log)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		return &ownedBadger{BadgerStore: store, db: db, log: log}, nil
	case SQLITE:
		return OpenSQLite(opts.SQLitePath)
	case MONGO:
		return OpenMongo(ctx, opts.MongoURI, opts.MongoDatabase, log)
	default:
		return nil, fmt.Errorf("%w: %q", errors.ErrUnknownBackend, opts.Backend)
	}
}

// ownedBadger closes the database it opened after releasing the sequence.
type ownedBadger struct {
	*BadgerStore
	db  *badger.DB
	log *slog.Logger
}

func (o *ownedBadger) Close() error {
	if err := o.BadgerStore.Close(); err != nil {
		o.log.Warn("Failed to release badger sequence", "error", err)
	}
	o.log.Info("Closing BadgerDB...")
	return o.db.Close()
}

// badgerReader lists a database opened read-only; appends are refused.
type badgerReader struct {
	db  *badger.DB
	log *slog.Logger
}

func openBadgerReader(path string, log *slog.Logger) (*badgerReader, error) {
	db, err := badger.Open(badger.DefaultOptions(path).
		WithReadOnly(true).
		WithBypassLockGuard(true).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return nil, fmt.Errorf("database opening failed: %w", err)
	}
	return &badgerReader{db: db, log: log}, nil
}

func (r *badgerReader) ListAll(ctx context.Context) ([]domain.Message, error) {
	return scanBadger(ctx, r.db)
}

func (r *badgerReader) Append(context.Context, domain.Message) error {
	return errors.ErrReadOnlyStore
}

func (r *badgerReader) Close() error {
	r.log.Info("Closing BadgerDB...")
	return r.db.Close()
}
