package storage

import (
	"chat-room/contract"
	"chat-room/domain"
	"context"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
)

const (
	badgerMessagePrefix = "msg:"
	badgerSequenceKey   = "seq:msg"
	sequenceBandwidth   = 100
)

// BadgerStore persists the room history in BadgerDB.
// The database handle is owned by the caller; Close only releases the key sequence.
type BadgerStore struct {
	db  *badger.DB
	seq *badger.Sequence
	log *slog.Logger
}

func NewBadgerStore(db *badger.DB, log *slog.Logger) (*BadgerStore, error) {
	seq, err := db.GetSequence([]byte(badgerSequenceKey), sequenceBandwidth)
	if err != nil {
		return nil, fmt.Errorf("badger sequence: %w", err)
	}
	return &BadgerStore{db: db, seq: seq, log: log}, nil
}

// Append stores the message under "msg:{sequence}".
// The sequence is zero padded to 20 digits so the lexicographic key order is the append order.
func (b *BadgerStore) Append(ctx context.Context, message domain.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := message.Validate(); err != nil {
		return err
	}
	n, err := b.seq.Next()
	if err != nil {
		return fmt.Errorf("next message sequence: %w", err)
	}
	key := fmt.Sprintf("%s%020d", badgerMessagePrefix, n)
	value := toDiskMessage(message).Marshal()
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
}

// ListAll scans the message prefix in key order.
func (b *BadgerStore) ListAll(ctx context.Context) ([]domain.Message, error) {
	messages, err := scanBadger(ctx, b.db)
	if err != nil {
		return nil, err
	}
	b.log.Debug(fmt.Sprintf("%d messages read from badger", len(messages)))
	return messages, nil
}

func scanBadger(ctx context.Context, db *badger.DB) ([]domain.Message, error) {
	var messages []domain.Message
	err := db.View(func(txn *badger.Txn) error {
		prefix := []byte(badgerMessagePrefix)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			err := item.Value(func(value []byte) error {
				d, err := UnmarshalDiskMessage(value)
				if err != nil {
					return fmt.Errorf("decode %s: %w", item.Key(), err)
				}
				messages = append(messages, d.toMessage())
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return messages, nil
}

func (b *BadgerStore) Close() error {
	return b.seq.Release()
}

var _ contract.MessageStore = (*BadgerStore)(nil)
