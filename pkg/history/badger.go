package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/pajeronda/grok-generative-ai-conversation/pkg/llm"
)

// Badger is a Store backed by BadgerDB. Keys are
// conv:{escaped id}:{zero-padded unix nanoseconds}.
type Badger struct {
	db    *badger.DB
	clock clock
}

var _ Store = (*Badger)(nil)

type BadgerOptions struct {
	// Dir holds the database files. Required unless InMemory is set.
	Dir string
	// InMemory keeps everything in memory.
	InMemory bool
	Logger   *slog.Logger
}

func OpenBadger(opts BadgerOptions) (*Badger, error) {
	if !opts.InMemory && opts.Dir == "" {
		return nil, errors.New("history: BadgerOptions.Dir is required for on-disk mode")
	}
	dbOpts := badger.DefaultOptions(opts.Dir)
	if opts.InMemory {
		dbOpts = badger.DefaultOptions("").WithInMemory(true)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	dbOpts = dbOpts.WithLogger(badgerLogger{logger})
	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, err
	}
	return &Badger{db: db}, nil
}

func (b *Badger) Append(_ context.Context, conversationID string, msgs ...*llm.Message) error {
	if conversationID == "" {
		return ErrEmptyConversationID
	}
	wb := b.db.NewWriteBatch()
	defer wb.Cancel()
	for _, msg := range msgs {
		at := b.clock.next()
		v, err := encodeRecord(at, msg)
		if err != nil {
			return err
		}
		if err := wb.Set(key(conversationID, at), v); err != nil {
			return err
		}
	}
	return wb.Flush()
}

func (b *Badger) Load(_ context.Context, conversationID string, recent int) ([]*llm.Message, error) {
	p := []byte(prefix(conversationID))
	var out []*llm.Message
	err := b.db.View(func(txn *badger.Txn) error {
		iterOpts := badger.DefaultIteratorOptions
		iterOpts.Prefix = p
		iterOpts.Reverse = true
		it := txn.NewIterator(iterOpts)
		defer it.Close()

		// Seek past the last key of the prefix to walk newest first.
		seek := append(append([]byte(nil), p...), 0xff)
		for it.Seek(seek); it.ValidForPrefix(p); it.Next() {
			if recent > 0 && len(out) == recent {
				break
			}
			val, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			r, err := decodeRecord(val)
			if err != nil {
				return err
			}
			out = append(out, r.Message)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (b *Badger) Clear(_ context.Context, conversationID string) error {
	return b.db.DropPrefix([]byte(prefix(conversationID)))
}

func (b *Badger) Close() error {
	return b.db.Close()
}

// badgerLogger routes badger warnings and errors to slog and drops the
// chatty info and debug output.
type badgerLogger struct {
	l *slog.Logger
}

func (b badgerLogger) Errorf(f string, v ...any) {
	b.l.Error("history/badger: " + strings.TrimSpace(fmt.Sprintf(f, v...)))
}

func (b badgerLogger) Warningf(f string, v ...any) {
	b.l.Warn("history/badger: " + strings.TrimSpace(fmt.Sprintf(f, v...)))
}

func (badgerLogger) Infof(string, ...any)          {}
func (badgerLogger) Debugf(string, ...any)         {}
