// Package badgerstore implements store.Store on an embedded Badger database.
//
// Badger transactions are optimistic and serializable: a transaction whose
// read set was written by a concurrently committed transaction fails with
// badger.ErrConflict at commit. Update retries the whole callback in that
// case, which is what makes relation toggles and their counter adjustments
// atomic without explicit locks.
package badgerstore

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/mtorresweb/spotlight-server/internal/domain"
	"github.com/mtorresweb/spotlight-server/internal/store"
)

const (
	retryBase = time.Millisecond
	retryCap  = 64 * time.Millisecond

	idxPrincipal = "principal"
	idxUsername  = "username"
	idxCreated   = "created"
	idxUser      = "user"
	idxPost      = "post"
	idxTarget    = "target"

	// allGroup is the single group of the global post timeline.
	allGroup = "all"
)

// Store is a Badger-backed store.Store.
type Store struct {
	db     *badger.DB
	logger *slog.Logger

	maxRetries int
	onRetry    func()

	users     *Entity[domain.User]
	posts     *Entity[domain.Post]
	comments  *Entity[domain.Comment]
	relations map[domain.RelationKind]*Entity[domain.Relation]
}

// Option configures a Store.
type Option func(*Store)

// WithMaxRetries bounds how often a conflicting transaction is retried.
func WithMaxRetries(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxRetries = n
		}
	}
}

// WithRetryObserver registers a callback invoked before every retry.
func WithRetryObserver(fn func()) Option {
	return func(s *Store) { s.onRetry = fn }
}

// New opens the database at path. An empty path opens an in-memory database.
func New(path string, logger *slog.Logger, opts ...Option) (*Store, error) {
	bopts := badger.DefaultOptions(path)
	bopts.Logger = nil
	if path == "" {
		bopts = bopts.WithInMemory(true)
	} else {
		bopts.SyncWrites = true
		bopts.CompactL0OnClose = true
	}

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	s := &Store{
		db:         db,
		logger:     logger,
		maxRetries: store.DefaultMaxTxnRetries,
		onRetry:    func() {},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.initEntities()

	logger.Info("badger database opened", "path", path, "in_memory", path == "")
	return s, nil
}

func (s *Store) initEntities() {
	s.users = NewEntity[domain.User]("user:").
		WithUniqueIndex(idxPrincipal, func(u *domain.User) string { return u.Principal }).
		WithUniqueIndex(idxUsername, func(u *domain.User) string { return strings.ToLower(u.Username) })

	s.posts = NewEntity[domain.Post]("post:").
		WithOrderedIndex(idxCreated, func(p *domain.Post) [][2]string {
			return [][2]string{{allGroup, sortableTime(p.CreatedAt)}}
		}).
		WithOrderedIndex(idxUser, func(p *domain.Post) [][2]string {
			return [][2]string{{p.UserID, sortableTime(p.CreatedAt)}}
		})

	s.comments = NewEntity[domain.Comment]("comment:").
		WithOrderedIndex(idxPost, func(c *domain.Comment) [][2]string {
			return [][2]string{{c.PostID, sortableTime(c.CreatedAt)}}
		})

	s.relations = make(map[domain.RelationKind]*Entity[domain.Relation], len(domain.RelationKinds))
	for _, kind := range domain.RelationKinds {
		s.relations[kind] = NewEntity[domain.Relation]("rel:" + string(kind) + ":").
			WithOrderedIndex(idxUser, func(r *domain.Relation) [][2]string {
				return [][2]string{{r.UserID, sortableTime(r.CreatedAt)}}
			}).
			WithOrderedIndex(idxTarget, func(r *domain.Relation) [][2]string {
				return [][2]string{{r.TargetID, sortableTime(r.CreatedAt)}}
			})
	}
}

// Backend implements store.Store.
func (s *Store) Backend() string { return "badger" }

// Close closes the database.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close badger: %w", err)
	}
	return nil
}

// Ping implements store.Store.
func (s *Store) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.db.IsClosed() {
		return errors.New("badger database is closed")
	}
	return nil
}

// Update implements store.Store.
func (s *Store) Update(ctx context.Context, fn func(tx store.Tx) error) error {
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := s.db.Update(func(txn *badger.Txn) error {
			return fn(&tx{s: s, txn: txn})
		})
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		if attempt >= s.maxRetries {
			return store.ErrTxnConflict.WithCause(err)
		}

		s.onRetry()
		s.logger.Debug("retrying conflicting transaction", "attempt", attempt)

		backoff := store.Backoff(attempt, retryBase, retryCap)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
}

func (s *Store) relationEntity(kind domain.RelationKind) (*Entity[domain.Relation], error) {
	e, ok := s.relations[kind]
	if !ok {
		return nil, fmt.Errorf("unknown relation kind %q", kind)
	}
	return e, nil
}

// view runs fn in a read-only transaction.
func (s *Store) view(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.View(fn)
}

func relationID(userID, targetID string) string {
	return userID + ":" + targetID
}

// sortableTime renders t so that byte order equals time order.
func sortableTime(t time.Time) string {
	return fmt.Sprintf("%020d", t.UnixNano())
}

// errSeq yields a single error.
func errSeq[T any](err error) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T
		yield(zero, err)
	}
}
