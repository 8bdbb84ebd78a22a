// Package service implements the spotlight operations on top of the store.
//
// Every operation takes the caller's domain.Principal, resolves it to a
// domain.Viewer through IdentityResolver and passes the Viewer explicitly to
// the core components. Mutations run inside one store transaction; side
// effects such as SSE events, search indexing and object deletion happen
// only after it commits.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/mtorresweb/spotlight-server/internal/domain"
	domainerrors "github.com/mtorresweb/spotlight-server/internal/errors"
	"github.com/mtorresweb/spotlight-server/internal/sse"
	"github.com/mtorresweb/spotlight-server/internal/store"
	"github.com/mtorresweb/spotlight-server/internal/validation"
)

// validate is the shared validator for request structs.
var validate = validation.New()

// EventEmitter receives events for committed changes. Emit must not block.
type EventEmitter interface {
	Emit(event sse.Event)
}

// NoopEmitter discards events.
type NoopEmitter struct{}

// Emit implements EventEmitter.
func (NoopEmitter) Emit(sse.Event) {}

// SearchIndexer keeps the search index in step with committed changes.
type SearchIndexer interface {
	IndexUser(user *domain.User) error
	IndexPost(post *domain.Post) error
	DeletePost(id string) error
}

// NoopIndexer ignores every update.
type NoopIndexer struct{}

// IndexUser implements SearchIndexer.
func (NoopIndexer) IndexUser(*domain.User) error { return nil }

// IndexPost implements SearchIndexer.
func (NoopIndexer) IndexPost(*domain.Post) error { return nil }

// DeletePost implements SearchIndexer.
func (NoopIndexer) DeletePost(string) error { return nil }

// translate maps store errors to domain errors. what names the entity for
// NotFound messages, e.g. "post pst-1".
func translate(err error, what string) error {
	if err == nil {
		return nil
	}

	var derr *domainerrors.Error
	switch {
	case errors.As(err, &derr):
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, store.ErrNotFound):
		return domainerrors.NotFoundf("%s not found", what).WithCause(err)
	case errors.Is(err, store.ErrAlreadyExists):
		return domainerrors.Conflictf("%s already exists", what).WithCause(err)
	case errors.Is(err, store.ErrTxnConflict):
		return domainerrors.Wrap(err, domainerrors.CodeConflict, "concurrent update, try again")
	default:
		return fmt.Errorf("%s: %w", what, err)
	}
}
