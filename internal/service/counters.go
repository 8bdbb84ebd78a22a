package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mtorresweb/spotlight-server/internal/domain"
	domainerrors "github.com/mtorresweb/spotlight-server/internal/errors"
	"github.com/mtorresweb/spotlight-server/internal/store"
)

// ErrCounterDrift reports a counter that would go below zero, which means it
// already disagreed with the rows it counts.
var ErrCounterDrift = errors.New("counter drift")

// CounterMaintainer applies counter deltas inside the transaction that
// motivates them.
type CounterMaintainer struct {
	logger *slog.Logger
}

// NewCounterMaintainer creates a CounterMaintainer.
func NewCounterMaintainer(logger *slog.Logger) *CounterMaintainer {
	return &CounterMaintainer{logger: logger}
}

// AdjustPost adds delta to a post counter and returns the new value.
func (c *CounterMaintainer) AdjustPost(ctx context.Context, tx store.Tx, postID string, field domain.PostCounter, delta int64) (int64, error) {
	if tx == nil {
		return 0, domainerrors.Internal("counter adjustment outside a transaction")
	}
	if !field.Valid() {
		return 0, domainerrors.Validationf("unknown post counter %q", field)
	}

	n, err := tx.AdjustPostCounter(ctx, postID, field, delta)
	if err != nil {
		return 0, translate(err, "post "+postID)
	}
	if n < 0 {
		return 0, c.drift("post", postID, string(field), n)
	}
	return n, nil
}

// AdjustUser adds delta to a user counter and returns the new value.
func (c *CounterMaintainer) AdjustUser(ctx context.Context, tx store.Tx, userID string, field domain.UserCounter, delta int64) (int64, error) {
	if tx == nil {
		return 0, domainerrors.Internal("counter adjustment outside a transaction")
	}
	if !field.Valid() {
		return 0, domainerrors.Validationf("unknown user counter %q", field)
	}

	n, err := tx.AdjustUserCounter(ctx, userID, field, delta)
	if err != nil {
		return 0, translate(err, "user "+userID)
	}
	if n < 0 {
		return 0, c.drift("user", userID, string(field), n)
	}
	return n, nil
}

func (c *CounterMaintainer) drift(entity, id, field string, value int64) error {
	c.logger.Error("counter drift detected",
		"entity", entity,
		"id", id,
		"counter", field,
		"value", value,
	)
	return domainerrors.Wrapf(
		fmt.Errorf("%w: %s %s %s = %d", ErrCounterDrift, entity, id, field, value),
		domainerrors.CodeInternal, "counter %s on %s %s is inconsistent", field, entity, id,
	)
}
