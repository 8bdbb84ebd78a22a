package service

import (
	"context"
	"errors"
	"iter"
	"log/slog"

	"github.com/mtorresweb/spotlight-server/internal/domain"
	domainerrors "github.com/mtorresweb/spotlight-server/internal/errors"
	"github.com/mtorresweb/spotlight-server/internal/metrics"
	"github.com/mtorresweb/spotlight-server/internal/store"
)

// RelationStore toggles and queries relations of a single kind.
type RelationStore struct {
	kind     domain.RelationKind
	store    store.Store
	counters *CounterMaintainer
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewRelationStore creates a RelationStore for kind. It panics on an unknown
// kind, which is a wiring error.
func NewRelationStore(kind domain.RelationKind, s store.Store, counters *CounterMaintainer, m *metrics.Metrics, logger *slog.Logger) *RelationStore {
	if !kind.Valid() {
		panic("service: unknown relation kind " + string(kind))
	}
	return &RelationStore{
		kind:     kind,
		store:    s,
		counters: counters,
		metrics:  m,
		logger:   logger.With("relation", string(kind)),
	}
}

// Kind returns the relation kind.
func (r *RelationStore) Kind() domain.RelationKind {
	return r.kind
}

// Toggle flips the viewer's relation to targetID in its own transaction and
// reports whether it is now present.
func (r *RelationStore) Toggle(ctx context.Context, viewer domain.Viewer, targetID string) (bool, error) {
	var active bool
	err := r.store.Update(ctx, func(tx store.Tx) error {
		var err error
		active, err = r.ToggleTx(ctx, tx, viewer, targetID)
		return err
	})
	if err != nil {
		return false, translate(err, string(r.kind))
	}
	r.Record(viewer, targetID, active)
	return active, nil
}

// ToggleTx flips the relation inside tx and applies its counter effects.
// Callers that use it directly must call Record after the commit.
func (r *RelationStore) ToggleTx(ctx context.Context, tx store.Tx, viewer domain.Viewer, targetID string) (bool, error) {
	if viewer.UserID == "" {
		return false, domainerrors.Unauthenticated("authentication required")
	}
	if err := r.loadTarget(ctx, tx, viewer, targetID); err != nil {
		return false, err
	}

	_, err := tx.GetRelation(ctx, r.kind, viewer.UserID, targetID)
	switch {
	case err == nil:
		if err := tx.DeleteRelation(ctx, r.kind, viewer.UserID, targetID); err != nil {
			return false, err
		}
		return false, r.applyCounters(ctx, tx, viewer, targetID, -1)

	case errors.Is(err, store.ErrNotFound):
		rel := &domain.Relation{
			Kind:      r.kind,
			UserID:    viewer.UserID,
			TargetID:  targetID,
			CreatedAt: domain.Now(),
		}
		if err := tx.CreateRelation(ctx, rel); err != nil {
			return false, err
		}
		return true, r.applyCounters(ctx, tx, viewer, targetID, 1)

	default:
		return false, err
	}
}

// Record reports a committed toggle to metrics and the log.
func (r *RelationStore) Record(viewer domain.Viewer, targetID string, active bool) {
	r.metrics.RelationToggled(string(r.kind), active)
	r.logger.Debug("relation toggled",
		"user_id", viewer.UserID,
		"target_id", targetID,
		"active", active,
	)
}

// Exists reports whether the viewer holds the relation to targetID. An
// anonymous viewer holds none.
func (r *RelationStore) Exists(ctx context.Context, viewer domain.Viewer, targetID string) (bool, error) {
	if viewer.UserID == "" {
		return false, nil
	}
	return r.store.RelationExists(ctx, r.kind, viewer.UserID, targetID)
}

// ListTargets yields the targets of the viewer's relations, newest first.
func (r *RelationStore) ListTargets(ctx context.Context, viewer domain.Viewer) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for rel, err := range r.store.ListRelationsByUser(ctx, r.kind, viewer.UserID) {
			if err != nil {
				yield("", err)
				return
			}
			if !yield(rel.TargetID, nil) {
				return
			}
		}
	}
}

func (r *RelationStore) loadTarget(ctx context.Context, tx store.Tx, viewer domain.Viewer, targetID string) error {
	if r.kind.TargetsPost() {
		if _, err := tx.GetPost(ctx, targetID); err != nil {
			return translate(err, "post "+targetID)
		}
		return nil
	}

	if targetID == viewer.UserID {
		return domainerrors.Validation("cannot follow yourself")
	}
	if _, err := tx.GetUser(ctx, targetID); err != nil {
		return translate(err, "user "+targetID)
	}
	return nil
}

func (r *RelationStore) applyCounters(ctx context.Context, tx store.Tx, viewer domain.Viewer, targetID string, delta int64) error {
	switch r.kind {
	case domain.RelationLike:
		_, err := r.counters.AdjustPost(ctx, tx, targetID, domain.PostLikes, delta)
		return err
	case domain.RelationFollow:
		if _, err := r.counters.AdjustUser(ctx, tx, viewer.UserID, domain.UserFollowing, delta); err != nil {
			return err
		}
		_, err := r.counters.AdjustUser(ctx, tx, targetID, domain.UserFollowers, delta)
		return err
	default:
		return nil
	}
}
