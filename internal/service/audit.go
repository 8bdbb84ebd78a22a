package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mtorresweb/spotlight-server/internal/domain"
	"github.com/mtorresweb/spotlight-server/internal/store"
)

// Drift is one stored counter that disagrees with the rows it counts.
type Drift struct {
	Entity  string `json:"entity"`
	ID      string `json:"id"`
	Counter string `json:"counter"`
	Stored  int64  `json:"stored"`
	Actual  int64  `json:"actual"`
}

func (d Drift) String() string {
	return fmt.Sprintf("%s %s %s: stored %d, actual %d", d.Entity, d.ID, d.Counter, d.Stored, d.Actual)
}

// Report is the result of an audit.
type Report struct {
	Users int     `json:"users"`
	Posts int     `json:"posts"`
	Drift []Drift `json:"drift"`
}

// OK reports whether every counter matched.
func (r *Report) OK() bool {
	return len(r.Drift) == 0
}

// Auditor recounts rows and compares them with the denormalized counters.
type Auditor struct {
	store    store.Store
	counters *CounterMaintainer
	logger   *slog.Logger
}

// NewAuditor creates an Auditor.
func NewAuditor(s store.Store, counters *CounterMaintainer, logger *slog.Logger) *Auditor {
	return &Auditor{store: s, counters: counters, logger: logger}
}

// Audit scans every user and post. It reads outside a transaction, so run it
// against a quiet store for an exact answer.
func (a *Auditor) Audit(ctx context.Context) (*Report, error) {
	report := &Report{Drift: []Drift{}}

	for post, err := range a.store.ListPosts(ctx) {
		if err != nil {
			return nil, fmt.Errorf("list posts: %w", err)
		}
		report.Posts++

		for _, field := range []domain.PostCounter{domain.PostLikes, domain.PostComments} {
			actual, err := countPostRows(ctx, a.store, post.ID, field)
			if err != nil {
				return nil, fmt.Errorf("count %s of %s: %w", field, post.ID, err)
			}
			report.check("post", post.ID, string(field), post.Counter(field), actual)
		}
	}

	for user, err := range a.store.ListUsers(ctx) {
		if err != nil {
			return nil, fmt.Errorf("list users: %w", err)
		}
		report.Users++

		for _, field := range []domain.UserCounter{domain.UserPosts, domain.UserFollowers, domain.UserFollowing} {
			actual, err := countUserRows(ctx, a.store, user.ID, field)
			if err != nil {
				return nil, fmt.Errorf("count %s of %s: %w", field, user.ID, err)
			}
			report.check("user", user.ID, string(field), user.Counter(field), actual)
		}
	}

	a.logger.Info("counter audit finished",
		"users", report.Users,
		"posts", report.Posts,
		"drift", len(report.Drift),
	)
	return report, nil
}

func (r *Report) check(entity, id, counter string, stored, actual int64) {
	if stored != actual {
		r.Drift = append(r.Drift, Drift{Entity: entity, ID: id, Counter: counter, Stored: stored, Actual: actual})
	}
}

// Repair recounts every drifted counter inside its own transaction and sets
// it to the recounted value. The report only says which counters to look at;
// writes that landed since the audit are part of the recount. It returns how
// many counters changed.
func (a *Auditor) Repair(ctx context.Context, report *Report) (int, error) {
	repaired := 0
	for _, d := range report.Drift {
		var delta int64
		err := a.store.Update(ctx, func(tx store.Tx) error {
			var err error
			delta, err = a.reconcile(ctx, tx, d)
			return err
		})
		if err != nil {
			return repaired, fmt.Errorf("repair %s: %w", d, err)
		}
		if delta == 0 {
			continue
		}
		repaired++
		a.logger.Info("counter repaired", "entity", d.Entity, "id", d.ID, "counter", d.Counter, "delta", delta)
	}
	return repaired, nil
}

// reconcile moves one counter to the row count seen by tx and returns the
// applied delta. A row deleted since the audit needs no repair.
func (a *Auditor) reconcile(ctx context.Context, tx store.Tx, d Drift) (int64, error) {
	switch d.Entity {
	case "post":
		field := domain.PostCounter(d.Counter)
		post, err := tx.GetPost(ctx, d.ID)
		if errors.Is(err, store.ErrNotFound) {
			return 0, nil
		}
		if err != nil {
			return 0, err
		}
		actual, err := countPostRows(ctx, tx, d.ID, field)
		if err != nil {
			return 0, err
		}
		delta := actual - post.Counter(field)
		if delta == 0 {
			return 0, nil
		}
		_, err = a.counters.AdjustPost(ctx, tx, d.ID, field, delta)
		return delta, err
	case "user":
		field := domain.UserCounter(d.Counter)
		user, err := tx.GetUser(ctx, d.ID)
		if errors.Is(err, store.ErrNotFound) {
			return 0, nil
		}
		if err != nil {
			return 0, err
		}
		actual, err := countUserRows(ctx, tx, d.ID, field)
		if err != nil {
			return 0, err
		}
		delta := actual - user.Counter(field)
		if delta == 0 {
			return 0, nil
		}
		_, err = a.counters.AdjustUser(ctx, tx, d.ID, field, delta)
		return delta, err
	default:
		return 0, fmt.Errorf("unknown entity %q", d.Entity)
	}
}

// rowCounter is satisfied by both store.Reader and store.Tx.
type rowCounter interface {
	CountPostsByUser(ctx context.Context, userID string) (int64, error)
	CountRelationsByUser(ctx context.Context, kind domain.RelationKind, userID string) (int64, error)
	CountRelationsForTarget(ctx context.Context, kind domain.RelationKind, targetID string) (int64, error)
	CountComments(ctx context.Context, postID string) (int64, error)
}

func countPostRows(ctx context.Context, c rowCounter, postID string, field domain.PostCounter) (int64, error) {
	switch field {
	case domain.PostLikes:
		return c.CountRelationsForTarget(ctx, domain.RelationLike, postID)
	case domain.PostComments:
		return c.CountComments(ctx, postID)
	default:
		return 0, fmt.Errorf("unknown post counter %q", field)
	}
}

func countUserRows(ctx context.Context, c rowCounter, userID string, field domain.UserCounter) (int64, error) {
	switch field {
	case domain.UserPosts:
		return c.CountPostsByUser(ctx, userID)
	case domain.UserFollowers:
		return c.CountRelationsForTarget(ctx, domain.RelationFollow, userID)
	case domain.UserFollowing:
		return c.CountRelationsByUser(ctx, domain.RelationFollow, userID)
	default:
		return 0, fmt.Errorf("unknown user counter %q", field)
	}
}
