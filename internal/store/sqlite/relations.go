package sqlite

import (
	"context"
	"iter"

	"github.com/mtorresweb/spotlight-server/internal/domain"
)

const relationColumns = `kind, user_id, target_id, created_at`

func scanRelation(sc scanner) (*domain.Relation, error) {
	var (
		r         domain.Relation
		kind      string
		createdAt string
	)
	if err := sc.Scan(&kind, &r.UserID, &r.TargetID, &createdAt); err != nil {
		return nil, err
	}
	r.Kind = domain.RelationKind(kind)

	var err error
	if r.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &r, nil
}

// RelationExists reports whether userID has a kind relation to targetID.
func (s *Store) RelationExists(ctx context.Context, kind domain.RelationKind, userID, targetID string) (bool, error) {
	n, err := countRows(ctx, s.db,
		`SELECT COUNT(*) FROM relations WHERE kind = ? AND user_id = ? AND target_id = ?`,
		string(kind), userID, targetID)
	return n > 0, err
}

// ListRelationsByUser yields userID's relations of kind, newest first.
func (s *Store) ListRelationsByUser(ctx context.Context, kind domain.RelationKind, userID string) iter.Seq2[*domain.Relation, error] {
	return querySeq(ctx, s.db, scanRelation, `
		SELECT `+relationColumns+` FROM relations
		WHERE kind = ? AND user_id = ?
		ORDER BY created_at DESC, target_id DESC`,
		string(kind), userID)
}

const (
	countByUserQuery   = `SELECT COUNT(*) FROM relations WHERE kind = ? AND user_id = ?`
	countByTargetQuery = `SELECT COUNT(*) FROM relations WHERE kind = ? AND target_id = ?`
)

// CountRelationsByUser counts userID's relations of kind.
func (s *Store) CountRelationsByUser(ctx context.Context, kind domain.RelationKind, userID string) (int64, error) {
	return countRows(ctx, s.db, countByUserQuery, string(kind), userID)
}

// CountRelationsForTarget counts the relations of kind pointing at targetID.
func (s *Store) CountRelationsForTarget(ctx context.Context, kind domain.RelationKind, targetID string) (int64, error) {
	return countRows(ctx, s.db, countByTargetQuery, string(kind), targetID)
}

func (t *tx) CountRelationsByUser(ctx context.Context, kind domain.RelationKind, userID string) (int64, error) {
	return countRows(ctx, t.q, countByUserQuery, string(kind), userID)
}

func (t *tx) CountRelationsForTarget(ctx context.Context, kind domain.RelationKind, targetID string) (int64, error) {
	return countRows(ctx, t.q, countByTargetQuery, string(kind), targetID)
}

func (t *tx) GetRelation(ctx context.Context, kind domain.RelationKind, userID, targetID string) (*domain.Relation, error) {
	row := t.q.QueryRowContext(ctx, `
		SELECT `+relationColumns+` FROM relations
		WHERE kind = ? AND user_id = ? AND target_id = ?`,
		string(kind), userID, targetID)
	r, err := scanRelation(row)
	if err != nil {
		return nil, mapError(err)
	}
	return r, nil
}

func (t *tx) CreateRelation(ctx context.Context, rel *domain.Relation) error {
	_, err := t.q.ExecContext(ctx,
		`INSERT INTO relations (`+relationColumns+`) VALUES (?, ?, ?, ?)`,
		string(rel.Kind), rel.UserID, rel.TargetID, formatTime(rel.CreatedAt))
	return mapError(err)
}

func (t *tx) DeleteRelation(ctx context.Context, kind domain.RelationKind, userID, targetID string) error {
	return execOne(ctx, t.q,
		`DELETE FROM relations WHERE kind = ? AND user_id = ? AND target_id = ?`,
		string(kind), userID, targetID)
}

func (t *tx) DeleteRelationsForTarget(ctx context.Context, kind domain.RelationKind, targetID string) (int64, error) {
	res, err := t.q.ExecContext(ctx,
		`DELETE FROM relations WHERE kind = ? AND target_id = ?`, string(kind), targetID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
