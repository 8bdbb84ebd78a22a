package sqlite

import (
	"context"
	"iter"

	"github.com/mtorresweb/spotlight-server/internal/domain"
)

const commentColumns = `id, post_id, author_id, text, created_at`

func scanComment(sc scanner) (*domain.Comment, error) {
	var (
		c         domain.Comment
		createdAt string
	)
	if err := sc.Scan(&c.ID, &c.PostID, &c.AuthorID, &c.Text, &createdAt); err != nil {
		return nil, err
	}
	var err error
	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &c, nil
}

// ListComments yields the comments on a post, oldest first.
func (s *Store) ListComments(ctx context.Context, postID string) iter.Seq2[*domain.Comment, error] {
	return querySeq(ctx, s.db, scanComment, `
		SELECT `+commentColumns+` FROM comments
		WHERE post_id = ?
		ORDER BY created_at, id`,
		postID)
}

// CountComments counts the comments on a post.
func (s *Store) CountComments(ctx context.Context, postID string) (int64, error) {
	return countRows(ctx, s.db, countCommentsQuery, postID)
}

func (t *tx) CountComments(ctx context.Context, postID string) (int64, error) {
	return countRows(ctx, t.q, countCommentsQuery, postID)
}

const countCommentsQuery = `SELECT COUNT(*) FROM comments WHERE post_id = ?`

func (t *tx) CreateComment(ctx context.Context, c *domain.Comment) error {
	_, err := t.q.ExecContext(ctx,
		`INSERT INTO comments (`+commentColumns+`) VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.PostID, c.AuthorID, c.Text, formatTime(c.CreatedAt))
	return mapError(err)
}

func (t *tx) DeleteCommentsForPost(ctx context.Context, postID string) (int64, error) {
	res, err := t.q.ExecContext(ctx, `DELETE FROM comments WHERE post_id = ?`, postID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
