package sqlite

import (
	"context"
	"fmt"
	"iter"

	"github.com/mtorresweb/spotlight-server/internal/domain"
)

const postColumns = `id, user_id, storage_id, image_url, blur_hash, caption,
	likes_count, comments_count, created_at`

func scanPost(sc scanner) (*domain.Post, error) {
	var (
		p         domain.Post
		createdAt string
	)
	err := sc.Scan(
		&p.ID,
		&p.UserID,
		&p.StorageID,
		&p.ImageURL,
		&p.BlurHash,
		&p.Caption,
		&p.Likes,
		&p.Comments,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}
	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func getPost(ctx context.Context, q querier, id string) (*domain.Post, error) {
	p, err := scanPost(q.QueryRowContext(ctx, `SELECT `+postColumns+` FROM posts WHERE id = ?`, id))
	if err != nil {
		return nil, mapError(err)
	}
	return p, nil
}

// GetPost retrieves a post by ID.
func (s *Store) GetPost(ctx context.Context, id string) (*domain.Post, error) {
	return getPost(ctx, s.db, id)
}

// ListPosts yields every post, newest first.
func (s *Store) ListPosts(ctx context.Context) iter.Seq2[*domain.Post, error] {
	return querySeq(ctx, s.db, scanPost,
		`SELECT `+postColumns+` FROM posts ORDER BY created_at DESC, id DESC`)
}

// ListPostsByUser yields the posts of one user, newest first.
func (s *Store) ListPostsByUser(ctx context.Context, userID string) iter.Seq2[*domain.Post, error] {
	return querySeq(ctx, s.db, scanPost,
		`SELECT `+postColumns+` FROM posts WHERE user_id = ? ORDER BY created_at DESC, id DESC`, userID)
}

const countPostsByUserQuery = `SELECT COUNT(*) FROM posts WHERE user_id = ?`

// CountPostsByUser counts the posts of one user.
func (s *Store) CountPostsByUser(ctx context.Context, userID string) (int64, error) {
	return countRows(ctx, s.db, countPostsByUserQuery, userID)
}

func (t *tx) CountPostsByUser(ctx context.Context, userID string) (int64, error) {
	return countRows(ctx, t.q, countPostsByUserQuery, userID)
}

func (t *tx) GetPost(ctx context.Context, id string) (*domain.Post, error) {
	return getPost(ctx, t.q, id)
}

func (t *tx) CreatePost(ctx context.Context, post *domain.Post) error {
	_, err := t.q.ExecContext(ctx, `
		INSERT INTO posts (
			id, user_id, storage_id, image_url, blur_hash, caption,
			likes_count, comments_count, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		post.ID,
		post.UserID,
		post.StorageID,
		post.ImageURL,
		post.BlurHash,
		post.Caption,
		post.Likes,
		post.Comments,
		formatTime(post.CreatedAt),
	)
	return mapError(err)
}

func (t *tx) DeletePost(ctx context.Context, id string) error {
	return execOne(ctx, t.q, `DELETE FROM posts WHERE id = ?`, id)
}

func postCounterColumn(c domain.PostCounter) (string, error) {
	switch c {
	case domain.PostLikes:
		return "likes_count", nil
	case domain.PostComments:
		return "comments_count", nil
	default:
		return "", fmt.Errorf("unknown post counter %q", c)
	}
}

func (t *tx) AdjustPostCounter(ctx context.Context, postID string, counter domain.PostCounter, delta int64) (int64, error) {
	col, err := postCounterColumn(counter)
	if err != nil {
		return 0, err
	}
	var n int64
	err = t.q.QueryRowContext(ctx,
		`UPDATE posts SET `+col+` = `+col+` + ? WHERE id = ? RETURNING `+col,
		delta, postID,
	).Scan(&n)
	if err != nil {
		return 0, mapError(err)
	}
	return n, nil
}
