package sqlite

import (
	"context"
	"fmt"
	"iter"
	"strings"

	"github.com/mtorresweb/spotlight-server/internal/domain"
)

// userColumns is the ordered list of columns selected in user queries.
// Must match the scan order in scanUser.
const userColumns = `id, principal, email, username, full_name, bio, image,
	posts_count, followers_count, following_count, created_at, updated_at`

// scanUser scans a sql.Row (or sql.Rows via its Scan method) into a domain.User.
func scanUser(sc scanner) (*domain.User, error) {
	var (
		u         domain.User
		createdAt string
		updatedAt string
	)
	err := sc.Scan(
		&u.ID,
		&u.Principal,
		&u.Email,
		&u.Username,
		&u.FullName,
		&u.Bio,
		&u.Image,
		&u.Posts,
		&u.Followers,
		&u.Following,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if u.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if u.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

func getUserWhere(ctx context.Context, q querier, where string, arg any) (*domain.User, error) {
	row := q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE `+where, arg)
	u, err := scanUser(row)
	if err != nil {
		return nil, mapError(err)
	}
	return u, nil
}

// GetUser retrieves a user by ID.
// Returns store.ErrNotFound if the user does not exist.
func (s *Store) GetUser(ctx context.Context, id string) (*domain.User, error) {
	return getUserWhere(ctx, s.db, "id = ?", id)
}

// GetUserByPrincipal retrieves the user mapped to an identity provider subject.
func (s *Store) GetUserByPrincipal(ctx context.Context, principal string) (*domain.User, error) {
	return getUserWhere(ctx, s.db, "principal = ?", principal)
}

// ListUsers yields every user ordered by ID.
func (s *Store) ListUsers(ctx context.Context) iter.Seq2[*domain.User, error] {
	return querySeq(ctx, s.db, scanUser, `SELECT `+userColumns+` FROM users ORDER BY id`)
}

func (t *tx) GetUser(ctx context.Context, id string) (*domain.User, error) {
	return getUserWhere(ctx, t.q, "id = ?", id)
}

func (t *tx) GetUserByPrincipal(ctx context.Context, principal string) (*domain.User, error) {
	return getUserWhere(ctx, t.q, "principal = ?", principal)
}

func (t *tx) UsernameTaken(ctx context.Context, username string) (bool, error) {
	n, err := countRows(ctx, t.q, `SELECT COUNT(*) FROM users WHERE username_lower = ?`, strings.ToLower(username))
	return n > 0, err
}

// CreateUser inserts a new user.
// Returns store.ErrAlreadyExists if the ID, principal or username is taken.
func (t *tx) CreateUser(ctx context.Context, user *domain.User) error {
	_, err := t.q.ExecContext(ctx, `
		INSERT INTO users (
			id, principal, email, username, username_lower, full_name, bio, image,
			posts_count, followers_count, following_count, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Principal,
		user.Email,
		user.Username,
		nullString(strings.ToLower(user.Username)),
		user.FullName,
		user.Bio,
		user.Image,
		user.Posts,
		user.Followers,
		user.Following,
		formatTime(user.CreatedAt),
		formatTime(user.UpdatedAt),
	)
	return mapError(err)
}

// UpdateUser writes profile fields; counter columns are never touched.
func (t *tx) UpdateUser(ctx context.Context, user *domain.User) error {
	return execOne(ctx, t.q, `
		UPDATE users SET
			principal = ?, email = ?, username = ?, username_lower = ?,
			full_name = ?, bio = ?, image = ?, updated_at = ?
		WHERE id = ?`,
		user.Principal,
		user.Email,
		user.Username,
		nullString(strings.ToLower(user.Username)),
		user.FullName,
		user.Bio,
		user.Image,
		formatTime(user.UpdatedAt),
		user.ID,
	)
}

func userCounterColumn(c domain.UserCounter) (string, error) {
	switch c {
	case domain.UserPosts:
		return "posts_count", nil
	case domain.UserFollowers:
		return "followers_count", nil
	case domain.UserFollowing:
		return "following_count", nil
	default:
		return "", fmt.Errorf("unknown user counter %q", c)
	}
}

func (t *tx) AdjustUserCounter(ctx context.Context, userID string, counter domain.UserCounter, delta int64) (int64, error) {
	col, err := userCounterColumn(counter)
	if err != nil {
		return 0, err
	}
	var n int64
	err = t.q.QueryRowContext(ctx,
		`UPDATE users SET `+col+` = `+col+` + ? WHERE id = ? RETURNING `+col,
		delta, userID,
	).Scan(&n)
	if err != nil {
		return 0, mapError(err)
	}
	return n, nil
}
