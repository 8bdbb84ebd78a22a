package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/mtorresweb/spotlight-server/internal/domain"
	"github.com/mtorresweb/spotlight-server/internal/store"
	"github.com/mtorresweb/spotlight-server/internal/store/storetest"
)

func TestCreateUser_UsernameUniqueIgnoresCase(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	storetest.Seed(t, s, []*domain.User{storetest.NewUser("Alice")}, nil)

	dup := storetest.NewUser("alice")
	err := s.Update(ctx, func(tx store.Tx) error { return tx.CreateUser(ctx, dup) })
	if !errors.Is(err, store.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestCreateUser_EmptyUsernamesDoNotCollide(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a, b := storetest.NewUser("a"), storetest.NewUser("b")
	a.Username, b.Username = "", ""

	err := s.Update(ctx, func(tx store.Tx) error {
		if err := tx.CreateUser(ctx, a); err != nil {
			return err
		}
		return tx.CreateUser(ctx, b)
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
}

func TestUpdateUser_Missing(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.Update(ctx, func(tx store.Tx) error {
		return tx.UpdateUser(ctx, storetest.NewUser("ghost"))
	})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAdjustUserCounter_UnknownCounter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := storetest.NewUser("ana")
	storetest.Seed(t, s, []*domain.User{u}, nil)

	err := s.Update(ctx, func(tx store.Tx) error {
		_, err := tx.AdjustUserCounter(ctx, u.ID, domain.UserCounter("karma"), 1)
		return err
	})
	if err == nil {
		t.Fatal("expected error for unknown counter")
	}
}
