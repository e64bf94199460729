package database

import (
	"context"
	"sync"
	"testing"

	"account-service/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAccount(email string) *models.Account {
	return &models.Account{Email: email, Password: "hash", Role: models.RoleCoolKid}
}

func TestMemoryStoreCreateAndFind(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	a := newAccount("kid@example.com")
	a.FirstName = "Ada"
	a.LastName = "Lovelace"
	require.NoError(t, store.Create(ctx, a))
	require.NotEmpty(t, a.ID)
	assert.False(t, a.CreatedAt.IsZero())

	byID, err := store.FindByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "kid@example.com", byID.Email)

	byName, err := store.FindOne(ctx, models.AccountQuery{FirstName: "Ada", LastName: "Lovelace"})
	require.NoError(t, err)
	assert.Equal(t, a.ID, byName.ID)

	_, err = store.FindOne(ctx, models.AccountQuery{Email: "nobody@example.com"})
	assert.ErrorIs(t, err, models.ErrAccountNotFound)

	_, err = store.FindByID(ctx, "missing")
	assert.ErrorIs(t, err, models.ErrAccountNotFound)
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	a := newAccount("kid@example.com")
	require.NoError(t, store.Create(ctx, a))

	got, err := store.FindByID(ctx, a.ID)
	require.NoError(t, err)
	got.Role = models.RoleCoolestKid

	again, err := store.FindByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleCoolKid, again.Role)
}

func TestMemoryStoreEmailUniqueUnderConcurrency(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- store.Create(ctx, newAccount("same@example.com"))
		}()
	}
	wg.Wait()
	close(errs)

	created := 0
	for err := range errs {
		if err == nil {
			created++
			continue
		}
		assert.ErrorIs(t, err, models.ErrEmailTaken)
	}
	assert.Equal(t, 1, created)

	all, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestMemoryStoreUpdate(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	first := newAccount("first@example.com")
	second := newAccount("second@example.com")
	require.NoError(t, store.Create(ctx, first))
	require.NoError(t, store.Create(ctx, second))

	taken := "second@example.com"
	err := store.Update(ctx, first.ID, models.AccountChanges{Email: &taken})
	assert.ErrorIs(t, err, models.ErrEmailTaken)

	email := "renamed@example.com"
	country := "NL"
	err = store.Update(ctx, first.ID, models.AccountChanges{
		Email:   &email,
		Profile: models.Profile{Country: &country, Extra: map[string]interface{}{"hobby": "chess"}},
	})
	require.NoError(t, err)

	got, err := store.FindOne(ctx, models.AccountQuery{Email: "renamed@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "NL", got.Country)
	assert.Equal(t, "chess", got.Extra["hobby"])

	// the old address is free again
	require.NoError(t, store.Create(ctx, newAccount("first@example.com")))

	assert.ErrorIs(t, store.Update(ctx, "missing", models.AccountChanges{}), models.ErrAccountNotFound)
}

func TestMemoryStoreTokenRoleDelete(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	a := newAccount("kid@example.com")
	require.NoError(t, store.Create(ctx, a))

	require.NoError(t, store.SetToken(ctx, a.ID, "jwt"))
	require.NoError(t, store.SetRole(ctx, a.ID, models.RoleCoolerKid))
	require.NoError(t, store.SetRole(ctx, a.ID, models.RoleCoolerKid))

	got, err := store.FindByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "jwt", got.Token)
	assert.Equal(t, models.RoleCoolerKid, got.Role)

	require.NoError(t, store.Delete(ctx, a.ID))
	assert.ErrorIs(t, store.Delete(ctx, a.ID), models.ErrAccountNotFound)
	assert.ErrorIs(t, store.SetToken(ctx, a.ID, "x"), models.ErrAccountNotFound)

	require.NoError(t, store.Create(ctx, newAccount("kid@example.com")))
}
