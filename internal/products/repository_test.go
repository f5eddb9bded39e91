package products

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/craftcart-backend/pkg/db/dbtest"
	pkgerrors "github.com/angelmondragon/craftcart-backend/pkg/errors"
)

func TestRepositoryFindByIDsPreloadsStore(t *testing.T) {
	conn := dbtest.Open(t)
	store := dbtest.SeedStore(t, conn, dbtest.Flag(true), nil)
	mug := dbtest.SeedProduct(t, conn, store.ID, "12.99", nil, dbtest.Flag(false))
	vase := dbtest.SeedProduct(t, conn, store.ID, "24.99", nil, nil)

	repo := NewRepository(conn)
	rows, err := repo.FindByIDs(context.Background(), []uuid.UUID{mug.ID, vase.ID, uuid.New()})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	for _, row := range rows {
		require.NotNil(t, row.Store)
		require.NotNil(t, row.Store.CODEnabled)
		require.True(t, *row.Store.CODEnabled)
	}

	empty, err := repo.FindByIDs(context.Background(), nil)
	require.NoError(t, err)
	require.Empty(t, empty)
}

func TestServicePaymentOptionsMatchesResolver(t *testing.T) {
	conn := dbtest.Open(t)
	store := dbtest.SeedStore(t, conn, dbtest.Flag(true), nil)
	overridden := dbtest.SeedProduct(t, conn, store.ID, "10.00", dbtest.Flag(false), nil)
	inherited := dbtest.SeedProduct(t, conn, store.ID, "10.00", nil, nil)

	svc, err := NewService(NewRepository(conn))
	require.NoError(t, err)

	got, err := svc.PaymentOptions(context.Background(), overridden.ID)
	require.NoError(t, err)
	require.False(t, got.CODEnabled)
	require.True(t, got.StripeEnabled)

	got, err = svc.PaymentOptions(context.Background(), inherited.ID)
	require.NoError(t, err)
	require.True(t, got.CODEnabled)
	require.True(t, got.StripeEnabled)
}

func TestServicePaymentOptionsNotFound(t *testing.T) {
	svc, err := NewService(NewRepository(dbtest.Open(t)))
	require.NoError(t, err)

	_, err = svc.PaymentOptions(context.Background(), uuid.New())
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound), "got %v", err)

	_, err = svc.PaymentOptions(context.Background(), uuid.Nil)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "got %v", err)
}
