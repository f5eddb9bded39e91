package cart

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/craftcart-backend/internal/products"
	"github.com/angelmondragon/craftcart-backend/pkg/db"
	"github.com/angelmondragon/craftcart-backend/pkg/db/dbtest"
	"github.com/angelmondragon/craftcart-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/craftcart-backend/pkg/errors"
)

type cartFixture struct {
	conn *gorm.DB
	svc  Service
	repo *Repository
	mug  *models.Product
	vase *models.Product
}

func newCartFixture(t *testing.T) cartFixture {
	t.Helper()
	conn := dbtest.Open(t)
	store := dbtest.SeedStore(t, conn, nil, nil)
	mug := dbtest.SeedProduct(t, conn, store.ID, "12.99", nil, nil)
	vase := dbtest.SeedProduct(t, conn, store.ID, "24.99", nil, nil)

	repo := NewRepository(conn)
	svc, err := NewService(repo, db.Wrap(conn), products.NewRepository(conn))
	require.NoError(t, err)
	return cartFixture{conn: conn, svc: svc, repo: repo, mug: mug, vase: vase}
}

func TestGetOrCreateReturnsSameCart(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()
	owner := uuid.New()

	first, err := f.svc.GetOrCreate(ctx, owner)
	require.NoError(t, err)
	second, err := f.svc.GetOrCreate(ctx, owner)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Empty(t, second.Items)
}

func TestGetOrCreateConcurrentFirstAccess(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()
	owner := uuid.New()

	const workers = 8
	ids := make([]uuid.UUID, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := f.svc.GetOrCreate(ctx, owner)
			errs[i] = err
			if c != nil {
				ids[i] = c.ID
			}
		}(i)
	}
	wg.Wait()

	for i := range ids {
		require.NoError(t, errs[i])
		require.Equal(t, ids[0], ids[i])
	}
	var count int64
	require.NoError(t, f.conn.Model(&models.Cart{}).Where("owner_id = ?", owner).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

// gatedRepo holds Create until release is closed.
type gatedRepo struct {
	*Repository
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (r *gatedRepo) Create(ctx context.Context, c *models.Cart) (*models.Cart, error) {
	r.once.Do(func() { close(r.entered) })
	<-r.release
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.Repository.Create(ctx, c)
}

func TestGetOrCreateOutlivesCancelledCaller(t *testing.T) {
	f := newCartFixture(t)
	repo := &gatedRepo{Repository: f.repo, entered: make(chan struct{}), release: make(chan struct{})}
	svc, err := NewService(repo, db.Wrap(f.conn), products.NewRepository(f.conn))
	require.NoError(t, err)
	owner := uuid.New()

	ctx, cancel := context.WithCancel(context.Background())
	type result struct {
		cart *models.Cart
		err  error
	}
	first := make(chan result, 1)
	go func() {
		c, err := svc.GetOrCreate(ctx, owner)
		first <- result{c, err}
	}()

	<-repo.entered
	cancel()
	close(repo.release)

	got := <-first
	require.NoError(t, got.err)
	require.Equal(t, owner, got.cart.OwnerID)

	again, err := svc.GetOrCreate(context.Background(), owner)
	require.NoError(t, err)
	require.Equal(t, got.cart.ID, again.ID)
}

func TestGetOrCreateRejectsMissingOwner(t *testing.T) {
	f := newCartFixture(t)
	_, err := f.svc.GetOrCreate(context.Background(), uuid.Nil)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))
}

func TestAddItemMergesQuantities(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()
	owner := uuid.New()

	_, err := f.svc.AddItem(ctx, owner, f.mug.ID, 1)
	require.NoError(t, err)
	cart, err := f.svc.AddItem(ctx, owner, f.mug.ID, 2)
	require.NoError(t, err)

	require.Len(t, cart.Items, 1)
	require.Equal(t, 3, cart.Items[0].Quantity)
	require.True(t, cart.Items[0].UnitPriceSnapshot.Valid)
	require.True(t, cart.Items[0].UnitPriceSnapshot.Decimal.Equal(decimal.RequireFromString("12.99")))
	require.NotNil(t, cart.Items[0].Product)
	require.EqualValues(t, 2, cart.Version)
}

func TestAddItemKeepsInsertionOrder(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()
	owner := uuid.New()

	_, err := f.svc.AddItem(ctx, owner, f.vase.ID, 1)
	require.NoError(t, err)
	cart, err := f.svc.AddItem(ctx, owner, f.mug.ID, 1)
	require.NoError(t, err)

	require.Len(t, cart.Items, 2)
	require.Equal(t, f.vase.ID, cart.Items[0].ProductID)
	require.Equal(t, f.mug.ID, cart.Items[1].ProductID)
}

func TestAddItemValidation(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()
	owner := uuid.New()

	_, err := f.svc.AddItem(ctx, owner, f.mug.ID, 0)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "got %v", err)

	_, err = f.svc.AddItem(ctx, owner, f.mug.ID, -2)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "got %v", err)

	_, err = f.svc.AddItem(ctx, owner, uuid.New(), 1)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound), "got %v", err)
}

func TestUpdateAndRemoveItem(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()
	owner := uuid.New()

	_, err := f.svc.UpdateItem(ctx, owner, f.mug.ID, 4)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound), "got %v", err)

	_, err = f.svc.AddItem(ctx, owner, f.mug.ID, 1)
	require.NoError(t, err)

	cart, err := f.svc.UpdateItem(ctx, owner, f.mug.ID, 4)
	require.NoError(t, err)
	require.Equal(t, 4, cart.Items[0].Quantity)

	_, err = f.svc.UpdateItem(ctx, owner, f.mug.ID, 0)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "got %v", err)

	_, err = f.svc.RemoveItem(ctx, owner, f.vase.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound), "got %v", err)

	cart, err = f.svc.RemoveItem(ctx, owner, f.mug.ID)
	require.NoError(t, err)
	require.Empty(t, cart.Items)
}

func TestClearIsIdempotent(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()
	owner := uuid.New()

	cart, err := f.svc.Clear(ctx, owner)
	require.NoError(t, err)
	require.Empty(t, cart.Items)

	_, err = f.svc.AddItem(ctx, owner, f.mug.ID, 2)
	require.NoError(t, err)
	_, err = f.svc.AddItem(ctx, owner, f.vase.ID, 1)
	require.NoError(t, err)

	cleared, err := f.svc.Clear(ctx, owner)
	require.NoError(t, err)
	require.Empty(t, cleared.Items)
	require.Equal(t, cart.ID, cleared.ID)

	again, err := f.svc.Clear(ctx, owner)
	require.NoError(t, err)
	require.Empty(t, again.Items)
}

func TestClearIfVersionRejectsStaleVersion(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()
	owner := uuid.New()

	cart, err := f.svc.AddItem(ctx, owner, f.mug.ID, 1)
	require.NoError(t, err)

	ok, err := f.repo.ClearIfVersion(ctx, cart.ID, cart.Version-1)
	require.NoError(t, err)
	require.False(t, ok)

	reloaded, err := f.repo.FindByOwner(ctx, owner)
	require.NoError(t, err)
	require.Len(t, reloaded.Items, 1)

	ok, err = f.repo.ClearIfVersion(ctx, cart.ID, cart.Version)
	require.NoError(t, err)
	require.True(t, ok)

	reloaded, err = f.repo.FindByOwner(ctx, owner)
	require.NoError(t, err)
	require.Empty(t, reloaded.Items)
	require.Equal(t, cart.Version+1, reloaded.Version)
}

func TestNewCartDTO(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()
	owner := uuid.New()

	cart, err := f.svc.AddItem(ctx, owner, f.mug.ID, 2)
	require.NoError(t, err)

	dto := NewCartDTO(cart)
	require.Equal(t, 2, dto.ItemCount)
	require.Len(t, dto.Items, 1)
	require.NotNil(t, dto.Items[0].Product)
	require.Equal(t, f.mug.Title, dto.Items[0].Product.Title)

	empty := NewCartDTO(nil)
	require.NotNil(t, empty.Items)
}
