// Package dbtest opens throwaway sqlite databases carrying the checkout schema.
package dbtest

import (
	"fmt"
	"io"
	"log"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/craftcart-backend/pkg/db/models"
)

// sqlite mirror of the goose migrations, foreign keys included. uuids and money
// are stored as TEXT. cart_items.product_id has no foreign key: a product
// deleted from the catalog stays in carts until checkout rejects it.
var schema = []string{
	`CREATE TABLE stores (
  id TEXT PRIMARY KEY,
  owner_id TEXT NOT NULL,
  name TEXT NOT NULL,
  cod_enabled BOOLEAN,
  stripe_enabled BOOLEAN,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE products (
  id TEXT PRIMARY KEY,
  store_id TEXT NOT NULL REFERENCES stores(id) ON DELETE CASCADE,
  title TEXT NOT NULL,
  price TEXT NOT NULL,
  cod_enabled BOOLEAN,
  stripe_enabled BOOLEAN,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE carts (
  id TEXT PRIMARY KEY,
  owner_id TEXT NOT NULL UNIQUE,
  version INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE cart_items (
  id TEXT PRIMARY KEY,
  cart_id TEXT NOT NULL REFERENCES carts(id) ON DELETE CASCADE,
  product_id TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  unit_price_snapshot TEXT,
  added_at DATETIME NOT NULL,
  UNIQUE (cart_id, product_id)
);`,
	`CREATE TABLE orders (
  id TEXT PRIMARY KEY,
  owner_id TEXT NOT NULL,
  subtotal_amount TEXT NOT NULL,
  shipping_amount TEXT NOT NULL,
  total_amount TEXT NOT NULL,
  currency TEXT NOT NULL,
  delivery_address TEXT NOT NULL,
  payment_method_type TEXT NOT NULL,
  payment_method_label TEXT NOT NULL DEFAULT '',
  payment_intent_id TEXT UNIQUE,
  payment_status TEXT NOT NULL,
  status TEXT NOT NULL,
  status_history TEXT,
  idempotency_key TEXT,
  created_at DATETIME,
  updated_at DATETIME,
  UNIQUE (owner_id, idempotency_key)
);`,
	`CREATE TABLE order_items (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
  product_id TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  price TEXT NOT NULL
);`,
}

// Open returns a private in-memory database with the schema applied. A single
// connection is used so every statement sees the same memory database.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                 gormlogger.New(log.New(io.Discard, "", 0), gormlogger.Config{LogLevel: gormlogger.Silent}),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := conn.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
		t.Fatalf("enable foreign keys: %v", err)
	}
	for _, stmt := range schema {
		if err := conn.Exec(stmt).Error; err != nil {
			t.Fatalf("apply schema: %v", err)
		}
	}
	return conn
}

// Flag is a helper for the nullable payment flags.
func Flag(v bool) *bool {
	return &v
}

// SeedStore inserts a store with the given payment defaults.
func SeedStore(t testing.TB, conn *gorm.DB, cod, stripe *bool) *models.Store {
	t.Helper()
	store := &models.Store{
		ID:            uuid.New(),
		OwnerID:       uuid.New(),
		Name:          "Kiln & Co",
		CODEnabled:    cod,
		StripeEnabled: stripe,
	}
	if err := conn.Create(store).Error; err != nil {
		t.Fatalf("seed store: %v", err)
	}
	return store
}

// SeedProduct inserts a product priced in major units.
func SeedProduct(t testing.TB, conn *gorm.DB, storeID uuid.UUID, price string, cod, stripe *bool) *models.Product {
	t.Helper()
	product := &models.Product{
		ID:            uuid.New(),
		StoreID:       storeID,
		Title:         "Stoneware mug",
		Price:         decimal.RequireFromString(price),
		CODEnabled:    cod,
		StripeEnabled: stripe,
	}
	if err := conn.Create(product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return product
}
