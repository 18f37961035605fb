// Package dbtest opens throwaway in-memory SQLite databases carrying the
// storefront schema for repository and service tests.
package dbtest

import (
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// schema mirrors the goose migrations closely enough for the queries the
// services issue. Postgres-only defaults are omitted; callers always set ids.
var schema = []string{
	`CREATE TABLE users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		first_name TEXT NOT NULL,
		last_name TEXT NOT NULL,
		phone TEXT,
		email_verified BOOLEAN NOT NULL DEFAULT 0,
		last_login_at DATETIME,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE UNIQUE INDEX ux_users_email ON users (lower(email))`,
	`CREATE TABLE admin_users (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL UNIQUE,
		role TEXT NOT NULL DEFAULT 'admin',
		permissions TEXT,
		created_at DATETIME
	)`,
	`CREATE TABLE addresses (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		street TEXT NOT NULL,
		city TEXT NOT NULL,
		state TEXT NOT NULL,
		zip_code TEXT NOT NULL,
		country TEXT NOT NULL DEFAULT 'US',
		is_default BOOLEAN NOT NULL DEFAULT 0,
		created_at DATETIME
	)`,
	`CREATE TABLE products (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		team TEXT NOT NULL,
		year INTEGER NOT NULL,
		price_cents INTEGER NOT NULL CHECK (price_cents >= 0),
		condition TEXT NOT NULL,
		size TEXT NOT NULL,
		description TEXT,
		sku TEXT NOT NULL,
		inventory INTEGER NOT NULL DEFAULT 1 CHECK (inventory >= 0),
		featured BOOLEAN NOT NULL DEFAULT 0,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE UNIQUE INDEX ux_products_sku ON products (sku)`,
	`CREATE TABLE product_images (
		id TEXT PRIMARY KEY,
		product_id TEXT NOT NULL,
		image_url TEXT NOT NULL,
		alt_text TEXT,
		display_order INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME
	)`,
	`CREATE TABLE cart_items (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		product_id TEXT NOT NULL,
		quantity INTEGER NOT NULL CHECK (quantity > 0),
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE UNIQUE INDEX ux_cart_items_user_product ON cart_items (user_id, product_id)`,
	`CREATE TABLE orders (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		total_cents INTEGER NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		shipping_address TEXT NOT NULL,
		tracking_number TEXT,
		notes TEXT,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE order_items (
		id TEXT PRIMARY KEY,
		order_id TEXT NOT NULL,
		product_id TEXT NOT NULL,
		product_snapshot TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		price_cents INTEGER NOT NULL,
		created_at DATETIME
	)`,
	`CREATE TABLE payments (
		id TEXT PRIMARY KEY,
		order_id TEXT NOT NULL,
		payment_method TEXT NOT NULL,
		transaction_id TEXT,
		amount_cents INTEGER NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		payment_details TEXT NOT NULL,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE UNIQUE INDEX ux_payments_method_transaction ON payments (payment_method, transaction_id) WHERE transaction_id IS NOT NULL`,
	`CREATE TABLE outbox_events (
		id TEXT PRIMARY KEY,
		event_type TEXT NOT NULL,
		aggregate_type TEXT NOT NULL,
		aggregate_id TEXT NOT NULL,
		payload TEXT NOT NULL,
		created_at DATETIME,
		published_at DATETIME,
		attempt_count INTEGER NOT NULL DEFAULT 0,
		last_error TEXT,
		terminal_at DATETIME
	)`,
}

// Open returns a fresh database named after the test with every table created.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := "file:dbtest_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
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

	for _, stmt := range schema {
		if err := conn.Exec(stmt).Error; err != nil {
			t.Fatalf("apply schema: %v", err)
		}
	}
	return conn
}
