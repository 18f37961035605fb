package migrate_test

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/classickits/jerseystore-backend/pkg/migrate"
)

func readMigration(t *testing.T, suffix string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", "*_"+suffix+".sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected exactly one %s migration, found %d", suffix, len(matches))
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}

func assertContains(t *testing.T, content string, checks []string) {
	t.Helper()
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestUsersEmailVerifiedMigrationDefaultsFalse(t *testing.T) {
	assertContains(t, readMigration(t, "add_users_email_verified"), []string{
		"ADD COLUMN IF NOT EXISTS email_verified boolean NOT NULL DEFAULT false",
		"DROP COLUMN IF EXISTS email_verified",
	})
}

func TestProductsMigrationGuardsInventory(t *testing.T) {
	assertContains(t, readMigration(t, "create_products_table"), []string{
		"CREATE TABLE IF NOT EXISTS products",
		"inventory integer NOT NULL DEFAULT 1 CHECK (inventory >= 0)",
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_products_sku",
		"CREATE TABLE IF NOT EXISTS product_images",
		"DROP TABLE IF EXISTS products",
	})
}

func TestOrdersMigrationConstrainsStatus(t *testing.T) {
	assertContains(t, readMigration(t, "create_orders_table"), []string{
		"CREATE TABLE IF NOT EXISTS orders",
		"CHECK (status IN ('pending', 'processing', 'shipped', 'delivered', 'cancelled'))",
		"shipping_address jsonb NOT NULL",
		"CREATE TABLE IF NOT EXISTS order_items",
		"product_snapshot jsonb NOT NULL",
		"DROP TABLE IF EXISTS order_items",
	})
}

func TestPaymentsMigrationIndexesTransactions(t *testing.T) {
	assertContains(t, readMigration(t, "create_payments_table"), []string{
		"CHECK (payment_method IN ('stripe', 'paypal', 'square'))",
		"CHECK (status IN ('pending', 'completed', 'failed', 'refunded'))",
		"ux_payments_method_transaction",
		"WHERE transaction_id IS NOT NULL",
	})
}

func TestMigrationsDirIsValid(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("validate migrations: %v", err)
	}
}

func TestEmbeddedMatchesDisk(t *testing.T) {
	if err := migrate.Validate(migrate.Embedded()); err != nil {
		t.Fatalf("validate embedded migrations: %v", err)
	}
	onDisk, err := filepath.Glob(filepath.Join("migrations", "*.sql"))
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	embedded, err := fs.Glob(migrate.Embedded(), "*.sql")
	if err != nil {
		t.Fatalf("glob embedded: %v", err)
	}
	if len(onDisk) != len(embedded) {
		t.Fatalf("embedded set has %d files, disk has %d", len(embedded), len(onDisk))
	}
}

func TestValidateRejectsMissingDownSection(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "20250301090000_only_up.sql"), []byte("-- +goose Up\nSELECT 1;\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := migrate.ValidateDir(dir); err == nil || !strings.Contains(err.Error(), "goose Down") {
		t.Fatalf("expected missing down section error, got %v", err)
	}
}

func TestNewRequiresDB(t *testing.T) {
	if _, err := migrate.New(nil, nil); err == nil {
		t.Fatal("expected error without db")
	}
}

func TestCreateSQLMigration(t *testing.T) {
	dir := t.TempDir()
	path, err := migrate.CreateSQLMigration(dir, "Add Jersey Tags!")
	if err != nil {
		t.Fatalf("create migration: %v", err)
	}
	if !strings.HasSuffix(path, "_add_jersey_tags.sql") {
		t.Fatalf("unexpected sanitized filename %s", path)
	}
	if err := migrate.ValidateDir(dir); err != nil {
		t.Fatalf("generated migration should validate: %v", err)
	}
	if _, err := migrate.CreateSQLMigration(dir, "!!!"); err == nil {
		t.Fatal("expected empty sanitized name to fail")
	}
}

func TestValidateDirRejectsBadNames(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "001_bad.sql"), []byte("-- +goose Up\n-- +goose Down\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := migrate.ValidateDir(dir); err == nil {
		t.Fatal("expected invalid filename error")
	}
}
