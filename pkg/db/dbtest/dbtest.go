// Package dbtest opens sqlite databases carrying the engine schema for
// repository and service tests.
package dbtest

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/codebrew/pos-backend/pkg/db"
	"github.com/codebrew/pos-backend/pkg/db/models"
)

// schema mirrors pkg/migrate/migrations in sqlite syntax. Decimals are stored
// as TEXT so shopspring values round-trip without float conversion.
var schema = []string{
	`CREATE TABLE branches (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT 1,
		created_at DATETIME
	)`,
	`CREATE TABLE products (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		sku TEXT NOT NULL,
		unit_price TEXT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT 1,
		created_at DATETIME
	)`,
	`CREATE TABLE payment_methods (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		is_active BOOLEAN NOT NULL DEFAULT 1
	)`,
	`CREATE TABLE discounts (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL
	)`,
	`CREATE TABLE inventory_records (
		id TEXT PRIMARY KEY,
		product_id TEXT NOT NULL REFERENCES products(id),
		branch_id TEXT NOT NULL REFERENCES branches(id),
		quantity INTEGER NOT NULL DEFAULT 0,
		low_stock_threshold INTEGER,
		created_at DATETIME,
		updated_at DATETIME,
		CONSTRAINT inventory_records_quantity_check CHECK (quantity >= 0),
		CONSTRAINT inventory_records_threshold_check CHECK (low_stock_threshold IS NULL OR low_stock_threshold >= 0)
	)`,
	`CREATE UNIQUE INDEX ux_inventory_records_product_branch ON inventory_records (product_id, branch_id)`,
	`CREATE TABLE orders (
		id TEXT PRIMARY KEY,
		branch_id TEXT NOT NULL REFERENCES branches(id),
		user_id TEXT NOT NULL,
		subtotal_amount TEXT NOT NULL,
		tax_amount TEXT NOT NULL,
		discount_amount TEXT NOT NULL,
		total_amount TEXT NOT NULL,
		status TEXT NOT NULL CHECK (status IN ('completed', 'voided')),
		voided_at DATETIME,
		voided_by TEXT,
		created_at DATETIME
	)`,
	`CREATE TABLE order_items (
		id TEXT PRIMARY KEY,
		order_id TEXT NOT NULL REFERENCES orders(id),
		product_id TEXT NOT NULL REFERENCES products(id),
		quantity INTEGER NOT NULL CHECK (quantity > 0),
		unit_price TEXT NOT NULL,
		created_at DATETIME
	)`,
	`CREATE TABLE payments (
		id TEXT PRIMARY KEY,
		order_id TEXT NOT NULL REFERENCES orders(id),
		payment_method_id TEXT NOT NULL REFERENCES payment_methods(id),
		amount_paid TEXT NOT NULL,
		created_at DATETIME
	)`,
	`CREATE TABLE order_discounts (
		order_id TEXT NOT NULL REFERENCES orders(id),
		discount_id TEXT NOT NULL REFERENCES discounts(id),
		PRIMARY KEY (order_id, discount_id)
	)`,
	`CREATE TABLE stock_transfers (
		id TEXT PRIMARY KEY,
		product_id TEXT NOT NULL REFERENCES products(id),
		from_branch_id TEXT NOT NULL REFERENCES branches(id),
		to_branch_id TEXT NOT NULL REFERENCES branches(id),
		quantity INTEGER NOT NULL CHECK (quantity > 0),
		initiated_by_user_id TEXT NOT NULL,
		notes TEXT,
		created_at DATETIME,
		CONSTRAINT stock_transfers_distinct_branches CHECK (from_branch_id <> to_branch_id)
	)`,
	`CREATE TABLE inventory_logs (
		id TEXT PRIMARY KEY,
		seq INTEGER,
		product_id TEXT NOT NULL REFERENCES products(id),
		branch_id TEXT NOT NULL REFERENCES branches(id),
		user_id TEXT NOT NULL,
		change_quantity INTEGER NOT NULL,
		new_quantity INTEGER NOT NULL CONSTRAINT inventory_logs_new_quantity_check CHECK (new_quantity >= 0),
		reason TEXT NOT NULL,
		note TEXT,
		order_id TEXT REFERENCES orders(id),
		stock_transfer_id TEXT REFERENCES stock_transfers(id),
		created_at DATETIME
	)`,
	`CREATE TRIGGER inventory_logs_seq AFTER INSERT ON inventory_logs
	BEGIN
		UPDATE inventory_logs SET seq = NEW.rowid WHERE rowid = NEW.rowid;
	END`,
	`CREATE TABLE outbox_events (
		id TEXT PRIMARY KEY,
		event_type TEXT NOT NULL,
		aggregate_type TEXT NOT NULL,
		aggregate_id TEXT NOT NULL,
		payload TEXT NOT NULL,
		created_at DATETIME,
		published_at DATETIME,
		attempt_count INTEGER NOT NULL DEFAULT 0,
		last_error TEXT
	)`,
	`CREATE TABLE outbox_dlq (
		id TEXT PRIMARY KEY,
		event_id TEXT NOT NULL UNIQUE,
		event_type TEXT NOT NULL,
		aggregate_type TEXT NOT NULL,
		aggregate_id TEXT NOT NULL,
		payload_json TEXT NOT NULL,
		error_reason TEXT NOT NULL,
		error_message TEXT,
		attempt_count INTEGER NOT NULL DEFAULT 0,
		failed_at DATETIME,
		created_at DATETIME
	)`,
}

// Open returns an isolated in-memory database on a single connection.
func Open(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:pos_" + uuid.NewString() + "?mode=memory&cache=shared&_foreign_keys=1"
	conn := open(t, dsn)
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	return conn
}

// OpenFile returns a file-backed database that serializes writers, for tests
// that run transactions from several goroutines.
func OpenFile(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + t.TempDir() + "/pos.db?_busy_timeout=10000&_txlock=immediate&_foreign_keys=1&_journal_mode=WAL"
	return open(t, dsn)
}

func open(t *testing.T, dsn string) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open(dsn), db.GormConfig())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	for _, stmt := range schema {
		if err := conn.Exec(stmt).Error; err != nil {
			t.Fatalf("apply schema: %v", err)
		}
	}
	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return conn
}

// Fixtures holds the reference rows most engine tests need.
type Fixtures struct {
	BranchA       uuid.UUID
	BranchB       uuid.UUID
	Product       uuid.UUID
	SecondProduct uuid.UUID
	PaymentMethod uuid.UUID
	Discount      uuid.UUID
}

// Seed inserts two branches, two products, a payment method and a discount.
func Seed(t *testing.T, conn *gorm.DB) Fixtures {
	t.Helper()
	f := Fixtures{
		BranchA:       uuid.New(),
		BranchB:       uuid.New(),
		Product:       uuid.New(),
		SecondProduct: uuid.New(),
		PaymentMethod: uuid.New(),
		Discount:      uuid.New(),
	}
	branches := []models.Branch{
		{ID: f.BranchA, Name: "Downtown", IsActive: true},
		{ID: f.BranchB, Name: "Airport", IsActive: true},
	}
	products := []models.Product{
		{ID: f.Product, Name: "Espresso Beans", SKU: "ESP-1", UnitPrice: decimal.RequireFromString("12.50"), IsActive: true},
		{ID: f.SecondProduct, Name: "Ceramic Mug", SKU: "MUG-1", UnitPrice: decimal.RequireFromString("8.00"), IsActive: true},
	}
	if err := conn.Create(&branches).Error; err != nil {
		t.Fatalf("seed branches: %v", err)
	}
	if err := conn.Create(&products).Error; err != nil {
		t.Fatalf("seed products: %v", err)
	}
	if err := conn.Exec("INSERT INTO payment_methods (id, name) VALUES (?, ?)", f.PaymentMethod.String(), "Cash").Error; err != nil {
		t.Fatalf("seed payment method: %v", err)
	}
	if err := conn.Exec("INSERT INTO discounts (id, name) VALUES (?, ?)", f.Discount.String(), "Loyalty").Error; err != nil {
		t.Fatalf("seed discount: %v", err)
	}
	return f
}
