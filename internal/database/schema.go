package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// Field is one column of an entity.
type Field struct {
	Name string
	Type string
}

// Entity describes one persisted collection.
type Entity struct {
	Name        string
	Fields      []Field
	Constraints []string
	Indexes     []string
}

// registry is built once at package init and never mutated. Order matters:
// referenced tables come first.
var registry = []Entity{
	{
		Name: "products",
		Fields: []Field{
			{"id", "TEXT PRIMARY KEY"},
			{"name", "TEXT NOT NULL"},
			{"price_cents", "BIGINT NOT NULL CHECK (price_cents >= 0)"},
			{"image", "TEXT NOT NULL DEFAULT ''"},
			{"stock_quantity", "INTEGER NOT NULL DEFAULT 0 CHECK (stock_quantity >= 0)"},
			{"in_stock", "BOOLEAN NOT NULL DEFAULT FALSE"},
			{"created_at", "TIMESTAMPTZ NOT NULL DEFAULT NOW()"},
		},
	},
	{
		Name: "product_variation_options",
		Fields: []Field{
			{"product_id", "TEXT NOT NULL REFERENCES products(id) ON DELETE CASCADE"},
			{"group_name", "TEXT NOT NULL"},
			{"group_position", "INTEGER NOT NULL DEFAULT 0"},
			{"value", "TEXT NOT NULL"},
			{"position", "INTEGER NOT NULL DEFAULT 0"},
			{"price_adjustment_cents", "BIGINT NOT NULL DEFAULT 0"},
			{"stock_quantity", "INTEGER NOT NULL DEFAULT 0 CHECK (stock_quantity >= 0)"},
			{"in_stock", "BOOLEAN NOT NULL DEFAULT FALSE"},
		},
		Constraints: []string{"PRIMARY KEY (product_id, group_name, value)"},
	},
	{
		Name: "users",
		Fields: []Field{
			{"id", "UUID PRIMARY KEY"},
			{"email", "TEXT NOT NULL"},
			{"name", "TEXT NOT NULL DEFAULT ''"},
			{"bonus_points", "BIGINT NOT NULL DEFAULT 0 CHECK (bonus_points >= 0)"},
			{"created_at", "TIMESTAMPTZ NOT NULL DEFAULT NOW()"},
		},
		Indexes: []string{"CREATE UNIQUE INDEX IF NOT EXISTS users_email_key ON users (LOWER(email))"},
	},
	{
		Name: "discount_codes",
		Fields: []Field{
			{"id", "UUID PRIMARY KEY"},
			{"code", "TEXT NOT NULL"},
			{"type", "TEXT NOT NULL CHECK (type IN ('percent', 'fixed'))"},
			{"value", "DOUBLE PRECISION NOT NULL CHECK (value >= 0)"},
			{"starts_at", "TIMESTAMPTZ"},
			{"ends_at", "TIMESTAMPTZ"},
			{"active", "BOOLEAN NOT NULL DEFAULT TRUE"},
			{"one_time_use", "BOOLEAN NOT NULL DEFAULT FALSE"},
			{"max_global_uses", "INTEGER"},
			{"global_uses", "INTEGER NOT NULL DEFAULT 0"},
			{"created_at", "TIMESTAMPTZ NOT NULL DEFAULT NOW()"},
		},
		Constraints: []string{"CONSTRAINT discount_codes_code_key UNIQUE (code)"},
	},
	{
		Name: "orders",
		Fields: []Field{
			{"id", "UUID PRIMARY KEY"},
			{"order_number", "TEXT NOT NULL"},
			{"user_id", "UUID REFERENCES users(id)"},
			{"guest_email", "TEXT NOT NULL DEFAULT ''"},
			{"guest_name", "TEXT NOT NULL DEFAULT ''"},
			{"guest_email_hash", "TEXT NOT NULL DEFAULT ''"},
			{"items", "JSONB NOT NULL"},
			{"shipping_address", "JSONB NOT NULL"},
			{"billing_address", "JSONB"},
			{"payment_method", "TEXT NOT NULL"},
			{"subtotal_cents", "BIGINT NOT NULL"},
			{"shipping_cents", "BIGINT NOT NULL"},
			{"discount_cents", "BIGINT NOT NULL DEFAULT 0"},
			{"discount_id", "UUID REFERENCES discount_codes(id)"},
			{"discount_code", "TEXT NOT NULL DEFAULT ''"},
			{"points_discount_cents", "BIGINT NOT NULL DEFAULT 0"},
			{"total_cents", "BIGINT NOT NULL CHECK (total_cents >= 0)"},
			{"bonus_points_earned", "BIGINT NOT NULL DEFAULT 0"},
			{"bonus_points_redeemed", "BIGINT NOT NULL DEFAULT 0"},
			{"bonus_points_scheduled_at", "TIMESTAMPTZ"},
			{"status", "TEXT NOT NULL"},
			{"tracking_info", "JSONB NOT NULL DEFAULT '[]'"},
			{"shipped_at", "TIMESTAMPTZ"},
			{"delivered_at", "TIMESTAMPTZ"},
			{"created_at", "TIMESTAMPTZ NOT NULL DEFAULT NOW()"},
			{"updated_at", "TIMESTAMPTZ NOT NULL DEFAULT NOW()"},
		},
		Constraints: []string{"CONSTRAINT orders_order_number_key UNIQUE (order_number)"},
		Indexes: []string{
			"CREATE INDEX IF NOT EXISTS idx_orders_discount_user ON orders (discount_id, user_id)",
			"CREATE INDEX IF NOT EXISTS idx_orders_guest_email ON orders (LOWER(guest_email)) WHERE user_id IS NULL",
		},
	},
	{
		Name: "point_grants",
		Fields: []Field{
			{"id", "UUID PRIMARY KEY"},
			{"user_id", "UUID NOT NULL REFERENCES users(id)"},
			{"source", "TEXT NOT NULL CHECK (source IN ('order', 'review', 'admin'))"},
			{"source_ref", "TEXT NOT NULL"},
			{"reason", "TEXT NOT NULL DEFAULT ''"},
			{"points_awarded", "BIGINT NOT NULL CHECK (points_awarded >= 0)"},
			{"credited", "BOOLEAN NOT NULL DEFAULT FALSE"},
			{"scheduled_at", "TIMESTAMPTZ NOT NULL"},
			{"credited_at", "TIMESTAMPTZ"},
			{"created_at", "TIMESTAMPTZ NOT NULL DEFAULT NOW()"},
		},
		Constraints: []string{"CONSTRAINT point_grants_source_key UNIQUE (source, source_ref)"},
		Indexes: []string{
			"CREATE INDEX IF NOT EXISTS idx_point_grants_due ON point_grants (scheduled_at) WHERE NOT credited",
			"CREATE INDEX IF NOT EXISTS idx_point_grants_user ON point_grants (user_id)",
		},
	},
	{
		Name: "return_requests",
		Fields: []Field{
			{"id", "UUID PRIMARY KEY"},
			{"order_id", "UUID NOT NULL REFERENCES orders(id)"},
			{"order_number", "TEXT NOT NULL"},
			{"user_id", "UUID"},
			{"items", "JSONB NOT NULL"},
			{"status", "TEXT NOT NULL"},
			{"notes", "TEXT NOT NULL DEFAULT ''"},
			{"created_at", "TIMESTAMPTZ NOT NULL DEFAULT NOW()"},
			{"updated_at", "TIMESTAMPTZ NOT NULL DEFAULT NOW()"},
		},
		Indexes: []string{"CREATE INDEX IF NOT EXISTS idx_return_requests_order ON return_requests (order_id)"},
	},
	{
		Name: "order_sequences",
		Fields: []Field{
			{"year", "INTEGER PRIMARY KEY"},
			{"value", "BIGINT NOT NULL"},
		},
	},
}

// Entities returns a copy of the registered entities in creation order.
func Entities() []Entity {
	out := make([]Entity, len(registry))
	copy(out, registry)
	return out
}

// Lookup returns the entity registered under name.
func Lookup(name string) (Entity, bool) {
	for _, e := range registry {
		if e.Name == name {
			return e, true
		}
	}
	return Entity{}, false
}

// Columns returns the entity's column names in declaration order.
func (e Entity) Columns() []string {
	cols := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		cols[i] = f.Name
	}
	return cols
}

// DDL renders the CREATE TABLE statement followed by index statements.
func (e Entity) DDL() []string {
	defs := make([]string, 0, len(e.Fields)+len(e.Constraints))
	for _, f := range e.Fields {
		defs = append(defs, f.Name+" "+f.Type)
	}
	defs = append(defs, e.Constraints...)

	stmts := []string{
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)", e.Name, strings.Join(defs, ",\n\t")),
	}
	return append(stmts, e.Indexes...)
}

// Migrate creates every registered table and index that does not exist yet.
func Migrate(ctx context.Context, pool *pgxpool.Pool, logger zerolog.Logger) error {
	err := pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		for _, e := range registry {
			for _, stmt := range e.DDL() {
				if _, err := tx.Exec(ctx, stmt); err != nil {
					return fmt.Errorf("failed to migrate %s: %w", e.Name, err)
				}
			}
		}
		return nil
	})
	if err != nil {
		logger.Error().Err(err).Msg("schema migration failed")
		return err
	}

	logger.Info().Int("entities", len(registry)).Msg("schema migrated")
	return nil
}
