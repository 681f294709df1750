// Package postgres provides a PostgreSQL-backed storage driver, for a chat
// history shared between machines.
package postgres

import (
	"context"
	"fmt"
	"time"

	"entgo.io/ent/dialect"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/papercomputeco/serenity/pkg/storage/sqlstore"
)

const (
	// ApplicationName is reported to the server unless the DSN names one.
	ApplicationName = "serenity"

	maxOpenConns    = 4
	connMaxIdleTime = 5 * time.Minute
)

// Driver implements storage.Driver using PostgreSQL via sqlstore.
type Driver struct {
	*sqlstore.Store
}

// NewDriver connects to the database described by dsn and makes sure the
// chat tables exist. dsn is a keyword/value string such as
// "host=localhost user=serenity dbname=serenity sslmode=disable" or a URI
// such as "postgres://serenity@localhost:5432/serenity".
func NewDriver(ctx context.Context, dsn string) (*Driver, error) {
	cfg, err := pgx.ParseConfig(dsn)
	if err != nil {
		// pgx redacts the password in parse errors.
		return nil, fmt.Errorf("parsing postgres dsn: %w", err)
	}
	if _, ok := cfg.RuntimeParams["application_name"]; !ok {
		cfg.RuntimeParams["application_name"] = ApplicationName
	}

	db := stdlib.OpenDB(*cfg)
	db.SetMaxOpenConns(maxOpenConns)
	db.SetConnMaxIdleTime(connMaxIdleTime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("reaching postgres at %s: %w", cfg.Host, err)
	}

	store, err := sqlstore.Open(ctx, dialect.Postgres, db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Driver{Store: store}, nil
}
