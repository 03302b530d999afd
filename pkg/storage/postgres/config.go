package postgres

import (
	"cmp"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Config describes the connection pool. Zero values pick the defaults
// noted on each field.
type Config struct {
	DSN string

	MaxConns        int32         // 10
	MinConns        int32         // 1
	MaxConnLifetime time.Duration // 5m

	// ApplicationName is reported to the server as application_name
	// unless the DSN already sets it. Default "twinbot".
	ApplicationName string

	// MigrateOnStart applies the embedded schema migrations in New.
	MigrateOnStart bool
}

// poolConfig parses the DSN and applies the pool limits.
func (c Config) poolConfig() (*pgxpool.Config, error) {
	pc, err := pgxpool.ParseConfig(c.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing DSN: %w", err)
	}

	pc.MaxConns = cmp.Or(c.MaxConns, 10)
	pc.MinConns = min(cmp.Or(c.MinConns, 1), pc.MaxConns)
	pc.MaxConnLifetime = cmp.Or(c.MaxConnLifetime, 5*time.Minute)

	params := pc.ConnConfig.RuntimeParams
	if _, set := params["application_name"]; !set {
		params["application_name"] = cmp.Or(c.ApplicationName, "twinbot")
	}
	return pc, nil
}
