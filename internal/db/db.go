package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	"github.com/jjudge-oj/contestd/config"
	_ "github.com/lib/pq"
)

const (
	driverName     = "postgres"
	connectTimeout = 5 * time.Second
	pingInterval   = 250 * time.Millisecond
	maxOpenConns   = 25
	maxIdleConns   = 5
	connMaxIdle    = 2 * time.Minute
	connMaxLife    = 30 * time.Minute
)

// PostgresURL builds the connection URL for cfg. The same URL is accepted
// by lib/pq and by the migrate postgres driver.
func PostgresURL(cfg config.DatabaseConfig) string {
	q := url.Values{}
	q.Set("application_name", "contestd")
	q.Set("sslmode", "disable")
	if cfg.UseSSL {
		q.Set("sslmode", "require")
	}

	u := url.URL{
		Scheme:   "postgres",
		Host:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		User:     url.UserPassword(cfg.User, cfg.Password),
		Path:     cfg.DBName,
		RawQuery: q.Encode(),
	}
	return u.String()
}

// Open connects to the configured database. The first ping is retried for
// up to connectTimeout so a database that is still starting is tolerated.
func Open(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	db, err := sql.Open(driverName, PostgresURL(cfg.Database))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxIdleTime(connMaxIdle)
	db.SetConnMaxLifetime(connMaxLife)

	if err := ping(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func ping(ctx context.Context, db *sql.DB) error {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		err := db.PingContext(ctx)
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("ping database: %w", err)
		case <-ticker.C:
		}
	}
}
