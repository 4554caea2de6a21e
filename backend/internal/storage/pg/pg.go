// Package pg is the PostgreSQL implementation of the user and request stores.
package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"
	"github.com/vpportal/vpportal/backend/internal/service"
	"github.com/vpportal/vpportal/shared/config"
	"github.com/vpportal/vpportal/shared/logger"
	sharedpg "github.com/vpportal/vpportal/shared/storage/pg"
)

const queryTimeout = 5 * time.Second

// unique_violation
const uniqueViolation = "23505"

var (
	_ service.UserStorage    = (*Storage)(nil)
	_ service.RequestStorage = (*Storage)(nil)
)

type Storage struct {
	db *sql.DB
}

func New(ctx context.Context, cfg config.Pg) (*Storage, error) {
	logger.Log.Info("connecting to postgres", "host", cfg.Host, "db", cfg.Dbname)
	db, err := sharedpg.Connect(ctx, cfg, sharedpg.DefaultConnectionConfig())
	if err != nil {
		return nil, err
	}
	if err := Migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	logger.Log.Info("successfully connected to postgres")
	return &Storage{db: db}, nil
}

func (s *Storage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Storage) Cleanup() error {
	return s.db.Close()
}

func (s *Storage) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	return sharedpg.WithTx(ctx, s.db, fn)
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
