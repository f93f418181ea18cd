package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type OrderBy int

const (
	OrderByASC OrderBy = iota
	OrderByDESC
)

// Database wraps a pgx connection pool. All access to persisted state goes
// through its methods; no caller builds SQL of its own.
type Database struct {
	Pool *pgxpool.Pool
}

func NewDatabase() Database {
	return Database{
		Pool: nil,
	}
}

type ConnectParams struct {
	ConnString string
	// MaxConns caps the pool; MinConns keeps that many connections warm.
	// Zero leaves the pgx default in place.
	MaxConns int32
	MinConns int32
}

func poolConfig(params ConnectParams) (*pgxpool.Config, error) {
	config, err := pgxpool.ParseConfig(params.ConnString)
	if err != nil {
		return nil, fmt.Errorf("database: unable to parse configuration: %w", err)
	}
	if params.MaxConns > 0 {
		config.MaxConns = params.MaxConns
	}
	if params.MinConns > 0 {
		config.MinConns = params.MinConns
	}
	return config, nil
}

func (db *Database) Connect(ctx context.Context, params ConnectParams) error {
	config, err := poolConfig(params)
	if err != nil {
		return err
	}

	db.Pool, err = pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return fmt.Errorf("database: unable to create pool: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := db.Pool.Ping(ctx); err != nil {
		db.Pool.Close()
		return fmt.Errorf("database: failed to ping: %w", err)
	}

	return nil
}

func (db *Database) Close() {
	db.Pool.Close()
}

func (db *Database) Ping(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}

var (
	ErrCalendarEventNotFound    = errors.New("calendar event not found")
	ErrGroupNotFound            = errors.New("group not found")
	ErrGroupMemberNotFound      = errors.New("group member not found")
	ErrGroupInviteNotFound      = errors.New("group invite not found")
	ErrSharingAgreementNotFound = errors.New("sharing agreement not found")
	ErrProjectionNotFound       = errors.New("event projection not found")
	ErrNotificationNotFound     = errors.New("notification not found")

	// ErrVersionConflict reports a lost optimistic-lock race: the row was
	// modified between read and write. Callers re-read and re-validate the
	// transition instead of retrying blindly.
	ErrVersionConflict = errors.New("concurrent modification of row")
)
