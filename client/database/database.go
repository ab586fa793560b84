package database

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	"github.com/JRI98/incognitostickers/internal/secretbox"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var ddl string

var ErrLocked = errors.New("database is locked")

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Database struct {
	db            *sql.DB
	q             querier
	encryptionKey []byte
}

func Open(databasePath string) (*Database, error) {
	ctx := context.Background()

	db, err := sql.Open("sqlite3", databasePath+"?_foreign_keys=on")
	if err != nil {
		return nil, err
	}

	if _, err := db.ExecContext(ctx, ddl); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Database{db: db, q: db}, nil
}

func (database *Database) SetEncryptionKey(key []byte) error {
	if database.encryptionKey != nil {
		return fmt.Errorf("encryption key already set")
	}
	database.encryptionKey = key

	return nil
}

func (database *Database) WithTx(ctx context.Context, f func(transaction *Database) error) error {
	tx, err := database.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	err = f(&Database{db: nil, q: tx, encryptionKey: database.encryptionKey})
	if err != nil {
		return fmt.Errorf("failed to execute transaction: %w", err)
	}

	return tx.Commit()
}

func (database *Database) Close() error {
	return database.db.Close()
}

func (database *Database) seal(plaintext []byte) ([]byte, error) {
	if database.encryptionKey == nil {
		return nil, ErrLocked
	}
	return secretbox.Seal(plaintext, database.encryptionKey)
}

func (database *Database) open(ciphertext []byte) ([]byte, error) {
	if database.encryptionKey == nil {
		return nil, ErrLocked
	}
	return secretbox.Open(ciphertext, database.encryptionKey)
}

// sealAll encrypts each value in order, stopping at the first error.
func (database *Database) sealAll(values ...[]byte) ([][]byte, error) {
	sealed := make([][]byte, 0, len(values))
	for _, value := range values {
		s, err := database.seal(value)
		if err != nil {
			return nil, err
		}
		sealed = append(sealed, s)
	}
	return sealed, nil
}

func (database *Database) openAll(values ...[]byte) ([][]byte, error) {
	opened := make([][]byte, 0, len(values))
	for _, value := range values {
		o, err := database.open(value)
		if err != nil {
			return nil, err
		}
		opened = append(opened, o)
	}
	return opened, nil
}
