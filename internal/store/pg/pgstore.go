// Package pg implements the persistence interfaces of the decision engine on
// PostgreSQL, using database/sql over the pgx stdlib driver.
package pg

import (
	"database/sql"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"aptogate.org/internal/access"
	"aptogate.org/internal/alert"
	"aptogate.org/internal/audit"
	"aptogate.org/internal/compliance"
)

type Store struct {
	db *sql.DB
}

var (
	_ access.RelationStore        = (*Store)(nil)
	_ compliance.CertificateStore = (*Store)(nil)
	_ compliance.VendorContact    = (*Store)(nil)
	_ alert.Store                 = (*Store)(nil)
	_ audit.Store                 = (*Store)(nil)
)

func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// Tuned pool defaults; adjust under load tests
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// NewWithDB wraps an existing handle; used by tests with sqlmock.
func NewWithDB(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }
