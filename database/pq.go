package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/lib/pq"

	"github.com/scholarproof/api/config"
)

// Storage defines the interface that all database implementations must satisfy
type Storage interface {
	// Lifecycle methods
	Init() error
	Close() error
	HealthCheck() error

	// GetDB returns *gorm.DB for GORMStore, *sql.DB for PostgreSQLStore
	GetDB() interface{}
}

// PostgreSQLStore is a raw database/sql store. The public verification
// endpoint reads through it: a single prepared point lookup, no ORM in the
// unauthenticated path.
type PostgreSQLStore struct {
	db *sql.DB
}

func Start() (*PostgreSQLStore, error) {
	getEnv, err := config.Get()
	if err != nil {
		return nil, err
	}

	connectStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		getEnv.DB_HOST, getEnv.DB_PORT,
		getEnv.DB_USER_NAME, getEnv.DB_PASSWORD,
		getEnv.DB_NAME, getEnv.DB_SSL_MODE,
	)

	db, err := sql.Open("postgres", connectStr)
	if err != nil {
		fmt.Println("Unable to Start PostgresSQL Databse.")
		return nil, err
	}

	log.Println("Successfully connected to PostgresSQL Database.")
	return &PostgreSQLStore{
		db: db,
	}, nil
}

func (s *PostgreSQLStore) Init() error {
	// Schema is owned by the GORM store's AutoMigrate
	return nil
}

func (s *PostgreSQLStore) Close() error {
	log.Println("Closing PostgresSQL Database.")
	return s.db.Close()
}

// HealthCheck verifies the database connection is alive
func (s *PostgreSQLStore) HealthCheck() error {
	return s.db.Ping()
}

// GetDB returns the raw *sql.DB instance
func (s *PostgreSQLStore) GetDB() interface{} {
	return s.db
}

// VerificationRow is the raw read for the public verification endpoint
type VerificationRow struct {
	Title        string
	StudentName  string
	SessionName  string
	IssuedAt     time.Time
	Revoked      bool
	PermanentURL sql.NullString
}

// LookupVerification resolves a public verification ID to its certificate
// facts. Returns sql.ErrNoRows when the ID is unknown.
func (s *PostgreSQLStore) LookupVerification(ctx context.Context, verifyID string) (*VerificationRow, error) {
	const query = `
		SELECT c.title, u.name, se.name, c.uploaded_at, c.revoked, c.permanent_url
		FROM certificates c
		JOIN users u ON u.id = c.student_id
		JOIN sessions se ON se.id = c.session_id
		WHERE c.verify_id = $1 AND c.deleted_at IS NULL`

	var row VerificationRow
	err := s.db.QueryRowContext(ctx, query, verifyID).Scan(
		&row.Title,
		&row.StudentName,
		&row.SessionName,
		&row.IssuedAt,
		&row.Revoked,
		&row.PermanentURL,
	)
	if err != nil {
		return nil, err
	}
	return &row, nil
}
