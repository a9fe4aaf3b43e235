package users

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"time"

	_ "github.com/lib/pq"

	"github.com/streamspace-dev/realtime-gateway/internal/config"
)

var identifierPattern = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)

// validateConfig guards against connection-string injection the same way
// the teacher's database layer does: Host, Port, User and DBName are
// restricted to a safe character set before use. Password and SSLMode
// also end up in the DSN and are not checked.
func validateConfig(cfg config.PostgresConfig) error {
	if !identifierPattern.MatchString(cfg.Host) {
		return fmt.Errorf("users: invalid postgres host %q", cfg.Host)
	}
	if !identifierPattern.MatchString(cfg.Port) {
		return fmt.Errorf("users: invalid postgres port %q", cfg.Port)
	}
	if !identifierPattern.MatchString(cfg.User) {
		return fmt.Errorf("users: invalid postgres user %q", cfg.User)
	}
	if !identifierPattern.MatchString(cfg.DBName) {
		return fmt.Errorf("users: invalid postgres database name %q", cfg.DBName)
	}
	return nil
}

// PostgresStore is the production Store, backed by the lib/pq driver.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore dials Postgres with the same pooling discipline the
// gateway uses for its other backing stores, and runs Migrate.
func NewPostgresStore(cfg config.PostgresConfig) (*PostgresStore, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
	)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("users: open postgres: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(1 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("users: ping postgres: %w", err)
	}

	store := &PostgresStore{db: db}
	if err := store.Migrate(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

// NewPostgresStoreForTesting wraps an already-open *sql.DB (typically a
// go-sqlmock connection), skipping the dial/ping/migrate steps.
func NewPostgresStoreForTesting(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the users table if it does not already exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	name_fold TEXT NOT NULL UNIQUE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("users: migrate: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) GetOrCreateByName(ctx context.Context, name string) (User, error) {
	fold := FoldName(name)

	var u User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name FROM users WHERE name_fold = $1`, fold,
	).Scan(&u.ID, &u.Name)
	if err == nil {
		return u, nil
	}
	if err != sql.ErrNoRows {
		return User{}, fmt.Errorf("users: lookup by name: %w", err)
	}

	u = User{ID: newID(), Name: name}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO users (id, name, name_fold) VALUES ($1, $2, $3)
		 ON CONFLICT (name_fold) DO NOTHING`,
		u.ID, u.Name, fold,
	)
	if err != nil {
		return User{}, fmt.Errorf("users: insert: %w", err)
	}

	// Another process may have won the race to insert this name; read
	// back whatever ended up committed.
	err = s.db.QueryRowContext(ctx,
		`SELECT id, name FROM users WHERE name_fold = $1`, fold,
	).Scan(&u.ID, &u.Name)
	if err != nil {
		return User{}, fmt.Errorf("users: read back after insert: %w", err)
	}
	return u, nil
}

// GetOrCreateByID upserts a user keyed by a caller-supplied id (used by
// Connect, spec section 4.C). Unlike GetOrCreateByName, the lookup and
// conflict target are both the id itself -- the gateway must return the
// same userId the client handed it, not one derived from the name.
func (s *PostgresStore) GetOrCreateByID(ctx context.Context, id, name string) (User, error) {
	var u User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.Name)
	if err == nil {
		return u, nil
	}
	if err != sql.ErrNoRows {
		return User{}, fmt.Errorf("users: lookup by id: %w", err)
	}

	fold := FoldName(name)
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO users (id, name, name_fold) VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO NOTHING`,
		id, name, fold,
	)
	if err != nil {
		return User{}, fmt.Errorf("users: insert: %w", err)
	}

	err = s.db.QueryRowContext(ctx,
		`SELECT id, name FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.Name)
	if err != nil {
		return User{}, fmt.Errorf("users: read back after insert: %w", err)
	}
	return u, nil
}

func (s *PostgresStore) GetByID(ctx context.Context, id string) (User, error) {
	var u User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.Name)
	if err == sql.ErrNoRows {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("users: lookup by id: %w", err)
	}
	return u, nil
}
