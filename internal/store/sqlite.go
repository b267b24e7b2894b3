package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"example.com/chirp/internal/models"
	"github.com/golang-migrate/migrate/v4"
	msqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/mattn/go-sqlite3"
)

// SQLStore keeps authors, cheeps and follow relations in SQLite.
// Uniqueness and cascades are enforced by the schema.
type SQLStore struct {
	DB *sql.DB
}

// NewSQLite opens (creating if needed) the database at path and applies migrations.
func NewSQLite(ctx context.Context, path string) (*SQLStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database dir: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	// single connection keeps writes serialized and the pragma above in effect
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite: %w", err)
	}

	if err := runSQLiteMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	logg.Info("store", "Opened SQLite store at "+path)
	return &SQLStore{DB: db}, nil
}

func runSQLiteMigrations(db *sql.DB) error {
	src, err := iofs.New(sqliteMigrations, "migrations/sqlite")
	if err != nil {
		return fmt.Errorf("failed to open migration source: %w", err)
	}

	driver, err := msqlite.WithInstance(db, &msqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migrate driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	err = m.Up()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}

	if errors.Is(err, migrate.ErrNoChange) {
		logg.Info("store", "No new migrations to apply")
	} else {
		logg.Info("store", "Migrations applied successfully")
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLStore) Close() {
	if s.DB != nil {
		s.DB.Close()
		logg.Info("store", "SQLite store closed")
	}
}

// --- Authors ---

const authorColumns = `username, display_name, email, password_hash, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAuthor(row rowScanner) (models.Author, error) {
	var a models.Author
	var created int64
	if err := row.Scan(&a.UserName, &a.DisplayName, &a.Email, &a.PasswordHash, &created); err != nil {
		return models.Author{}, err
	}
	a.CreatedAt = time.Unix(0, created).UTC()
	return a, nil
}

func (s *SQLStore) CreateAuthor(ctx context.Context, a models.Author) error {
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO authors (`+authorColumns+`) VALUES (?, ?, ?, ?, ?)`,
		a.UserName, a.DisplayName, a.Email, a.PasswordHash, a.CreatedAt.UnixNano(),
	)
	if err != nil {
		if dup := duplicateAuthorErr(err); dup != nil {
			return dup
		}
		logg.Error("store", "Failed to create author", err)
		return err
	}
	logg.Info("store", "Author created (username anonymized)")
	return nil
}

func duplicateAuthorErr(err error) error {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) || sqliteErr.Code != sqlite3.ErrConstraint {
		return nil
	}
	switch msg := sqliteErr.Error(); {
	case strings.Contains(msg, "authors.email"):
		return ErrDuplicateEmail
	case strings.Contains(msg, "authors.username"):
		return ErrDuplicateUserName
	}
	return nil
}

func (s *SQLStore) GetAuthor(ctx context.Context, userName string) (models.Author, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT `+authorColumns+` FROM authors WHERE username = ?`, userName)
	a, err := scanAuthor(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Author{}, ErrNotFound
	}
	return a, err
}

func (s *SQLStore) GetAuthorByEmail(ctx context.Context, email string) (models.Author, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT `+authorColumns+` FROM authors WHERE email = ?`, email)
	a, err := scanAuthor(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Author{}, ErrNotFound
	}
	return a, err
}

func (s *SQLStore) SearchAuthors(ctx context.Context, query string, limit int) ([]models.Author, error) {
	pattern := "%" + escapeLike(strings.ToLower(query)) + "%"
	return s.queryAuthors(ctx, `
		SELECT `+authorColumns+` FROM authors
		WHERE lower(username) LIKE ? ESCAPE '\' OR lower(display_name) LIKE ? ESCAPE '\'
		ORDER BY lower(display_name), username
		LIMIT ?`,
		pattern, pattern, limit,
	)
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// DeleteAuthor removes the author; cheeps and follow relations go with it
// through ON DELETE CASCADE.
func (s *SQLStore) DeleteAuthor(ctx context.Context, userName string) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM authors WHERE username = ?`, userName)
	if err != nil {
		logg.Error("store", "Failed to delete author", err)
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	logg.Info("store", "Author deleted with cheeps and relations")
	return nil
}

func (s *SQLStore) queryAuthors(ctx context.Context, q string, args ...any) ([]models.Author, error) {
	rows, err := s.DB.QueryContext(ctx, q, args...)
	if err != nil {
		logg.Error("store", "Failed to query authors", err)
		return nil, err
	}
	defer rows.Close()

	var res []models.Author
	for rows.Next() {
		a, err := scanAuthor(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

// --- Cheeps ---

func (s *SQLStore) AddCheep(ctx context.Context, c models.Cheep) error {
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO cheeps (id, username, text, created_at) VALUES (?, ?, ?, ?)`,
		c.ID, c.UserName, c.Text, c.TimeStamp.UnixNano(),
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey {
			return ErrNotFound
		}
		logg.Error("store", "Failed to add cheep", err)
		return err
	}
	logg.Debug("store", "Cheep added (content anonymized)")
	return nil
}

func (s *SQLStore) FindCheeps(ctx context.Context, userName, text string) ([]models.Cheep, error) {
	return s.queryCheeps(ctx,
		`SELECT id, username, text, created_at FROM cheeps WHERE username = ? AND text = ?`,
		userName, text,
	)
}

func (s *SQLStore) DeleteCheep(ctx context.Context, c models.Cheep) error {
	if _, err := s.DB.ExecContext(ctx, `DELETE FROM cheeps WHERE id = ?`, c.ID); err != nil {
		logg.Error("store", "Failed to delete cheep", err)
		return err
	}
	return nil
}

const timelineOrder = ` ORDER BY c.created_at DESC, c.username ASC, c.id ASC`

// timelineFilter returns the FROM/WHERE part of a timeline query.
func timelineFilter(q models.TimelineQuery) (string, []any) {
	switch q.Scope {
	case models.ScopeAuthor:
		return ` FROM cheeps c WHERE c.username = ?`, []any{q.UserName}
	case models.ScopeFollowed:
		return ` FROM cheeps c JOIN follow_relations f ON f.followed = c.username WHERE f.follower = ?`, []any{q.UserName}
	default:
		return ` FROM cheeps c`, nil
	}
}

func (s *SQLStore) Cheeps(ctx context.Context, q models.TimelineQuery) ([]models.Cheep, error) {
	from, args := timelineFilter(q)
	args = append(args, q.Limit, q.Offset)
	return s.queryCheeps(ctx,
		`SELECT c.id, c.username, c.text, c.created_at`+from+timelineOrder+` LIMIT ? OFFSET ?`,
		args...,
	)
}

func (s *SQLStore) CountCheeps(ctx context.Context, q models.TimelineQuery) (int, error) {
	from, args := timelineFilter(q)
	var n int
	if err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*)`+from, args...).Scan(&n); err != nil {
		logg.Error("store", "Failed to count cheeps", err)
		return 0, err
	}
	return n, nil
}

func (s *SQLStore) queryCheeps(ctx context.Context, q string, args ...any) ([]models.Cheep, error) {
	rows, err := s.DB.QueryContext(ctx, q, args...)
	if err != nil {
		logg.Error("store", "Failed to query cheeps", err)
		return nil, err
	}
	defer rows.Close()

	var res []models.Cheep
	for rows.Next() {
		var c models.Cheep
		var created int64
		if err := rows.Scan(&c.ID, &c.UserName, &c.Text, &created); err != nil {
			return nil, err
		}
		c.TimeStamp = time.Unix(0, created).UTC()
		res = append(res, c)
	}
	return res, rows.Err()
}

// --- Follow relations ---

// AddFollow inserts the relation; an existing pair or an unknown author is
// silently ignored.
func (s *SQLStore) AddFollow(ctx context.Context, follower, followed string) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO follow_relations (follower, followed)
		SELECT ?, ?
		WHERE EXISTS (SELECT 1 FROM authors WHERE username = ?)
		  AND EXISTS (SELECT 1 FROM authors WHERE username = ?)
		ON CONFLICT (follower, followed) DO NOTHING`,
		follower, followed, follower, followed,
	)
	if err != nil {
		logg.Error("store", "Failed to create follow relation", err)
		return err
	}
	return nil
}

func (s *SQLStore) RemoveFollow(ctx context.Context, follower, followed string) error {
	_, err := s.DB.ExecContext(ctx,
		`DELETE FROM follow_relations WHERE follower = ? AND followed = ?`, follower, followed)
	if err != nil {
		logg.Error("store", "Failed to remove follow relation", err)
		return err
	}
	return nil
}

func (s *SQLStore) Following(ctx context.Context, userName string) ([]models.Author, error) {
	return s.queryAuthors(ctx, `
		SELECT a.username, a.display_name, a.email, a.password_hash, a.created_at
		FROM authors a JOIN follow_relations f ON f.followed = a.username
		WHERE f.follower = ?
		ORDER BY a.username`,
		userName,
	)
}

func (s *SQLStore) Followers(ctx context.Context, userName string) ([]models.Author, error) {
	return s.queryAuthors(ctx, `
		SELECT a.username, a.display_name, a.email, a.password_hash, a.created_at
		FROM authors a JOIN follow_relations f ON f.follower = a.username
		WHERE f.followed = ?
		ORDER BY a.username`,
		userName,
	)
}
