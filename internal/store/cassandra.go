package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	config "example.com/chirp/internal/init"
	"example.com/chirp/internal/models"
	"github.com/go-pkgz/syncs"
	"github.com/gocql/gocql"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/cassandra"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// publicBucket is the single partition of the cheeps table. The global
// timeline is small enough for this in every deployment we run.
const publicBucket = 0

// fanoutLimit bounds concurrent per-author reads for the followed timeline.
const fanoutLimit = 20

// --- Interfaces ---

type SessionInterface interface {
	Query(stmt string, values ...interface{}) *gocql.Query
	NewBatch(batchType gocql.BatchType) *gocql.Batch
	ExecuteBatch(batch *gocql.Batch) error
	Close()
}

// --- Store Implementation ---

// CassandraStore keeps denormalized tables per read path: authors by name
// and email, follows in both directions, cheeps by author and a global
// cheeps partition clustered in timeline order.
type CassandraStore struct {
	Session SessionInterface
}

// NewCassandra initializes the Cassandra connection from cfg.
func NewCassandra(cfg *config.Config) (*CassandraStore, error) {
	if err := ensureKeyspace(cfg); err != nil {
		return nil, fmt.Errorf("failed to ensure keyspace: %w", err)
	}

	if err := runCassandraMigrations(cfg); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	cluster := gocql.NewCluster(cfg.CassandraHost)
	cluster.Keyspace = cfg.CassandraKeyspace
	cluster.Consistency = gocql.Quorum
	cluster.Timeout = cfg.CassandraTimeout
	cluster.ConnectTimeout = cfg.CassandraTimeout

	if cfg.CassandraUsername != "" && cfg.CassandraPassword != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: cfg.CassandraUsername,
			Password: cfg.CassandraPassword,
		}
	}

	if cfg.CassandraDC != "" {
		cluster.HostFilter = gocql.DataCentreHostFilter(cfg.CassandraDC)
	}

	sess, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create Cassandra session: %w", err)
	}

	logg.Info("store", "Connected to Cassandra keyspace (host anonymized)")
	return &CassandraStore{Session: sess}, nil
}

// --- Ensure keyspace exists before migrations ---

func ensureKeyspace(cfg *config.Config) error {
	cluster := gocql.NewCluster(cfg.CassandraHost)
	cluster.Keyspace = "system"
	cluster.Timeout = cfg.CassandraTimeout
	sess, err := cluster.CreateSession()
	if err != nil {
		return fmt.Errorf("failed to connect to Cassandra system keyspace: %w", err)
	}
	defer sess.Close()

	query := fmt.Sprintf(`
        CREATE KEYSPACE IF NOT EXISTS %s
        WITH replication = {'class': 'SimpleStrategy', 'replication_factor': 1};
    `, cfg.CassandraKeyspace)

	if err := sess.Query(query).Exec(); err != nil {
		return fmt.Errorf("failed to create keyspace: %w", err)
	}

	logg.Info("store", "Ensured Cassandra keyspace exists (keyspace name anonymized)")
	return nil
}

// --- Migration runner ---

func runCassandraMigrations(cfg *config.Config) error {
	src, err := iofs.New(cassandraMigrations, "migrations/cassandra")
	if err != nil {
		return fmt.Errorf("failed to open migration source: %w", err)
	}
	dbURL := fmt.Sprintf(
		"cassandra://%s/%s?x-migrations-table=schema_migrations&x-multi-statement=true",
		cfg.CassandraHost, cfg.CassandraKeyspace,
	)

	m, err := migrate.NewWithSourceInstance("iofs", src, dbURL)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("migration up failed: %w", err)
	}

	if err == migrate.ErrNoChange {
		logg.Info("store", "No new migrations to apply")
	} else {
		logg.Info("store", "Migrations applied successfully")
	}
	return nil
}

// Close gracefully closes Cassandra session.
func (s *CassandraStore) Close() {
	if s.Session != nil {
		s.Session.Close()
		logg.Info("store", "Cassandra session closed")
	}
}

// --- Author operations ---

func (s *CassandraStore) CreateAuthor(ctx context.Context, a models.Author) error {
	// Claim the email first with CAS so two registrations can't share it.
	result := make(map[string]interface{})
	applied, err := s.Session.Query(`
		INSERT INTO authors_by_email (email, username)
		VALUES (?, ?) IF NOT EXISTS`,
		a.Email, a.UserName,
	).WithContext(ctx).MapScanCAS(result)
	if err != nil {
		logg.Error("store", "Failed to claim author email", err)
		return err
	}
	if !applied {
		return ErrDuplicateEmail
	}

	result = make(map[string]interface{})
	applied, err = s.Session.Query(`
		INSERT INTO authors (username, display_name, email, password_hash, created_at)
		VALUES (?, ?, ?, ?, ?) IF NOT EXISTS`,
		a.UserName, a.DisplayName, a.Email, a.PasswordHash, a.CreatedAt,
	).WithContext(ctx).MapScanCAS(result)
	if err != nil || !applied {
		// release the email claim taken above
		_ = s.Session.Query(`DELETE FROM authors_by_email WHERE email = ?`, a.Email).WithContext(ctx).Exec()
		if err != nil {
			logg.Error("store", "Failed to create author", err)
			return err
		}
		return ErrDuplicateUserName
	}

	logg.Info("store", "Author created successfully (username anonymized)")
	return nil
}

func (s *CassandraStore) GetAuthor(ctx context.Context, userName string) (models.Author, error) {
	a := models.Author{UserName: userName}
	err := s.Session.Query(
		`SELECT display_name, email, password_hash, created_at FROM authors WHERE username = ?`,
		userName,
	).WithContext(ctx).Scan(&a.DisplayName, &a.Email, &a.PasswordHash, &a.CreatedAt)
	if err != nil {
		if err == gocql.ErrNotFound {
			return models.Author{}, ErrNotFound
		}
		logg.Error("store", "Failed to query author by username", err)
		return models.Author{}, err
	}
	a.CreatedAt = a.CreatedAt.UTC()
	return a, nil
}

func (s *CassandraStore) GetAuthorByEmail(ctx context.Context, email string) (models.Author, error) {
	var userName string
	err := s.Session.Query(
		`SELECT username FROM authors_by_email WHERE email = ?`, email,
	).WithContext(ctx).Scan(&userName)
	if err != nil {
		if err == gocql.ErrNotFound {
			return models.Author{}, ErrNotFound
		}
		logg.Error("store", "Failed to query author by email", err)
		return models.Author{}, err
	}
	return s.GetAuthor(ctx, userName)
}

// SearchAuthors scans the authors table; there is no secondary index to
// serve substring matches.
func (s *CassandraStore) SearchAuthors(ctx context.Context, query string, limit int) ([]models.Author, error) {
	iter := s.Session.Query(
		`SELECT username, display_name, email, password_hash, created_at FROM authors`,
	).WithContext(ctx).Iter()

	q := strings.ToLower(query)
	var res []models.Author
	var a models.Author
	for iter.Scan(&a.UserName, &a.DisplayName, &a.Email, &a.PasswordHash, &a.CreatedAt) {
		if strings.Contains(strings.ToLower(a.UserName), q) || strings.Contains(strings.ToLower(a.DisplayName), q) {
			a.CreatedAt = a.CreatedAt.UTC()
			res = append(res, a)
		}
	}
	if err := iter.Close(); err != nil {
		logg.Error("store", "Failed to search authors", err)
		return nil, err
	}

	sortAuthorsForSearch(res)
	if len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}

// DeleteAuthor removes the author, every cheep they own and every follow
// relation touching them.
func (s *CassandraStore) DeleteAuthor(ctx context.Context, userName string) error {
	a, err := s.GetAuthor(ctx, userName)
	if err != nil {
		return err
	}

	cheeps, err := s.authorCheeps(ctx, userName, 0)
	if err != nil {
		return err
	}
	for _, c := range cheeps {
		if err := s.DeleteCheep(ctx, c); err != nil {
			return err
		}
	}

	following, err := s.column(ctx, `SELECT followed FROM follows WHERE follower = ?`, userName)
	if err != nil {
		return err
	}
	followers, err := s.column(ctx, `SELECT follower FROM followers_by_followed WHERE followed = ?`, userName)
	if err != nil {
		return err
	}

	batch := s.Session.NewBatch(gocql.LoggedBatch).WithContext(ctx)
	for _, f := range following {
		batch.Query(`DELETE FROM followers_by_followed WHERE followed = ? AND follower = ?`, f, userName)
	}
	for _, f := range followers {
		batch.Query(`DELETE FROM follows WHERE follower = ? AND followed = ?`, f, userName)
	}
	batch.Query(`DELETE FROM follows WHERE follower = ?`, userName)
	batch.Query(`DELETE FROM followers_by_followed WHERE followed = ?`, userName)
	batch.Query(`DELETE FROM authors_by_email WHERE email = ?`, a.Email)
	batch.Query(`DELETE FROM authors WHERE username = ?`, userName)

	if err := s.Session.ExecuteBatch(batch); err != nil {
		logg.Error("store", "Failed to delete author", err)
		return err
	}

	logg.Info("store", "Author deleted with cheeps and relations")
	return nil
}

// --- Cheep operations ---

func (s *CassandraStore) AddCheep(ctx context.Context, c models.Cheep) error {
	if _, err := s.GetAuthor(ctx, c.UserName); err != nil {
		return err
	}

	batch := s.Session.NewBatch(gocql.LoggedBatch).WithContext(ctx)
	batch.Query(`
		INSERT INTO cheeps_by_author (username, created_at, cheep_id, body)
		VALUES (?, ?, ?, ?)`,
		c.UserName, c.TimeStamp, c.ID, c.Text,
	)
	batch.Query(`
		INSERT INTO cheeps (bucket, created_at, username, cheep_id, body)
		VALUES (?, ?, ?, ?, ?)`,
		publicBucket, c.TimeStamp, c.UserName, c.ID, c.Text,
	)

	if err := s.Session.ExecuteBatch(batch); err != nil {
		logg.Error("store", "Failed to add cheep", err)
		return err
	}

	logg.Debug("store", "Cheep added to author and public tables (content anonymized)")
	return nil
}

func (s *CassandraStore) FindCheeps(ctx context.Context, userName, text string) ([]models.Cheep, error) {
	all, err := s.authorCheeps(ctx, userName, 0)
	if err != nil {
		return nil, err
	}
	var res []models.Cheep
	for _, c := range all {
		if c.Text == text {
			res = append(res, c)
		}
	}
	return res, nil
}

func (s *CassandraStore) DeleteCheep(ctx context.Context, c models.Cheep) error {
	batch := s.Session.NewBatch(gocql.LoggedBatch).WithContext(ctx)
	batch.Query(`DELETE FROM cheeps_by_author WHERE username = ? AND created_at = ? AND cheep_id = ?`,
		c.UserName, c.TimeStamp, c.ID)
	batch.Query(`DELETE FROM cheeps WHERE bucket = ? AND created_at = ? AND username = ? AND cheep_id = ?`,
		publicBucket, c.TimeStamp, c.UserName, c.ID)

	if err := s.Session.ExecuteBatch(batch); err != nil {
		logg.Error("store", "Failed to delete cheep", err)
		return err
	}
	return nil
}

// Cheeps reads offset+limit rows in clustering order and drops the offset,
// Cassandra has no OFFSET clause.
func (s *CassandraStore) Cheeps(ctx context.Context, q models.TimelineQuery) ([]models.Cheep, error) {
	window := q.Offset + q.Limit
	var (
		res []models.Cheep
		err error
	)
	switch q.Scope {
	case models.ScopeAuthor:
		res, err = s.authorCheeps(ctx, q.UserName, window)
	case models.ScopeFollowed:
		res, err = s.followedCheeps(ctx, q.UserName, window)
	default:
		res, err = s.publicCheeps(ctx, window)
	}
	if err != nil {
		return nil, err
	}
	return slicePage(res, q.Offset, q.Limit), nil
}

func (s *CassandraStore) CountCheeps(ctx context.Context, q models.TimelineQuery) (int, error) {
	switch q.Scope {
	case models.ScopeAuthor:
		return s.count(ctx, `SELECT COUNT(*) FROM cheeps_by_author WHERE username = ?`, q.UserName)
	case models.ScopeFollowed:
		followed, err := s.column(ctx, `SELECT followed FROM follows WHERE follower = ?`, q.UserName)
		if err != nil {
			return 0, err
		}
		total := 0
		for _, f := range followed {
			n, err := s.count(ctx, `SELECT COUNT(*) FROM cheeps_by_author WHERE username = ?`, f)
			if err != nil {
				return 0, err
			}
			total += n
		}
		return total, nil
	default:
		return s.count(ctx, `SELECT COUNT(*) FROM cheeps WHERE bucket = ?`, publicBucket)
	}
}

func (s *CassandraStore) publicCheeps(ctx context.Context, limit int) ([]models.Cheep, error) {
	iter := s.Session.Query(`
		SELECT cheep_id, username, body, created_at
		FROM cheeps WHERE bucket = ? LIMIT ?`,
		publicBucket, limit,
	).WithContext(ctx).Iter()
	return scanCheeps(iter)
}

// authorCheeps returns the newest limit cheeps of one author; limit 0 means all.
func (s *CassandraStore) authorCheeps(ctx context.Context, userName string, limit int) ([]models.Cheep, error) {
	stmt := `SELECT cheep_id, username, body, created_at FROM cheeps_by_author WHERE username = ?`
	args := []interface{}{userName}
	if limit > 0 {
		stmt += ` LIMIT ?`
		args = append(args, limit)
	}
	res, err := scanCheeps(s.Session.Query(stmt, args...).WithContext(ctx).Iter())
	if err != nil {
		return nil, err
	}
	// per-author partitions cluster by (created_at, cheep_id); equal
	// timestamps need no username tie-break within one author
	return res, nil
}

// followedCheeps reads the newest limit cheeps of every followed author
// concurrently and merges them into timeline order.
func (s *CassandraStore) followedCheeps(ctx context.Context, userName string, limit int) ([]models.Cheep, error) {
	followed, err := s.column(ctx, `SELECT followed FROM follows WHERE follower = ?`, userName)
	if err != nil {
		return nil, err
	}
	res, err := mergeFollowed(followed, func(f string) ([]models.Cheep, error) {
		return s.authorCheeps(ctx, f, limit)
	})
	if err != nil {
		logg.Error("store", "Failed to read followed timeline", err)
		return nil, err
	}
	return res, nil
}

// mergeFollowed fetches every author with at most fanoutLimit reads in
// flight and returns the union in timeline order. Fetches not yet started
// are skipped once one fails.
func mergeFollowed(authors []string, fetch func(userName string) ([]models.Cheep, error)) ([]models.Cheep, error) {
	var (
		mu  sync.Mutex
		res []models.Cheep
	)
	grp := syncs.NewErrSizedGroup(fanoutLimit, syncs.TermOnErr)
	for _, f := range authors {
		grp.Go(func() error {
			cs, err := fetch(f)
			if err != nil {
				return err
			}
			mu.Lock()
			res = append(res, cs...)
			mu.Unlock()
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return nil, err
	}

	models.SortCheeps(res)
	return res, nil
}

func scanCheeps(iter *gocql.Iter) ([]models.Cheep, error) {
	var res []models.Cheep
	var id, userName, body string
	var created time.Time
	for iter.Scan(&id, &userName, &body, &created) {
		res = append(res, models.Cheep{ID: id, UserName: userName, Text: body, TimeStamp: created.UTC()})
	}
	if err := iter.Close(); err != nil {
		logg.Error("store", "Failed to read cheeps", err)
		return nil, err
	}
	return res, nil
}

// --- Follow operations ---

func (s *CassandraStore) AddFollow(ctx context.Context, follower, followed string) error {
	for _, u := range []string{follower, followed} {
		if _, err := s.GetAuthor(ctx, u); err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil
			}
			return err
		}
	}

	// Inserts are upserts, a repeated follow leaves a single row.
	batch := s.Session.NewBatch(gocql.LoggedBatch).WithContext(ctx)
	batch.Query(`INSERT INTO follows (follower, followed) VALUES (?, ?)`, follower, followed)
	batch.Query(`INSERT INTO followers_by_followed (followed, follower) VALUES (?, ?)`, followed, follower)

	if err := s.Session.ExecuteBatch(batch); err != nil {
		logg.Error("store", "Failed to create follow relationship", err)
		return err
	}

	logg.Info("store", "Follow relationship created (usernames anonymized)")
	return nil
}

func (s *CassandraStore) RemoveFollow(ctx context.Context, follower, followed string) error {
	batch := s.Session.NewBatch(gocql.LoggedBatch).WithContext(ctx)
	batch.Query(`DELETE FROM follows WHERE follower = ? AND followed = ?`, follower, followed)
	batch.Query(`DELETE FROM followers_by_followed WHERE followed = ? AND follower = ?`, followed, follower)

	if err := s.Session.ExecuteBatch(batch); err != nil {
		logg.Error("store", "Failed to remove follow relationship", err)
		return err
	}
	return nil
}

func (s *CassandraStore) Following(ctx context.Context, userName string) ([]models.Author, error) {
	names, err := s.column(ctx, `SELECT followed FROM follows WHERE follower = ?`, userName)
	if err != nil {
		return nil, err
	}
	return s.authors(ctx, names)
}

func (s *CassandraStore) Followers(ctx context.Context, userName string) ([]models.Author, error) {
	names, err := s.column(ctx, `SELECT follower FROM followers_by_followed WHERE followed = ?`, userName)
	if err != nil {
		return nil, err
	}
	return s.authors(ctx, names)
}

// --- helpers ---

func (s *CassandraStore) authors(ctx context.Context, names []string) ([]models.Author, error) {
	res := make([]models.Author, 0, len(names))
	for _, n := range names {
		a, err := s.GetAuthor(ctx, n)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, nil
}

func (s *CassandraStore) column(ctx context.Context, stmt string, values ...interface{}) ([]string, error) {
	iter := s.Session.Query(stmt, values...).WithContext(ctx).Iter()

	var v string
	var res []string
	for iter.Scan(&v) {
		res = append(res, v)
	}

	if err := iter.Close(); err != nil {
		logg.Error("store", "Failed to read column", err)
		return nil, err
	}
	return res, nil
}

func (s *CassandraStore) count(ctx context.Context, stmt string, values ...interface{}) (int, error) {
	var n int64
	if err := s.Session.Query(stmt, values...).WithContext(ctx).Scan(&n); err != nil {
		logg.Error("store", "Failed to count rows", err)
		return 0, err
	}
	return int(n), nil
}
