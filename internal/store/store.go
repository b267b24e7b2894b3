package store

import (
	"context"
	"errors"
	"fmt"

	config "example.com/chirp/internal/init"
	"example.com/chirp/internal/logger"
	"example.com/chirp/internal/models"
)

var logg = logger.New()

var (
	ErrNotFound          = errors.New("not found")
	ErrDuplicateUserName = errors.New("username already exists")
	ErrDuplicateEmail    = errors.New("email already exists")
)

// --- Interfaces ---

// StoreInterface is the repository every backend implements. Lookups of
// unknown authors inside timeline and follow reads return empty results;
// only single-entity getters report ErrNotFound.
type StoreInterface interface {
	CreateAuthor(ctx context.Context, a models.Author) error
	GetAuthor(ctx context.Context, userName string) (models.Author, error)
	GetAuthorByEmail(ctx context.Context, email string) (models.Author, error)
	SearchAuthors(ctx context.Context, query string, limit int) ([]models.Author, error)
	DeleteAuthor(ctx context.Context, userName string) error

	AddCheep(ctx context.Context, c models.Cheep) error
	FindCheeps(ctx context.Context, userName, text string) ([]models.Cheep, error)
	DeleteCheep(ctx context.Context, c models.Cheep) error
	Cheeps(ctx context.Context, q models.TimelineQuery) ([]models.Cheep, error)
	CountCheeps(ctx context.Context, q models.TimelineQuery) (int, error)

	AddFollow(ctx context.Context, follower, followed string) error
	RemoveFollow(ctx context.Context, follower, followed string) error
	Following(ctx context.Context, userName string) ([]models.Author, error)
	Followers(ctx context.Context, userName string) ([]models.Author, error)

	Close()
}

// New opens the backend selected by cfg.StoreBackend.
func New(ctx context.Context, cfg *config.Config) (StoreInterface, error) {
	switch cfg.StoreBackend {
	case "sqlite":
		s, err := NewSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "cassandra":
		s, err := NewCassandra(cfg)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "memory":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

var (
	_ StoreInterface = (*SQLStore)(nil)
	_ StoreInterface = (*CassandraStore)(nil)
	_ StoreInterface = (*MemoryStore)(nil)
	_ StoreInterface = (*MockStoreFail)(nil)
)
