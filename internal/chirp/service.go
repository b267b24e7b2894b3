// Package chirp holds the application rules on top of a store: timeline
// paging, follow bookkeeping, cheep authoring and account handling.
package chirp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"example.com/chirp/internal/logger"
	"example.com/chirp/internal/models"
	"example.com/chirp/internal/store"
)

// PageSize is the number of cheeps on one timeline page.
const PageSize = 32

// MaxCheepLength is the longest accepted cheep, in characters.
const MaxCheepLength = 160

var logg = logger.New()

var (
	ErrCheepTooLong       = fmt.Errorf("cheep exceeds %d characters", MaxCheepLength)
	ErrAuthorNotFound     = errors.New("author not found")
	ErrDuplicateUserName  = store.ErrDuplicateUserName
	ErrDuplicateEmail     = store.ErrDuplicateEmail
	ErrInvalidCredentials = errors.New("invalid username/email or password")
	ErrInvalidAuthor      = errors.New("username and email are required")
)

// Publisher receives cheep events after they are persisted.
type Publisher interface {
	Publish(ctx context.Context, e models.CheepEvent) error
}

// Service implements the Chirp operations over a store.
type Service struct {
	store     store.StoreInterface
	publisher Publisher
	now       func() time.Time
}

// Option tweaks a Service.
type Option func(*Service)

// WithPublisher sends cheep events to p.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New creates a Service on st.
func New(st store.StoreInterface, opts ...Option) *Service {
	s := &Service{store: st, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Now returns the service clock in UTC.
func (s *Service) Now() time.Time {
	return s.now().UTC()
}

func (s *Service) publish(ctx context.Context, typ string, c models.Cheep) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, models.NewCheepEvent(typ, c)); err != nil {
		logg.Error("chirp", "Failed to publish "+typ+" event", err)
	}
}
