package chirp

import (
	"context"
	"time"
	"unicode/utf8"

	"example.com/chirp/internal/models"
	"github.com/google/uuid"
)

// CreateCheep stores message as a cheep by userName at timestamp and
// announces it to the publisher.
func (s *Service) CreateCheep(ctx context.Context, userName, message string, timestamp time.Time) (models.CheepDTO, error) {
	if utf8.RuneCountInString(message) > MaxCheepLength {
		return models.CheepDTO{}, ErrCheepTooLong
	}

	a, err := s.store.GetAuthor(ctx, userName)
	if err != nil {
		if isNotFound(err) {
			return models.CheepDTO{}, ErrAuthorNotFound
		}
		return models.CheepDTO{}, err
	}

	c := models.Cheep{
		ID:        uuid.NewString(),
		UserName:  userName,
		Text:      message,
		TimeStamp: timestamp.UTC(),
	}
	if err := s.store.AddCheep(ctx, c); err != nil {
		if isNotFound(err) {
			return models.CheepDTO{}, ErrAuthorNotFound
		}
		return models.CheepDTO{}, err
	}

	s.publish(ctx, models.EventCheepCreated, c)
	return models.NewCheepDTO(c, a), nil
}

// DeleteCheep removes the cheep whose author, text and rendered timestamp
// equal the DTO's. It reports whether a cheep was removed.
func (s *Service) DeleteCheep(ctx context.Context, dto models.CheepDTO) (bool, error) {
	candidates, err := s.store.FindCheeps(ctx, dto.UserName, dto.Text)
	if err != nil {
		return false, err
	}
	for _, c := range candidates {
		if models.FormatTimeStamp(c.TimeStamp) != dto.TimeStamp {
			continue
		}
		if err := s.store.DeleteCheep(ctx, c); err != nil {
			return false, err
		}
		s.publish(ctx, models.EventCheepDeleted, c)
		return true, nil
	}
	return false, nil
}
