package chirp

import (
	"context"
	"errors"
	"strings"

	"example.com/chirp/internal/models"
	"golang.org/x/crypto/bcrypt"
)

// SearchLimit caps author search results.
const SearchLimit = PageSize

// NewAuthor is what registration collects.
type NewAuthor struct {
	UserName    string
	DisplayName string
	Email       string
	Password    string
}

// CreateAuthor registers a new author and bootstraps their self-follow so
// their home timeline shows their own cheeps.
func (s *Service) CreateAuthor(ctx context.Context, in NewAuthor) (models.AuthorDTO, error) {
	in.UserName = strings.TrimSpace(in.UserName)
	in.Email = strings.TrimSpace(in.Email)
	if in.UserName == "" || in.Email == "" {
		return models.AuthorDTO{}, ErrInvalidAuthor
	}
	if in.DisplayName == "" {
		in.DisplayName = in.UserName
	}

	var hash string
	if in.Password != "" {
		h, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
		if err != nil {
			return models.AuthorDTO{}, err
		}
		hash = string(h)
	}

	a := models.Author{
		UserName:     in.UserName,
		DisplayName:  in.DisplayName,
		Email:        in.Email,
		PasswordHash: hash,
		CreatedAt:    s.Now(),
	}
	if err := s.store.CreateAuthor(ctx, a); err != nil {
		return models.AuthorDTO{}, err
	}
	if err := s.store.AddFollow(ctx, a.UserName, a.UserName); err != nil {
		// an author without the self-follow can't see their own home timeline
		if derr := s.store.DeleteAuthor(ctx, a.UserName); derr != nil {
			logg.Error("chirp", "Failed to roll back author registration", derr)
		}
		return models.AuthorDTO{}, err
	}

	logg.Info("chirp", "Author registered (username anonymized)")
	return models.NewAuthorDTO(a), nil
}

func (s *Service) GetAuthor(ctx context.Context, userName string) (models.AuthorDTO, error) {
	a, err := s.store.GetAuthor(ctx, userName)
	if err != nil {
		if isNotFound(err) {
			return models.AuthorDTO{}, ErrAuthorNotFound
		}
		return models.AuthorDTO{}, err
	}
	return models.NewAuthorDTO(a), nil
}

func (s *Service) GetAuthorByEmail(ctx context.Context, email string) (models.AuthorDTO, error) {
	a, err := s.store.GetAuthorByEmail(ctx, email)
	if err != nil {
		if isNotFound(err) {
			return models.AuthorDTO{}, ErrAuthorNotFound
		}
		return models.AuthorDTO{}, err
	}
	return models.NewAuthorDTO(a), nil
}

// SearchAuthors matches query against usernames and display names, ignoring case.
func (s *Service) SearchAuthors(ctx context.Context, query string) ([]models.AuthorDTO, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []models.AuthorDTO{}, nil
	}
	authors, err := s.store.SearchAuthors(ctx, query, SearchLimit)
	if err != nil {
		return nil, err
	}
	return authorDTOs(authors), nil
}

// Authenticate checks password for the author named or addressed by login.
func (s *Service) Authenticate(ctx context.Context, login, password string) (models.AuthorDTO, error) {
	lookup := s.store.GetAuthor
	if strings.Contains(login, "@") {
		lookup = s.store.GetAuthorByEmail
	}
	a, err := lookup(ctx, strings.TrimSpace(login))
	if err != nil {
		if isNotFound(err) {
			return models.AuthorDTO{}, ErrInvalidCredentials
		}
		return models.AuthorDTO{}, err
	}
	if a.PasswordHash == "" {
		return models.AuthorDTO{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return models.AuthorDTO{}, ErrInvalidCredentials
		}
		return models.AuthorDTO{}, err
	}
	return models.NewAuthorDTO(a), nil
}

// DeleteAuthor forgets userName together with their cheeps and relations.
func (s *Service) DeleteAuthor(ctx context.Context, userName string) error {
	if err := s.store.DeleteAuthor(ctx, userName); err != nil {
		if isNotFound(err) {
			return ErrAuthorNotFound
		}
		return err
	}
	logg.Info("chirp", "Author forgotten (username anonymized)")
	return nil
}
