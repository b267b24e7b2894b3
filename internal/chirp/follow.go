package chirp

import (
	"context"
	"errors"

	"example.com/chirp/internal/models"
	"example.com/chirp/internal/store"
)

func isNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}

// Follow makes follower follow followed. It does nothing when either author
// is unknown or the relation already exists.
func (s *Service) Follow(ctx context.Context, follower, followed string) error {
	for _, u := range []string{follower, followed} {
		if _, err := s.store.GetAuthor(ctx, u); err != nil {
			if isNotFound(err) {
				return nil
			}
			return err
		}
	}

	following, err := s.store.Following(ctx, follower)
	if err != nil {
		return err
	}
	for _, a := range following {
		if a.UserName == followed {
			return nil
		}
	}

	if err := s.store.AddFollow(ctx, follower, followed); err != nil {
		return err
	}
	logg.Debug("chirp", "Follow relation added")
	return nil
}

// Unfollow removes the relation. Unfollowing oneself is ignored.
func (s *Service) Unfollow(ctx context.Context, follower, followed string) error {
	if follower == followed {
		return nil
	}
	return s.store.RemoveFollow(ctx, follower, followed)
}

func (s *Service) IsFollowing(ctx context.Context, follower, followed string) (bool, error) {
	following, err := s.store.Following(ctx, follower)
	if err != nil {
		return false, err
	}
	for _, a := range following {
		if a.UserName == followed {
			return true, nil
		}
	}
	return false, nil
}

// Following lists the authors userName follows, themselves included.
func (s *Service) Following(ctx context.Context, userName string) ([]models.AuthorDTO, error) {
	authors, err := s.store.Following(ctx, userName)
	if err != nil {
		return nil, err
	}
	return authorDTOs(authors), nil
}

// Followers lists the authors following userName, themselves included.
func (s *Service) Followers(ctx context.Context, userName string) ([]models.AuthorDTO, error) {
	authors, err := s.store.Followers(ctx, userName)
	if err != nil {
		return nil, err
	}
	return authorDTOs(authors), nil
}

func authorDTOs(as []models.Author) []models.AuthorDTO {
	res := make([]models.AuthorDTO, 0, len(as))
	for _, a := range as {
		res = append(res, models.NewAuthorDTO(a))
	}
	models.SortAuthorDTOs(res)
	return res
}
