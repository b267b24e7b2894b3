package chirp

import (
	"context"

	"example.com/chirp/internal/models"
)

// Page is one page of a timeline.
type Page struct {
	Cheeps    []models.CheepDTO `json:"cheeps"`
	Page      int               `json:"page"`
	PageCount int               `json:"page_count"`
	Total     int               `json:"total"`
}

// NormalizePage maps page numbers below 1 to 1.
func NormalizePage(page int) int {
	if page < 1 {
		return 1
	}
	return page
}

// PageCount is the number of pages needed for total cheeps, at least 1.
func PageCount(total int) int {
	if total <= 0 {
		return 1
	}
	return (total + PageSize - 1) / PageSize
}

// GetCheeps returns page of the public timeline.
func (s *Service) GetCheeps(ctx context.Context, page int) ([]models.CheepDTO, error) {
	return s.timeline(ctx, models.ScopePublic, "", page)
}

// GetCheepsFromUserName returns page of one author's cheeps. Unknown authors
// have an empty timeline.
func (s *Service) GetCheepsFromUserName(ctx context.Context, userName string, page int) ([]models.CheepDTO, error) {
	return s.timeline(ctx, models.ScopeAuthor, userName, page)
}

// GetCheepsFromFollowed returns page of the home timeline of userName: the
// cheeps of every author they follow, themselves included.
func (s *Service) GetCheepsFromFollowed(ctx context.Context, userName string, page int) ([]models.CheepDTO, error) {
	return s.timeline(ctx, models.ScopeFollowed, userName, page)
}

func (s *Service) CheepCount(ctx context.Context) (int, error) {
	return s.store.CountCheeps(ctx, models.TimelineQuery{Scope: models.ScopePublic})
}

func (s *Service) CheepCountFromUserName(ctx context.Context, userName string) (int, error) {
	return s.store.CountCheeps(ctx, models.TimelineQuery{Scope: models.ScopeAuthor, UserName: userName})
}

func (s *Service) CheepCountFromFollowed(ctx context.Context, userName string) (int, error) {
	return s.store.CountCheeps(ctx, models.TimelineQuery{Scope: models.ScopeFollowed, UserName: userName})
}

// PublicPage bundles GetCheeps with the counts a pager needs.
func (s *Service) PublicPage(ctx context.Context, page int) (Page, error) {
	return s.pageOf(ctx, models.ScopePublic, "", page)
}

func (s *Service) AuthorPage(ctx context.Context, userName string, page int) (Page, error) {
	return s.pageOf(ctx, models.ScopeAuthor, userName, page)
}

func (s *Service) FollowedPage(ctx context.Context, userName string, page int) (Page, error) {
	return s.pageOf(ctx, models.ScopeFollowed, userName, page)
}

func (s *Service) pageOf(ctx context.Context, scope models.Scope, userName string, page int) (Page, error) {
	page = NormalizePage(page)
	cheeps, err := s.timeline(ctx, scope, userName, page)
	if err != nil {
		return Page{}, err
	}
	total, err := s.store.CountCheeps(ctx, models.TimelineQuery{Scope: scope, UserName: userName})
	if err != nil {
		return Page{}, err
	}
	return Page{Cheeps: cheeps, Page: page, PageCount: PageCount(total), Total: total}, nil
}

func (s *Service) timeline(ctx context.Context, scope models.Scope, userName string, page int) ([]models.CheepDTO, error) {
	q := models.TimelineQuery{
		Scope:    scope,
		UserName: userName,
		Offset:   (NormalizePage(page) - 1) * PageSize,
		Limit:    PageSize,
	}
	cheeps, err := s.store.Cheeps(ctx, q)
	if err != nil {
		logg.Error("chirp", "Failed to load timeline", err)
		return nil, err
	}
	return s.project(ctx, cheeps)
}

// project converts cheeps to DTOs, looking each author up once.
func (s *Service) project(ctx context.Context, cheeps []models.Cheep) ([]models.CheepDTO, error) {
	authors := make(map[string]models.Author)
	res := make([]models.CheepDTO, 0, len(cheeps))
	for _, c := range cheeps {
		a, ok := authors[c.UserName]
		if !ok {
			var err error
			a, err = s.store.GetAuthor(ctx, c.UserName)
			if err != nil && !isNotFound(err) {
				return nil, err
			}
			authors[c.UserName] = a
		}
		res = append(res, models.NewCheepDTO(c, a))
	}
	return res, nil
}
