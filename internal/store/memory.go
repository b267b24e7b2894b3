package store

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"strings"
	"sync"

	"example.com/chirp/internal/models"
)

// MemoryStore keeps everything in maps. It honours the same uniqueness and
// cascade rules as the SQL schema and is used by tests and the memory backend.
type MemoryStore struct {
	mu      sync.RWMutex
	authors map[string]models.Author
	emails  map[string]string
	cheeps  map[string]models.Cheep
	follows map[string]map[string]struct{} // follower -> followed set
}

// NewMemory initializes a new empty memory store
func NewMemory() *MemoryStore {
	return &MemoryStore{
		authors: make(map[string]models.Author),
		emails:  make(map[string]string),
		cheeps:  make(map[string]models.Cheep),
		follows: make(map[string]map[string]struct{}),
	}
}

func (m *MemoryStore) Close() {}

func (m *MemoryStore) CreateAuthor(_ context.Context, a models.Author) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.authors[a.UserName]; ok {
		return ErrDuplicateUserName
	}
	if _, ok := m.emails[a.Email]; ok {
		return ErrDuplicateEmail
	}
	m.authors[a.UserName] = a
	m.emails[a.Email] = a.UserName
	return nil
}

func (m *MemoryStore) GetAuthor(_ context.Context, userName string) (models.Author, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.authors[userName]
	if !ok {
		return models.Author{}, ErrNotFound
	}
	return a, nil
}

func (m *MemoryStore) GetAuthorByEmail(ctx context.Context, email string) (models.Author, error) {
	m.mu.RLock()
	userName, ok := m.emails[email]
	m.mu.RUnlock()
	if !ok {
		return models.Author{}, ErrNotFound
	}
	return m.GetAuthor(ctx, userName)
}

func (m *MemoryStore) SearchAuthors(_ context.Context, query string, limit int) ([]models.Author, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	q := strings.ToLower(query)
	var res []models.Author
	for _, a := range m.authors {
		if strings.Contains(strings.ToLower(a.UserName), q) || strings.Contains(strings.ToLower(a.DisplayName), q) {
			res = append(res, a)
		}
	}
	sortAuthorsForSearch(res)
	if len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}

func (m *MemoryStore) DeleteAuthor(_ context.Context, userName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.authors[userName]
	if !ok {
		return ErrNotFound
	}
	delete(m.authors, userName)
	delete(m.emails, a.Email)
	for id, c := range m.cheeps {
		if c.UserName == userName {
			delete(m.cheeps, id)
		}
	}
	delete(m.follows, userName)
	for _, followed := range m.follows {
		delete(followed, userName)
	}
	return nil
}

func (m *MemoryStore) AddCheep(_ context.Context, c models.Cheep) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.authors[c.UserName]; !ok {
		return ErrNotFound
	}
	m.cheeps[c.ID] = c
	return nil
}

func (m *MemoryStore) FindCheeps(_ context.Context, userName, text string) ([]models.Cheep, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var res []models.Cheep
	for _, c := range m.cheeps {
		if c.UserName == userName && c.Text == text {
			res = append(res, c)
		}
	}
	models.SortCheeps(res)
	return res, nil
}

func (m *MemoryStore) DeleteCheep(_ context.Context, c models.Cheep) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cheeps, c.ID)
	return nil
}

func (m *MemoryStore) Cheeps(_ context.Context, q models.TimelineQuery) ([]models.Cheep, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := m.filter(q)
	models.SortCheeps(res)
	return slicePage(res, q.Offset, q.Limit), nil
}

func (m *MemoryStore) CountCheeps(_ context.Context, q models.TimelineQuery) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.filter(q)), nil
}

// filter must be called with the read lock held.
func (m *MemoryStore) filter(q models.TimelineQuery) []models.Cheep {
	var res []models.Cheep
	for _, c := range m.cheeps {
		switch q.Scope {
		case models.ScopeAuthor:
			if c.UserName != q.UserName {
				continue
			}
		case models.ScopeFollowed:
			if _, ok := m.follows[q.UserName][c.UserName]; !ok {
				continue
			}
		}
		res = append(res, c)
	}
	return res
}

func (m *MemoryStore) AddFollow(_ context.Context, follower, followed string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.authors[follower]; !ok {
		return nil
	}
	if _, ok := m.authors[followed]; !ok {
		return nil
	}
	if m.follows[follower] == nil {
		m.follows[follower] = make(map[string]struct{})
	}
	m.follows[follower][followed] = struct{}{}
	return nil
}

func (m *MemoryStore) RemoveFollow(_ context.Context, follower, followed string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.follows[follower], followed)
	return nil
}

func (m *MemoryStore) Following(_ context.Context, userName string) ([]models.Author, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var res []models.Author
	for followed := range m.follows[userName] {
		res = append(res, m.authors[followed])
	}
	sortAuthorsByName(res)
	return res, nil
}

func (m *MemoryStore) Followers(_ context.Context, userName string) ([]models.Author, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var res []models.Author
	for follower, followed := range m.follows {
		if _, ok := followed[userName]; ok {
			res = append(res, m.authors[follower])
		}
	}
	sortAuthorsByName(res)
	return res, nil
}

// --- shared helpers ---

// slicePage returns cs[offset:offset+limit] clamped to the slice bounds.
func slicePage(cs []models.Cheep, offset, limit int) []models.Cheep {
	if offset >= len(cs) || limit <= 0 {
		return nil
	}
	end := min(offset+limit, len(cs))
	return cs[offset:end]
}

func sortAuthorsForSearch(as []models.Author) {
	slices.SortFunc(as, func(a, b models.Author) int {
		if c := cmp.Compare(strings.ToLower(a.DisplayName), strings.ToLower(b.DisplayName)); c != 0 {
			return c
		}
		return cmp.Compare(a.UserName, b.UserName)
	})
}

func sortAuthorsByName(as []models.Author) {
	slices.SortFunc(as, func(a, b models.Author) int { return cmp.Compare(a.UserName, b.UserName) })
}

// ---------------------------------------------
// MockStoreFail always returns errors for negative tests
type MockStoreFail struct{}

var errMockFail = errors.New("mock store failed")

func (m *MockStoreFail) Close() {}

func (m *MockStoreFail) CreateAuthor(context.Context, models.Author) error { return errMockFail }

func (m *MockStoreFail) GetAuthor(context.Context, string) (models.Author, error) {
	return models.Author{}, errMockFail
}

func (m *MockStoreFail) GetAuthorByEmail(context.Context, string) (models.Author, error) {
	return models.Author{}, errMockFail
}

func (m *MockStoreFail) SearchAuthors(context.Context, string, int) ([]models.Author, error) {
	return nil, errMockFail
}

func (m *MockStoreFail) DeleteAuthor(context.Context, string) error { return errMockFail }

func (m *MockStoreFail) AddCheep(context.Context, models.Cheep) error { return errMockFail }

func (m *MockStoreFail) FindCheeps(context.Context, string, string) ([]models.Cheep, error) {
	return nil, errMockFail
}

func (m *MockStoreFail) DeleteCheep(context.Context, models.Cheep) error { return errMockFail }

func (m *MockStoreFail) Cheeps(context.Context, models.TimelineQuery) ([]models.Cheep, error) {
	return nil, errMockFail
}

func (m *MockStoreFail) CountCheeps(context.Context, models.TimelineQuery) (int, error) {
	return 0, errMockFail
}

func (m *MockStoreFail) AddFollow(context.Context, string, string) error { return errMockFail }

func (m *MockStoreFail) RemoveFollow(context.Context, string, string) error { return errMockFail }

func (m *MockStoreFail) Following(context.Context, string) ([]models.Author, error) {
	return nil, errMockFail
}

func (m *MockStoreFail) Followers(context.Context, string) ([]models.Author, error) {
	return nil, errMockFail
}
