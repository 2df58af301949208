// Package memory is an in-process implementation of the service storage.
// It backs the "memory" storage driver for local runs and the end-to-end
// tests. Every method holds a single mutex, so compound operations such as
// refresh token rotation are atomic.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"blog_service/internal/models"
	"blog_service/internal/storage"

	"github.com/google/uuid"
)

type Storage struct {
	mu            sync.Mutex
	users         map[string]models.User
	emails        map[string]string
	refreshTokens map[string]models.RefreshToken
	categories    map[string]models.Category
	posts         map[string]models.Post
	now           func() time.Time
}

func New() *Storage {
	return &Storage{
		users:         make(map[string]models.User),
		emails:        make(map[string]string),
		refreshTokens: make(map[string]models.RefreshToken),
		categories:    make(map[string]models.Category),
		posts:         make(map[string]models.Post),
		now:           time.Now,
	}
}

func (s *Storage) SaveUser(_ context.Context, email string, passHash []byte) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.emails[email]; ok {
		return models.User{}, storage.ErrUserExists
	}

	now := s.now()
	u := models.User{
		ID:        uuid.NewString(),
		Email:     email,
		PassHash:  passHash,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.users[u.ID] = u
	s.emails[email] = u.ID

	return u, nil
}

func (s *Storage) User(_ context.Context, email string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.emails[email]
	if !ok {
		return models.User{}, storage.ErrUserNotFound
	}

	return s.users[id], nil
}

func (s *Storage) UserByID(_ context.Context, id string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return models.User{}, storage.ErrUserNotFound
	}

	return u, nil
}

func (s *Storage) SetEmailVerified(_ context.Context, uid string) error {
	return s.updateUser(uid, func(u *models.User) error {
		u.IsVerified = true
		return nil
	})
}

// SetAdmin is used by seeding and tests; there is no endpoint that grants
// the admin role.
func (s *Storage) SetAdmin(_ context.Context, uid string, isAdmin bool) error {
	return s.updateUser(uid, func(u *models.User) error {
		u.IsAdmin = isAdmin
		return nil
	})
}

func (s *Storage) SetForgotToken(_ context.Context, uid string, token string) error {
	return s.updateUser(uid, func(u *models.User) error {
		u.ForgotToken = &token
		return nil
	})
}

func (s *Storage) ResetPassword(_ context.Context, uid string, passHash []byte, forgotToken string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[uid]
	if !ok {
		return storage.ErrUserNotFound
	}
	if u.ForgotToken == nil || *u.ForgotToken != forgotToken {
		return storage.ErrForgotTokenMismatch
	}

	u.PassHash = passHash
	u.ForgotToken = nil
	u.UpdatedAt = s.now()
	s.users[uid] = u

	s.deleteUserRefreshTokens(uid)

	return nil
}

func (s *Storage) UpdatePassword(_ context.Context, uid string, passHash []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[uid]
	if !ok {
		return storage.ErrUserNotFound
	}

	u.PassHash = passHash
	u.UpdatedAt = s.now()
	s.users[uid] = u

	s.deleteUserRefreshTokens(uid)

	return nil
}

func (s *Storage) UpdateProfile(_ context.Context, uid string, p models.Profile) error {
	return s.updateUser(uid, func(u *models.User) error {
		if p.Firstname != nil {
			u.Profile.Firstname = p.Firstname
		}
		if p.Lastname != nil {
			u.Profile.Lastname = p.Lastname
		}
		if p.BirthDay != nil {
			u.Profile.BirthDay = p.BirthDay
		}
		if p.Gender != nil {
			u.Profile.Gender = p.Gender
		}
		if p.Address != nil {
			u.Profile.Address = p.Address
		}
		return nil
	})
}

func (s *Storage) updateUser(uid string, fn func(u *models.User) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[uid]
	if !ok {
		return storage.ErrUserNotFound
	}

	if err := fn(&u); err != nil {
		return err
	}

	u.UpdatedAt = s.now()
	s.users[uid] = u

	return nil
}

func (s *Storage) SaveRefreshToken(_ context.Context, rt models.RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.refreshTokens[rt.Token]; ok {
		return storage.ErrRefreshTokenExists
	}

	rt.CreatedAt = s.now()
	s.refreshTokens[rt.Token] = rt

	return nil
}

func (s *Storage) RefreshToken(_ context.Context, token string) (models.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rt, ok := s.refreshTokens[token]
	if !ok {
		return models.RefreshToken{}, storage.ErrRefreshTokenNotFound
	}

	return rt, nil
}

// RotateRefreshToken replaces oldToken with next only if oldToken still
// exists, belongs to next.UserID and has not expired at now.
func (s *Storage) RotateRefreshToken(_ context.Context, oldToken string, next models.RefreshToken, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.refreshTokens[oldToken]
	if !ok || old.UserID != next.UserID || old.IsExpired(now) {
		return storage.ErrRefreshTokenNotFound
	}
	if _, ok := s.refreshTokens[next.Token]; ok {
		return storage.ErrRefreshTokenExists
	}

	delete(s.refreshTokens, oldToken)

	next.CreatedAt = s.now()
	s.refreshTokens[next.Token] = next

	return nil
}

func (s *Storage) DeleteRefreshToken(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.refreshTokens, token)

	return nil
}

func (s *Storage) DeleteExpiredRefreshTokens(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for token, rt := range s.refreshTokens {
		if rt.IsExpired(now) {
			delete(s.refreshTokens, token)
			n++
		}
	}

	return n, nil
}

func (s *Storage) deleteUserRefreshTokens(uid string) {
	for token, rt := range s.refreshTokens {
		if rt.UserID == uid {
			delete(s.refreshTokens, token)
		}
	}
}

func (s *Storage) SaveCategory(_ context.Context, name string) (models.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.categoryNameTaken(name, "") {
		return models.Category{}, storage.ErrCategoryExists
	}

	now := s.now()
	c := models.Category{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.categories[c.ID] = c

	return c, nil
}

func (s *Storage) Category(_ context.Context, id string) (models.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.categories[id]
	if !ok {
		return models.Category{}, storage.ErrCategoryNotFound
	}

	return c, nil
}

func (s *Storage) Categories(_ context.Context, q storage.CategoryQuery) ([]models.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := make([]models.Category, 0, len(s.categories))
	for _, c := range s.categories {
		if q.Search != "" && !strings.Contains(c.Name, q.Search) {
			continue
		}
		res = append(res, c)
	}

	sort.Slice(res, func(i, j int) bool {
		return res[i].CreatedAt.Before(res[j].CreatedAt) ||
			(res[i].CreatedAt.Equal(res[j].CreatedAt) && res[i].Name < res[j].Name)
	})

	return page(res, q.Skip, q.Take), nil
}

func (s *Storage) UpdateCategory(_ context.Context, id string, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.categories[id]
	if !ok {
		return storage.ErrCategoryNotFound
	}
	if s.categoryNameTaken(name, id) {
		return storage.ErrCategoryExists
	}

	c.Name = name
	c.UpdatedAt = s.now()
	s.categories[id] = c

	return nil
}

func (s *Storage) DeleteCategory(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.categories[id]; !ok {
		return storage.ErrCategoryNotFound
	}

	delete(s.categories, id)

	for pid, p := range s.posts {
		if p.CategoryID != nil && *p.CategoryID == id {
			p.CategoryID = nil
			s.posts[pid] = p
		}
	}

	return nil
}

func (s *Storage) categoryNameTaken(name, exceptID string) bool {
	for id, c := range s.categories {
		if id != exceptID && c.Name == name {
			return true
		}
	}
	return false
}

func (s *Storage) SavePost(_ context.Context, p models.Post) (models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.CategoryID != nil {
		if _, ok := s.categories[*p.CategoryID]; !ok {
			return models.Post{}, storage.ErrCategoryNotFound
		}
	}

	now := s.now()
	p.ID = uuid.NewString()
	p.CreatedAt = now
	p.UpdatedAt = now
	s.posts[p.ID] = p

	return p, nil
}

func (s *Storage) Post(_ context.Context, id string) (models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.posts[id]
	if !ok {
		return models.Post{}, storage.ErrPostNotFound
	}

	return p, nil
}

func (s *Storage) Posts(_ context.Context, q storage.PostQuery) ([]models.Post, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	term := strings.ToLower(q.SearchTerm)

	res := make([]models.Post, 0)
	for _, p := range s.posts {
		if q.AuthorID != "" && p.AuthorID != q.AuthorID {
			continue
		}
		if q.Status != "" && string(p.Status) != q.Status {
			continue
		}
		if q.CategoryID != "" && (p.CategoryID == nil || *p.CategoryID != q.CategoryID) {
			continue
		}
		if term != "" &&
			!strings.Contains(strings.ToLower(p.Title), term) &&
			!strings.Contains(strings.ToLower(p.Content), term) {
			continue
		}
		res = append(res, p)
	}

	// Same order as the SQL store: the sort key in the requested direction,
	// then id ascending.
	sort.Slice(res, func(i, j int) bool {
		a, b := res[i], res[j]
		if q.SortOrder == storage.SortDesc {
			a, b = b, a
		}

		switch q.SortBy {
		case storage.SortByTitle:
			if a.Title != b.Title {
				return a.Title < b.Title
			}
		default:
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.Before(b.CreatedAt)
			}
		}

		return res[i].ID < res[j].ID
	})

	return page(res, q.Skip, q.Take), len(res), nil
}

func (s *Storage) UpdatePost(_ context.Context, p models.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.posts[p.ID]
	if !ok || cur.AuthorID != p.AuthorID {
		return storage.ErrPostNotFound
	}
	if p.CategoryID != nil {
		if _, ok := s.categories[*p.CategoryID]; !ok {
			return storage.ErrCategoryNotFound
		}
	}

	cur.Title = p.Title
	cur.Content = p.Content
	cur.Status = p.Status
	cur.CategoryID = p.CategoryID
	cur.UpdatedAt = s.now()
	s.posts[p.ID] = cur

	return nil
}

func (s *Storage) DeletePost(_ context.Context, id string, authorID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.posts[id]
	if !ok || p.AuthorID != authorID {
		return storage.ErrPostNotFound
	}

	delete(s.posts, id)

	return nil
}

func (s *Storage) Close() {}

func page[T any](items []T, skip, take int) []T {
	if skip < 0 {
		skip = 0
	}
	if skip >= len(items) {
		return []T{}
	}

	items = items[skip:]
	if take > 0 && take < len(items) {
		items = items[:take]
	}

	return items
}
