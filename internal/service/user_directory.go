package service

import (
	"context"
	"errors"

	"github.com/studyshare/studyshare-backend/internal/domain"
	"github.com/studyshare/studyshare-backend/internal/repository"
	"github.com/studyshare/studyshare-backend/pkg/cache"
	pkglogger "github.com/studyshare/studyshare-backend/pkg/logger"
)

// UserDirectory resolves user identities for validation and display snapshots
type UserDirectory interface {
	// Get returns common.ErrUserNotFound for unknown ids
	Get(ctx context.Context, id string) (*domain.User, error)

	// GetMany returns the users that exist, keyed by id
	GetMany(ctx context.Context, ids []string) (map[string]*domain.User, error)
}

type userDirectory struct {
	repo  repository.UserRepository
	cache cache.Service
}

// NewUserDirectory creates a UserDirectory. c may be nil to disable caching.
func NewUserDirectory(repo repository.UserRepository, c cache.Service) UserDirectory {
	return &userDirectory{repo: repo, cache: c}
}

func (d *userDirectory) Get(ctx context.Context, id string) (*domain.User, error) {
	if user, ok := d.cached(ctx, id); ok {
		return user, nil
	}
	user, err := d.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	d.store(ctx, user)
	return user, nil
}

func (d *userDirectory) GetMany(ctx context.Context, ids []string) (map[string]*domain.User, error) {
	found := make(map[string]*domain.User, len(ids))
	missing := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if user, ok := d.cached(ctx, id); ok {
			found[id] = user
			continue
		}
		missing = append(missing, id)
	}
	if len(missing) == 0 {
		return found, nil
	}

	users, err := d.repo.FindByIDs(ctx, missing)
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		found[u.ID] = u
		d.store(ctx, u)
	}
	return found, nil
}

func (d *userDirectory) cached(ctx context.Context, id string) (*domain.User, bool) {
	if d.cache == nil || !d.cache.IsAvailable() {
		return nil, false
	}
	var user domain.User
	if err := d.cache.Get(ctx, cache.UserKey(id), &user); err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			pkglogger.GetLogger().Warn().Err(err).Str("user_id", id).Msg("user cache read failed")
		}
		return nil, false
	}
	return &user, true
}

func (d *userDirectory) store(ctx context.Context, user *domain.User) {
	if d.cache == nil || !d.cache.IsAvailable() {
		return
	}
	if err := d.cache.Set(ctx, cache.UserKey(user.ID), user, cache.TTLUser); err != nil {
		pkglogger.GetLogger().Warn().Err(err).Str("user_id", user.ID).Msg("user cache write failed")
	}
}

// summaries resolves ids to display summaries, keeping the bare id for users
// that no longer exist
func summaries(ctx context.Context, dir UserDirectory, ids []string) ([]*domain.UserSummary, error) {
	users, err := dir.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.UserSummary, 0, len(ids))
	for _, id := range ids {
		if u, ok := users[id]; ok {
			out = append(out, u.Summary())
			continue
		}
		out = append(out, &domain.UserSummary{ID: id})
	}
	return out, nil
}
