package usecase

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	cacheport "supportchat/internal/infrastructure/cache/port"
	domain "supportchat/internal/pkg/messaging/domain"
	repository "supportchat/internal/pkg/messaging/persistence/repository/port"
)

// UnreadCounts is a read-through cache over the derived unread count. The
// delivery records stay the single source of truth; the cache is only a
// short-lived projection and every write path invalidates it.
type UnreadCounts struct {
	Repo  repository.MessagingRepository
	Cache cacheport.Cache // optional; nil disables caching
	TTL   time.Duration
}

func NewUnreadCounts(repo repository.MessagingRepository, cache cacheport.Cache) *UnreadCounts {
	return &UnreadCounts{Repo: repo, Cache: cache, TTL: 30 * time.Second}
}

var _ UnreadInvalidator = (*UnreadCounts)(nil)

// Get returns the unread count for the (thread, principal) pair.
func (u *UnreadCounts) Get(ctx context.Context, threadID, principalID string) (int, error) {
	key := unreadKey(threadID, principalID)
	if u.Cache != nil {
		if v, err := u.Cache.Get(ctx, key); err == nil {
			if n, perr := strconv.Atoi(v); perr == nil {
				return n, nil
			}
		}
	}

	n, err := u.Repo.UnreadCount(ctx, threadID, principalID)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if u.Cache != nil {
		if err := u.Cache.Set(ctx, key, strconv.Itoa(n), u.TTL); err != nil {
			log.Debug().Err(err).Msg("unread cache set failed")
		}
	}
	return n, nil
}

// Invalidate drops the cached counts for the given recipients in a thread.
func (u *UnreadCounts) Invalidate(ctx context.Context, threadID string, recipients []domain.Participant) {
	if u.Cache == nil || len(recipients) == 0 {
		return
	}
	keys := make([]string, 0, len(recipients))
	for _, p := range recipients {
		keys = append(keys, unreadKey(threadID, p.PrincipalID))
	}
	if _, err := u.Cache.Del(ctx, keys...); err != nil {
		log.Debug().Err(err).Msg("unread cache invalidation failed")
	}
}

// InvalidateOne drops a single cached count.
func (u *UnreadCounts) InvalidateOne(ctx context.Context, threadID, principalID string) {
	if u.Cache == nil {
		return
	}
	if _, err := u.Cache.Del(ctx, unreadKey(threadID, principalID)); err != nil {
		log.Debug().Err(err).Msg("unread cache invalidation failed")
	}
}

func unreadKey(threadID, principalID string) string {
	return "messaging:unread:" + threadID + ":" + principalID
}
