package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"direct_chat_service/internal/member/domain"
	"direct_chat_service/internal/member/repository"
	"direct_chat_service/pkg/database"
	"direct_chat_service/pkg/logger"

	"go.uber.org/zap"
)

const memberCachePrefix = "member:"

// DirectoryUseCase 提供聊天對象的查詢
type DirectoryUseCase interface {
	// FindMember reachable member by member id, domain.ErrMemberNotFound otherwise
	FindMember(ctx context.Context, memberID string) (*domain.Member, error)
	// ListMembers everyone but the viewer, ordered by email, filtered by email substring
	ListMembers(ctx context.Context, viewerID, search string) ([]*domain.Member, error)
}

type directoryUseCase struct {
	memberRepo repository.MemberRepository
	cache      database.RedisRepository[domain.Member]
	cacheTTL   time.Duration
}

// NewDirectoryUseCase 建立 DirectoryUseCase, cache 可為 nil
func NewDirectoryUseCase(memberRepo repository.MemberRepository,
	cache database.RedisRepository[domain.Member],
	cacheTTL time.Duration,
) DirectoryUseCase {
	return &directoryUseCase{
		memberRepo: memberRepo,
		cache:      cache,
		cacheTTL:   cacheTTL,
	}
}

func (d *directoryUseCase) FindMember(ctx context.Context, memberID string) (*domain.Member, error) {
	key := memberCachePrefix + memberID
	if d.cache != nil {
		cached, err := d.cache.Get(ctx, key)
		if err == nil {
			return &cached, nil
		}
		if !errors.Is(err, database.ErrCacheMiss) {
			logger.Log.Warn("member cache get", zap.String("member_id", memberID), zap.Error(err))
		}
	}

	member, err := d.memberRepo.FindByMember(ctx, &domain.MemberQuery{MemberID: &memberID})
	if err != nil {
		if errors.Is(err, domain.ErrMemberNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("find member %s: %w", memberID, err)
	}
	if !member.Reachable() {
		return nil, domain.ErrMemberNotFound
	}

	if d.cache != nil {
		if err := d.cache.Set(ctx, key, *member, d.cacheTTL); err != nil {
			logger.Log.Warn("member cache set", zap.String("member_id", memberID), zap.Error(err))
		}
	}
	return member, nil
}

func (d *directoryUseCase) ListMembers(ctx context.Context, viewerID, search string) ([]*domain.Member, error) {
	members, err := d.memberRepo.ListMembers(ctx, &domain.DirectoryQuery{
		ExcludeMemberID: viewerID,
		EmailContains:   strings.TrimSpace(search),
	})
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	return members, nil
}
