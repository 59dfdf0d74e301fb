package casestudies

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"casehub-backend/internal/cache"
	"go.mongodb.org/mongo-driver/mongo"
)

var (
	ErrNotFound    = errors.New("case study not found")
	ErrSlugExists  = errors.New("slug already exists")
	ErrInvalidSlug = errors.New("invalid slug")
)

const generationKey = "case-studies:generation"

type Service struct {
	repo     Repository
	cache    cache.Cache
	cacheTTL time.Duration
	location *time.Location
	log      *slog.Logger
}

func NewService(repo Repository, store cache.Cache, cacheTTL time.Duration, location *time.Location, log *slog.Logger) *Service {
	if store == nil {
		store = cache.NewNoop()
	}
	if location == nil {
		location = time.UTC
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		repo:     repo,
		cache:    store,
		cacheTTL: cacheTTL,
		location: location,
		log:      log,
	}
}

// ListPublic serves published records, cached per filter and per generation
// so a save invalidates every cached list at once.
func (s *Service) ListPublic(ctx context.Context, filter PublicListFilter) ([]CaseRecord, error) {
	filter.Category = strings.TrimSpace(filter.Category)
	filter.Industry = strings.TrimSpace(filter.Industry)

	key := fmt.Sprintf("case-studies:public:%s:%s:%s", s.generation(ctx), filter.Category, filter.Industry)
	if items, ok, err := cache.GetJSON[[]CaseRecord](ctx, s.cache, key); err == nil && ok {
		return items, nil
	}

	items, err := s.repo.ListPublished(ctx, filter)
	if err != nil {
		return nil, err
	}
	_ = cache.SetJSON(ctx, s.cache, key, items, s.cacheTTL)
	return items, nil
}

func (s *Service) GetPublishedBySlug(ctx context.Context, slug string) (CaseRecord, error) {
	item, err := s.repo.GetPublishedBySlug(ctx, strings.TrimSpace(slug))
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return CaseRecord{}, ErrNotFound
		}
		return CaseRecord{}, err
	}
	return item, nil
}

func (s *Service) LoadAll(ctx context.Context) ([]CaseRecord, error) {
	return s.repo.ListAll(ctx)
}

// SaveAll replaces the stored collection. Nothing is written unless every
// record validates and slugs are unique.
func (s *Service) SaveAll(ctx context.Context, items []CaseRecord) error {
	seen := make(map[string]struct{}, len(items))
	var reasons []string
	for _, item := range items {
		if _, dup := seen[item.Slug]; dup {
			return fmt.Errorf("%w: %s", ErrSlugExists, item.Slug)
		}
		seen[item.Slug] = struct{}{}
		for _, reason := range Validate(item) {
			reasons = append(reasons, item.Slug+": "+reason)
		}
	}
	if len(reasons) > 0 {
		return &ValidationError{Reasons: reasons}
	}

	now := time.Now().In(s.location)
	if err := s.repo.ReplaceAll(ctx, items, now); err != nil {
		return err
	}
	// The save stands even when the bump fails; cached lists then age out
	// with their TTL.
	if err := s.cache.Set(ctx, generationKey, []byte(strconv.FormatInt(now.UnixNano(), 10)), 0); err != nil {
		s.log.Warn("case studies save: cache generation not bumped",
			slog.Int("count", len(items)),
			slog.String("error", err.Error()),
		)
	}
	return nil
}

func (s *Service) generation(ctx context.Context) string {
	raw, ok, err := s.cache.Get(ctx, generationKey)
	if err != nil || !ok {
		return "0"
	}
	return string(raw)
}
