package services

import (
	"context"
	"sort"
	"strings"

	"github.com/Dias221467/TimeCapsule/internal/repository"
)

// TagSuggestionLimit caps popular tag and suggestion lists.
const TagSuggestionLimit = 20

// TagService answers tag lookups over unrestricted public capsules.
type TagService struct {
	repo TagStore
}

func NewTagService(repo TagStore) *TagService {
	return &TagService{repo: repo}
}

// AllTags returns every tag in use, sorted.
func (s *TagService) AllTags(ctx context.Context) ([]string, error) {
	tags, err := s.repo.AllTags(ctx)
	if err != nil {
		return nil, err
	}
	sort.Strings(tags)
	return tags, nil
}

// PopularTags returns the most used tags.
func (s *TagService) PopularTags(ctx context.Context) ([]repository.TagCount, error) {
	return s.repo.PopularTags(ctx, "", TagSuggestionLimit)
}

// Suggestions returns the most used tags containing query.
func (s *TagService) Suggestions(ctx context.Context, query string) ([]repository.TagCount, error) {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return s.PopularTags(ctx)
	}
	return s.repo.PopularTags(ctx, query, TagSuggestionLimit)
}
