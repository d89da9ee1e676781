package services

import (
	"context"
	"time"

	"github.com/Dias221467/TimeCapsule/internal/models"
	"github.com/Dias221467/TimeCapsule/internal/repository"
	"github.com/Dias221467/TimeCapsule/internal/visibility"
	"github.com/Dias221467/TimeCapsule/pkg/logger"
	"github.com/sirupsen/logrus"
)

const (
	// ResultsPerPage is the page size of every paginated feed.
	ResultsPerPage = 20
	// RecommendedPerPage is how many slots of a personal feed page are
	// reserved for tag recommendations.
	RecommendedPerPage = 2
)

// SearchParams are the criteria of a capsule search.
type SearchParams struct {
	Keyword       string
	InTags        bool
	InName        bool
	InDescription bool
	MimeType      string
	Status        models.CapsuleStatus
	OpenFrom      *time.Time
	OpenTo        *time.Time
	Page          int
}

// FeedService assembles capsule listings for a viewer.
type FeedService struct {
	capsules CapsuleStore
	groups   GroupStore
	users    UserStore

	Now func() time.Time
}

// NewFeedService creates a new instance of FeedService.
func NewFeedService(capsules CapsuleStore, groups GroupStore, users UserStore) *FeedService {
	return &FeedService{
		capsules: capsules,
		groups:   groups,
		users:    users,
		Now:      time.Now,
	}
}

// GetCapsule returns a single capsule if the viewer may see it.
func (s *FeedService) GetCapsule(ctx context.Context, id, viewerID string) (*models.CapsuleView, error) {
	objID, err := parseObjectID(id)
	if err != nil {
		return nil, err
	}

	capsule, err := s.capsules.GetCapsuleByID(ctx, objID)
	if err != nil {
		return nil, notFound(err, "capsule")
	}

	groupIDs, err := s.viewerGroups(ctx, viewerID, capsule)
	if err != nil {
		return nil, err
	}
	if !visibility.IsVisible(capsule, viewerID, groupIDs) {
		logger.Log.WithFields(logrus.Fields{
			"capsule_id": id,
			"viewer":     viewerID,
		}).Warn("Capsule hidden from viewer")
		return nil, ErrNotFound.New("capsule not found or not yours")
	}

	views, err := s.project(ctx, viewerID, []models.TimeCapsule{*capsule})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// MyCapsules returns every capsule the viewer owns.
func (s *FeedService) MyCapsules(ctx context.Context, viewerID string) ([]models.CapsuleView, error) {
	return s.list(ctx, viewerID, repository.CapsuleQuery{OwnerIDs: []string{viewerID}})
}

// UserCapsules returns the capsules of targetID that the viewer may see.
func (s *FeedService) UserCapsules(ctx context.Context, targetID, viewerID string) ([]models.CapsuleView, error) {
	groupIDs, err := s.groupIDs(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	return s.list(ctx, viewerID, repository.CapsuleQuery{
		OwnerIDs:  []string{targetID},
		VisibleTo: &repository.Viewer{ID: viewerID, GroupIDs: groupIDs},
	})
}

// PersonalFeed returns one page of public capsules from followed users,
// followed by up to RecommendedPerPage unrestricted capsules tagged with the
// viewer's preferred tags. The two parts are concatenated as is.
func (s *FeedService) PersonalFeed(ctx context.Context, viewerID string, page int, status models.CapsuleStatus) ([]models.CapsuleView, error) {
	page = clampPage(page)

	user, err := s.users.GetUserByID(ctx, viewerID)
	if err != nil {
		return nil, notFound(err, "user")
	}

	feed := []models.TimeCapsule{}
	if len(user.FollowingUsers) > 0 {
		groupIDs, err := s.groupIDs(ctx, viewerID)
		if err != nil {
			return nil, err
		}

		perPage := int64(ResultsPerPage - RecommendedPerPage)
		feed, err = s.capsules.FindCapsules(ctx, repository.CapsuleQuery{
			OwnerIDs:   user.FollowingUsers,
			PublicOnly: true,
			VisibleTo:  &repository.Viewer{ID: viewerID, GroupIDs: groupIDs},
			Status:     status,
			Now:        s.Now(),
			Skip:       int64(page) * perPage,
			Limit:      perPage,
		})
		if err != nil {
			return nil, err
		}
	}

	if len(user.PreferredTags) > 0 {
		recommended, err := s.capsules.FindCapsules(ctx, repository.CapsuleQuery{
			UnrestrictedOnly: true,
			TagsAny:          user.PreferredTags,
			Skip:             int64(page) * RecommendedPerPage,
			Limit:            RecommendedPerPage,
		})
		if err != nil {
			return nil, err
		}
		feed = append(feed, recommended...)
	}

	logger.Log.WithFields(logrus.Fields{
		"viewer": viewerID,
		"page":   page,
		"count":  len(feed),
	}).Info("Personal feed composed")
	return s.project(ctx, viewerID, feed)
}

// PublicFeed returns one page of unrestricted public capsules.
func (s *FeedService) PublicFeed(ctx context.Context, viewerID string, page int, status models.CapsuleStatus) ([]models.CapsuleView, error) {
	page = clampPage(page)
	return s.list(ctx, viewerID, repository.CapsuleQuery{
		UnrestrictedOnly: true,
		Status:           status,
		Now:              s.Now(),
		Skip:             int64(page) * ResultsPerPage,
		Limit:            ResultsPerPage,
	})
}

// Search returns one page of capsules the viewer may see that match p.
func (s *FeedService) Search(ctx context.Context, viewerID string, p SearchParams) ([]models.CapsuleView, error) {
	groupIDs, err := s.groupIDs(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	if p.OpenFrom != nil && p.OpenTo != nil && p.OpenTo.Before(*p.OpenFrom) {
		return nil, ErrValidation.New("date range ends before it starts")
	}

	page := clampPage(p.Page)
	return s.list(ctx, viewerID, repository.CapsuleQuery{
		VisibleTo: &repository.Viewer{ID: viewerID, GroupIDs: groupIDs},
		Text: &repository.TextSearch{
			Keyword:       p.Keyword,
			InTags:        p.InTags,
			InName:        p.InName,
			InDescription: p.InDescription,
		},
		MimeType: p.MimeType,
		Status:   p.Status,
		Now:      s.Now(),
		OpenFrom: p.OpenFrom,
		OpenTo:   p.OpenTo,
		Skip:     int64(page) * ResultsPerPage,
		Limit:    ResultsPerPage,
	})
}

// SubscribedCapsules returns every capsule the viewer subscribed to.
func (s *FeedService) SubscribedCapsules(ctx context.Context, viewerID string) ([]models.CapsuleView, error) {
	return s.list(ctx, viewerID, repository.CapsuleQuery{SubscribedBy: viewerID})
}

func (s *FeedService) list(ctx context.Context, viewerID string, q repository.CapsuleQuery) ([]models.CapsuleView, error) {
	capsules, err := s.capsules.FindCapsules(ctx, q)
	if err != nil {
		logger.Log.WithError(err).Error("Failed to fetch capsules")
		return nil, err
	}
	return s.project(ctx, viewerID, capsules)
}

// project resolves owners in one lookup and projects every capsule.
func (s *FeedService) project(ctx context.Context, viewerID string, capsules []models.TimeCapsule) ([]models.CapsuleView, error) {
	var ownerIDs []string
	seen := map[string]bool{}
	for _, c := range capsules {
		if !seen[c.Owner] {
			seen[c.Owner] = true
			ownerIDs = append(ownerIDs, c.Owner)
		}
	}

	owners := map[string]models.OwnerRef{}
	if len(ownerIDs) > 0 {
		users, err := s.users.GetUsersByIDs(ctx, ownerIDs)
		if err != nil {
			return nil, err
		}
		for i := range users {
			owners[users[i].ID] = users[i].Ref()
		}
	}

	now := s.Now()
	views := make([]models.CapsuleView, 0, len(capsules))
	for i := range capsules {
		owner, ok := owners[capsules[i].Owner]
		if !ok {
			owner = models.OwnerRef{ID: capsules[i].Owner}
		}
		views = append(views, ProjectCapsule(&capsules[i], viewerID, owner, now))
	}
	return views, nil
}

func (s *FeedService) groupIDs(ctx context.Context, viewerID string) ([]string, error) {
	if viewerID == "" {
		return nil, nil
	}
	return s.groups.GetGroupIDsByMember(ctx, viewerID)
}

// viewerGroups skips the membership lookup when it cannot change the outcome.
func (s *FeedService) viewerGroups(ctx context.Context, viewerID string, c *models.TimeCapsule) ([]string, error) {
	if viewerID == "" || c.Owner == viewerID || c.IsPrivate || len(c.AllowedGroups) == 0 {
		return nil, nil
	}
	return s.groups.GetGroupIDsByMember(ctx, viewerID)
}

func clampPage(page int) int {
	if page < 0 {
		return 0
	}
	return page
}
