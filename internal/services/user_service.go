package services

import (
	"context"
	"regexp"
	"strings"

	"github.com/Dias221467/TimeCapsule/internal/models"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
)

// MaxPreferredTags bounds how many tags a user may prefer.
const MaxPreferredTags = 20

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// UserService encapsulates the business logic for user operations.
type UserService struct {
	repo          UserStore
	notifications NotificationSink
}

// NewUserService creates a new instance of UserService.
func NewUserService(repo UserStore, notifications NotificationSink) *UserService {
	return &UserService{
		repo:          repo,
		notifications: notifications,
	}
}

// RegisterUser stores the profile of an externally authenticated user.
func (s *UserService) RegisterUser(ctx context.Context, id, name, email string) (*models.User, error) {
	logrus.Info("Registering new user")

	name = strings.TrimSpace(name)
	if id == "" || name == "" || email == "" {
		logrus.Warn("Missing required fields during registration")
		return nil, ErrValidation.New("missing required user fields")
	}
	if !emailRegex.MatchString(email) {
		logrus.WithField("email", email).Warn("Invalid email format during registration")
		return nil, ErrValidation.New("invalid email format")
	}

	user, err := s.repo.CreateUser(ctx, &models.User{ID: id, Name: name, Email: email})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrValidation.New("user already registered")
		}
		return nil, err
	}
	return user, nil
}

// GetProfile returns the public profile of id as seen by viewerID.
func (s *UserService) GetProfile(ctx context.Context, id, viewerID string) (*models.PublicUser, error) {
	user, err := s.repo.GetUserByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "user")
	}

	return &models.PublicUser{
		ID:              user.ID,
		Name:            user.Name,
		ProfileImageURL: user.ProfileImageURL,
		PreferredTags:   nonNil(user.PreferredTags),
		Followers:       len(user.FollowedByUsers),
		Following:       len(user.FollowingUsers),
		IsFollowedByMe:  viewerID != "" && containsString(user.FollowedByUsers, viewerID),
	}, nil
}

// ToggleFollow makes followerID follow targetID or stop following it and
// returns the new state. A new follow notifies the target.
func (s *UserService) ToggleFollow(ctx context.Context, followerID, targetID string) (bool, error) {
	if followerID == targetID {
		return false, ErrValidation.New("cannot follow yourself")
	}
	if _, err := s.repo.GetUserByID(ctx, targetID); err != nil {
		return false, notFound(err, "user")
	}

	following, err := s.repo.ToggleFollow(ctx, followerID, targetID)
	if err != nil {
		return false, notFound(err, "user")
	}

	if following {
		err := s.notifications.RecordEvent(ctx, models.Notification{
			Type:   models.NotificationFollow,
			ToUser: targetID,
			ByUser: followerID,
		})
		if err != nil {
			logrus.WithError(err).Warn("Failed to record follow notification")
		}
	}

	logrus.WithFields(logrus.Fields{
		"follower":  followerID,
		"target":    targetID,
		"following": following,
	}).Info("Follow toggled")
	return following, nil
}

// SavePreferredTags replaces the user's preferred tags, lowercased.
func (s *UserService) SavePreferredTags(ctx context.Context, userID string, tags []string) ([]string, error) {
	if len(tags) > MaxPreferredTags {
		return nil, ErrValidation.New("at most %d preferred tags", MaxPreferredTags)
	}

	normalized := normalizeTags(tags)
	if err := s.repo.SetPreferredTags(ctx, userID, normalized); err != nil {
		return nil, notFound(err, "user")
	}
	return normalized, nil
}
