package services

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Dias221467/TimeCapsule/internal/models"
	"github.com/Dias221467/TimeCapsule/internal/repository"
	"github.com/Dias221467/TimeCapsule/pkg/logger"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Upload is one file attached to a new capsule.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// CreateCapsuleInput is what an owner supplies to create a capsule.
type CreateCapsuleInput struct {
	Name           string          `json:"name"`
	Description    string          `json:"description"`
	Location       models.Location `json:"location"`
	BackgroundType *int            `json:"backgroundType"`
	OpenDate       time.Time       `json:"openDate"`
	IsPrivate      bool            `json:"isPrivate"`
	AllowedUsers   []string        `json:"allowedUsers"`
	AllowedGroups  []string        `json:"allowedGroups"`
	Tags           []string        `json:"tags"`
	Files          []Upload        `json:"-"`
}

// UpdateCapsuleInput holds the fields an owner may change after creation.
type UpdateCapsuleInput struct {
	Name          *string   `json:"name"`
	AllowedUsers  *[]string `json:"allowedUsers"`
	AllowedGroups *[]string `json:"allowedGroups"`
}

// CapsuleService runs the capsule lifecycle: create, edit, delete, leave.
type CapsuleService struct {
	capsules      CapsuleStore
	groups        GroupStore
	users         UserStore
	notifications *NotificationService
	blobs         BlobStore

	Now func() time.Time
}

// NewCapsuleService creates a new instance of CapsuleService.
func NewCapsuleService(capsules CapsuleStore, groups GroupStore, users UserStore, notifications *NotificationService, blobs BlobStore) *CapsuleService {
	return &CapsuleService{
		capsules:      capsules,
		groups:        groups,
		users:         users,
		notifications: notifications,
		blobs:         blobs,
		Now:           time.Now,
	}
}

// CreateCapsule validates the input, uploads the contents and stores the
// capsule. Users and group members it is shared with are notified.
func (s *CapsuleService) CreateCapsule(ctx context.Context, owner string, in CreateCapsuleInput) (*models.CapsuleView, error) {
	if err := validateCreate(in); err != nil {
		logger.Log.WithError(err).Warn("Capsule creation rejected")
		return nil, err
	}

	capsule := &models.TimeCapsule{
		ID:              primitive.NewObjectID(),
		Owner:           owner,
		Name:            in.Name,
		Description:     in.Description,
		Location:        in.Location,
		BackgroundType:  models.DefaultBackgroundType,
		CreateDate:      s.Now(),
		OpenDate:        in.OpenDate,
		IsPrivate:       in.IsPrivate,
		AllowedUsers:    nonNil(in.AllowedUsers),
		AllowedGroups:   nonNil(in.AllowedGroups),
		Tags:            normalizeTags(in.Tags),
		SubscribedUsers: []string{},
		Reactions:       []models.Reaction{},
	}
	if in.BackgroundType != nil {
		capsule.BackgroundType = *in.BackgroundType
	}

	contents, err := s.upload(ctx, capsule.ID, in.Files)
	if err != nil {
		return nil, err
	}
	capsule.Contents = contents

	if err := s.capsules.CreateCapsule(ctx, capsule); err != nil {
		s.deleteBlobs(ctx, contents)
		return nil, err
	}

	s.notifyShared(ctx, capsule, capsule.AllowedUsers, capsule.AllowedGroups)

	view := ProjectCapsule(capsule, owner, s.ownerRef(ctx, owner), s.Now())
	return &view, nil
}

// UpdateCapsule changes the name or allow-lists of an owned capsule. Users
// and groups newly added to the allow-lists are notified.
func (s *CapsuleService) UpdateCapsule(ctx context.Context, owner, id string, in UpdateCapsuleInput) (*models.CapsuleView, error) {
	objID, err := parseObjectID(id)
	if err != nil {
		return nil, err
	}
	if err := validateUpdate(in); err != nil {
		return nil, err
	}

	before, err := s.capsules.GetCapsuleByID(ctx, objID)
	if err != nil {
		return nil, notFound(err, "capsule")
	}
	if before.Owner != owner {
		return nil, ErrNotFound.New("capsule not found or not yours")
	}

	upd := repository.CapsuleUpdate{Name: in.Name}
	if in.AllowedUsers != nil {
		upd.AllowedUsers = nonNil(*in.AllowedUsers)
	}
	if in.AllowedGroups != nil {
		upd.AllowedGroups = nonNil(*in.AllowedGroups)
	}

	after, err := s.capsules.UpdateCapsule(ctx, objID, owner, upd)
	if err != nil {
		return nil, notFound(err, "capsule")
	}

	s.notifyShared(ctx, after,
		difference(after.AllowedUsers, before.AllowedUsers),
		difference(after.AllowedGroups, before.AllowedGroups))

	view := ProjectCapsule(after, owner, s.ownerRef(ctx, owner), s.Now())
	return &view, nil
}

// DeleteCapsule removes an owned capsule, then its stored contents and the
// notifications that reference it. The follow-up deletions are best effort
// and a failure there does not undo the capsule deletion.
func (s *CapsuleService) DeleteCapsule(ctx context.Context, owner, id string) error {
	objID, err := parseObjectID(id)
	if err != nil {
		return err
	}

	capsule, err := s.capsules.DeleteCapsule(ctx, objID, owner)
	if err != nil {
		return notFound(err, "capsule")
	}

	s.deleteBlobs(ctx, capsule.Contents)
	if err := s.notifications.DeleteCapsuleNotifications(ctx, objID); err != nil {
		logger.Log.WithError(err).WithField("capsule_id", id).Warn("Failed to delete capsule notifications")
	}
	return nil
}

// LeaveAllowedUsers removes userID from a capsule's allow-list together with
// the notification that announced the addition.
func (s *CapsuleService) LeaveAllowedUsers(ctx context.Context, userID, id string) error {
	objID, err := parseObjectID(id)
	if err != nil {
		return err
	}
	if err := s.capsules.RemoveAllowedUser(ctx, objID, userID); err != nil {
		return notFound(err, "capsule")
	}

	if err := s.notifications.RemoveAllowedUserNotification(ctx, userID, objID); err != nil {
		logger.Log.WithError(err).Warn("Failed to delete allow-list notification")
	}
	logger.Log.WithFields(logrus.Fields{"capsule_id": id, "user": userID}).Info("User left capsule allow-list")
	return nil
}

func (s *CapsuleService) upload(ctx context.Context, id primitive.ObjectID, files []Upload) ([]models.Content, error) {
	contents := make([]models.Content, 0, len(files))
	for i, f := range files {
		key := fmt.Sprintf("capsuleContents/%s/%d", id.Hex(), i)
		url, err := s.blobs.Upload(ctx, key, f.ContentType, f.Body)
		if err != nil {
			s.deleteBlobs(ctx, contents)
			return nil, fmt.Errorf("failed to upload %s: %w", f.Filename, err)
		}
		contents = append(contents, models.Content{URL: url, MimeType: f.ContentType})
	}
	return contents, nil
}

func (s *CapsuleService) deleteBlobs(ctx context.Context, contents []models.Content) {
	for _, c := range contents {
		if err := s.blobs.Delete(ctx, c.URL); err != nil {
			logger.Log.WithError(err).WithField("url", c.URL).Warn("Failed to delete capsule content")
		}
	}
}

// notifyShared tells users and group members they can now see the capsule.
// Notification failures are logged and otherwise ignored.
func (s *CapsuleService) notifyShared(ctx context.Context, c *models.TimeCapsule, users, groupIDs []string) {
	capsuleRef := c.ID
	notified := map[string]bool{c.Owner: true}

	for _, u := range users {
		if notified[u] {
			continue
		}
		notified[u] = true
		s.record(ctx, models.Notification{
			Type:        models.NotificationAddedToAllowedUsers,
			ToUser:      u,
			ByUser:      c.Owner,
			TimeCapsule: &capsuleRef,
		})
	}

	if len(groupIDs) == 0 {
		return
	}
	groups, err := s.groups.GetGroupsByIDs(ctx, groupIDs)
	if err != nil {
		logger.Log.WithError(err).Warn("Failed to load groups for notifications")
		return
	}
	for _, g := range groups {
		groupRef := g.ID
		for _, u := range g.Users {
			if notified[u] {
				continue
			}
			notified[u] = true
			s.record(ctx, models.Notification{
				Type:        models.NotificationSharedWithGroup,
				ToUser:      u,
				ByUser:      c.Owner,
				TimeCapsule: &capsuleRef,
				Group:       &groupRef,
			})
		}
	}
}

func (s *CapsuleService) record(ctx context.Context, n models.Notification) {
	if err := s.notifications.RecordEvent(ctx, n); err != nil {
		logger.Log.WithError(err).WithField("type", n.Type).Warn("Failed to record notification")
	}
}

func (s *CapsuleService) ownerRef(ctx context.Context, owner string) models.OwnerRef {
	user, err := s.users.GetUserByID(ctx, owner)
	if err != nil {
		return models.OwnerRef{ID: owner}
	}
	return user.Ref()
}

func validateCreate(in CreateCapsuleInput) error {
	if err := validateName(in.Name); err != nil {
		return err
	}
	if utf8.RuneCountInString(in.Description) > models.DescriptionMaxLen {
		return ErrValidation.New("description must be at most %d characters", models.DescriptionMaxLen)
	}
	if in.OpenDate.IsZero() {
		return ErrValidation.New("open date is required")
	}
	if len(in.Tags) > models.MaxTags {
		return ErrValidation.New("at most %d tags are allowed", models.MaxTags)
	}
	if err := validateAllowLists(in.AllowedUsers, in.AllowedGroups); err != nil {
		return err
	}
	if len(in.Files) > models.MaxContentFiles {
		return ErrValidation.New("at most %d files are allowed", models.MaxContentFiles)
	}
	for _, f := range in.Files {
		if f.Size > models.MaxContentFileSize {
			return ErrValidation.New("file %s exceeds %d bytes", f.Filename, models.MaxContentFileSize)
		}
	}
	return nil
}

func validateUpdate(in UpdateCapsuleInput) error {
	if in.Name != nil {
		if err := validateName(*in.Name); err != nil {
			return err
		}
	}
	var users, groups []string
	if in.AllowedUsers != nil {
		users = *in.AllowedUsers
	}
	if in.AllowedGroups != nil {
		groups = *in.AllowedGroups
	}
	return validateAllowLists(users, groups)
}

func validateName(name string) error {
	n := utf8.RuneCountInString(name)
	if n < models.CapsuleNameMinLen || n > models.CapsuleNameMaxLen {
		return ErrValidation.New("name must be %d-%d characters", models.CapsuleNameMinLen, models.CapsuleNameMaxLen)
	}
	return nil
}

func validateAllowLists(users, groups []string) error {
	if len(users) > models.MaxAllowedUsers {
		return ErrValidation.New("at most %d allowed users", models.MaxAllowedUsers)
	}
	if len(groups) > models.MaxAllowedGroups {
		return ErrValidation.New("at most %d allowed groups", models.MaxAllowedGroups)
	}
	for _, g := range groups {
		if _, err := parseObjectID(g); err != nil {
			return err
		}
	}
	return nil
}

// normalizeTags lowercases tags. Duplicates are kept.
func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		out = append(out, strings.ToLower(strings.TrimSpace(t)))
	}
	return out
}

// difference returns the entries of a missing from b.
func difference(a, b []string) []string {
	var out []string
	for _, v := range a {
		if !containsString(b, v) {
			out = append(out, v)
		}
	}
	return out
}
