package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Dias221467/TimeCapsule/internal/models"
	"github.com/Dias221467/TimeCapsule/internal/repository"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

var errStore = errors.New("store unavailable")

var testNow = time.Date(2030, 3, 15, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

func cloneCapsule(c *models.TimeCapsule) *models.TimeCapsule {
	out := *c
	out.Contents = append([]models.Content(nil), c.Contents...)
	out.AllowedUsers = append([]string(nil), c.AllowedUsers...)
	out.AllowedGroups = append([]string(nil), c.AllowedGroups...)
	out.Tags = append([]string(nil), c.Tags...)
	out.SubscribedUsers = append([]string(nil), c.SubscribedUsers...)
	out.Reactions = append([]models.Reaction(nil), c.Reactions...)
	return &out
}

type fakeCapsules struct {
	mu       sync.Mutex
	capsules map[primitive.ObjectID]*models.TimeCapsule
	queries  []repository.CapsuleQuery
}

func newFakeCapsules(cs ...*models.TimeCapsule) *fakeCapsules {
	f := &fakeCapsules{capsules: map[primitive.ObjectID]*models.TimeCapsule{}}
	for _, c := range cs {
		if c.ID.IsZero() {
			c.ID = primitive.NewObjectID()
		}
		f.capsules[c.ID] = cloneCapsule(c)
	}
	return f
}

func (f *fakeCapsules) get(id primitive.ObjectID) *models.TimeCapsule {
	f.mu.Lock()
	defer f.mu.Unlock()
	return cloneCapsule(f.capsules[id])
}

func (f *fakeCapsules) CreateCapsule(_ context.Context, c *models.TimeCapsule) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.capsules[c.ID] = cloneCapsule(c)
	return nil
}

func (f *fakeCapsules) GetCapsuleByID(_ context.Context, id primitive.ObjectID) (*models.TimeCapsule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.capsules[id]
	if !ok {
		return nil, fmt.Errorf("failed to find capsule: %w", mongo.ErrNoDocuments)
	}
	return cloneCapsule(c), nil
}

func (f *fakeCapsules) FindCapsules(_ context.Context, q repository.CapsuleQuery) ([]models.TimeCapsule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)

	var out []models.TimeCapsule
	for _, c := range f.capsules {
		if q.Matches(c) {
			out = append(out, *cloneCapsule(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreateDate.After(out[j].CreateDate) })

	if q.Skip > 0 {
		if int(q.Skip) >= len(out) {
			return []models.TimeCapsule{}, nil
		}
		out = out[q.Skip:]
	}
	if q.Limit > 0 && int(q.Limit) < len(out) {
		out = out[:q.Limit]
	}
	return out, nil
}

func (f *fakeCapsules) UpdateCapsule(_ context.Context, id primitive.ObjectID, owner string, upd repository.CapsuleUpdate) (*models.TimeCapsule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.capsules[id]
	if !ok || c.Owner != owner {
		return nil, mongo.ErrNoDocuments
	}
	if upd.Name != nil {
		c.Name = *upd.Name
	}
	if upd.AllowedUsers != nil {
		c.AllowedUsers = upd.AllowedUsers
	}
	if upd.AllowedGroups != nil {
		c.AllowedGroups = upd.AllowedGroups
	}
	return cloneCapsule(c), nil
}

func (f *fakeCapsules) DeleteCapsule(_ context.Context, id primitive.ObjectID, owner string) (*models.TimeCapsule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.capsules[id]
	if !ok || c.Owner != owner {
		return nil, mongo.ErrNoDocuments
	}
	delete(f.capsules, id)
	return c, nil
}

func (f *fakeCapsules) RemoveAllowedUser(_ context.Context, id primitive.ObjectID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.capsules[id]
	if !ok || !containsString(c.AllowedUsers, userID) {
		return mongo.ErrNoDocuments
	}
	c.AllowedUsers = without(c.AllowedUsers, userID)
	return nil
}

func (f *fakeCapsules) AddSubscriber(_ context.Context, id primitive.ObjectID, userID string) (*models.TimeCapsule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.capsules[id]
	if !ok || containsString(c.SubscribedUsers, userID) {
		return nil, mongo.ErrNoDocuments
	}
	c.SubscribedUsers = append(c.SubscribedUsers, userID)
	return cloneCapsule(c), nil
}

func (f *fakeCapsules) RemoveSubscriber(_ context.Context, id primitive.ObjectID, userID string) (*models.TimeCapsule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.capsules[id]
	if !ok || !containsString(c.SubscribedUsers, userID) {
		return nil, mongo.ErrNoDocuments
	}
	c.SubscribedUsers = without(c.SubscribedUsers, userID)
	return cloneCapsule(c), nil
}

func (f *fakeCapsules) SetReaction(_ context.Context, id primitive.ObjectID, userID string, kind models.ReactionKind) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.capsules[id]
	if !ok {
		return mongo.ErrNoDocuments
	}
	c.Reactions = append(withoutReaction(c.Reactions, userID), models.Reaction{UserID: userID, Reaction: kind})
	return nil
}

func (f *fakeCapsules) RemoveReaction(_ context.Context, id primitive.ObjectID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.capsules[id]
	if !ok {
		return mongo.ErrNoDocuments
	}
	c.Reactions = withoutReaction(c.Reactions, userID)
	return nil
}

func without(list []string, v string) []string {
	out := []string{}
	for _, s := range list {
		if s != v {
			out = append(out, s)
		}
	}
	return out
}

func withoutReaction(list []models.Reaction, userID string) []models.Reaction {
	out := []models.Reaction{}
	for _, r := range list {
		if r.UserID != userID {
			out = append(out, r)
		}
	}
	return out
}

type fakeGroups struct {
	groups []models.Group
	err    error
}

func (f *fakeGroups) GetGroupIDsByMember(_ context.Context, userID string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	var ids []string
	for _, g := range f.groups {
		if containsString(g.Users, userID) {
			ids = append(ids, g.ID.Hex())
		}
	}
	return ids, nil
}

func (f *fakeGroups) GetGroupsByIDs(_ context.Context, ids []string) ([]models.Group, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []models.Group
	for _, g := range f.groups {
		if containsString(ids, g.ID.Hex()) {
			out = append(out, g)
		}
	}
	return out, nil
}

type fakeUsers struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func newFakeUsers(us ...*models.User) *fakeUsers {
	f := &fakeUsers{users: map[string]*models.User{}}
	for _, u := range us {
		f.users[u.ID] = u
	}
	return f
}

func (f *fakeUsers) CreateUser(_ context.Context, u *models.User) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[u.ID]; ok {
		return nil, mongo.WriteException{WriteErrors: mongo.WriteErrors{{Code: 11000, Message: "duplicate key"}}}
	}
	f.users[u.ID] = u
	return u, nil
}

func (f *fakeUsers) GetUserByID(_ context.Context, id string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, fmt.Errorf("failed to find user by id: %w", mongo.ErrNoDocuments)
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) GetUsersByIDs(_ context.Context, ids []string) ([]models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.User
	for _, id := range ids {
		if u, ok := f.users[id]; ok {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (f *fakeUsers) ToggleFollow(_ context.Context, followerID, targetID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	follower, ok := f.users[followerID]
	if !ok {
		return false, mongo.ErrNoDocuments
	}
	target := f.users[targetID]
	if containsString(follower.FollowingUsers, targetID) {
		follower.FollowingUsers = without(follower.FollowingUsers, targetID)
		target.FollowedByUsers = without(target.FollowedByUsers, followerID)
		return false, nil
	}
	follower.FollowingUsers = append(follower.FollowingUsers, targetID)
	target.FollowedByUsers = append(target.FollowedByUsers, followerID)
	return true, nil
}

func (f *fakeUsers) SetPreferredTags(_ context.Context, id string, tags []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return mongo.ErrNoDocuments
	}
	u.PreferredTags = tags
	return nil
}

type fakeNotifications struct {
	mu    sync.Mutex
	items []models.Notification
	err   error
}

func (f *fakeNotifications) CreateNotification(_ context.Context, n *models.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	n.ID = primitive.NewObjectID()
	f.items = append(f.items, *n)
	return nil
}

func (f *fakeNotifications) CreateNotificationIfAbsent(_ context.Context, n *models.Notification, key bson.M) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	for _, existing := range f.items {
		if matchesKey(existing, key) {
			return false, nil
		}
	}
	n.ID = primitive.NewObjectID()
	f.items = append(f.items, *n)
	return true, nil
}

func matchesKey(n models.Notification, key bson.M) bool {
	for k, v := range key {
		switch k {
		case "to_user":
			if n.ToUser != v {
				return false
			}
		case "type":
			if n.Type != v {
				return false
			}
		case "by_user":
			if n.ByUser != v {
				return false
			}
		case "time_capsule":
			if n.TimeCapsule == nil || *n.TimeCapsule != v {
				return false
			}
		case "group":
			if n.Group == nil || *n.Group != v {
				return false
			}
		default:
			panic("unexpected key " + k)
		}
	}
	return true
}

func (f *fakeNotifications) GetUserNotifications(_ context.Context, userID string, skip, limit int64) ([]models.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Notification
	for _, n := range f.items {
		if n.ToUser == userID {
			out = append(out, n)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time.After(out[j].Time) })
	if int(skip) >= len(out) {
		return []models.Notification{}, nil
	}
	out = out[skip:]
	if int(limit) < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeNotifications) DeleteNotifications(_ context.Context, toUser string, t models.NotificationType, capsuleID primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	var keep []models.Notification
	for _, n := range f.items {
		if n.ToUser == toUser && n.Type == t && n.TimeCapsule != nil && *n.TimeCapsule == capsuleID {
			continue
		}
		keep = append(keep, n)
	}
	f.items = keep
	return nil
}

func (f *fakeNotifications) DeleteCapsuleNotifications(_ context.Context, capsuleID primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	var keep []models.Notification
	for _, n := range f.items {
		if n.TimeCapsule != nil && *n.TimeCapsule == capsuleID {
			continue
		}
		keep = append(keep, n)
	}
	f.items = keep
	return nil
}

func (f *fakeNotifications) ofType(t models.NotificationType) []models.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Notification
	for _, n := range f.items {
		if n.Type == t {
			out = append(out, n)
		}
	}
	return out
}

type fakeBlobs struct {
	mu        sync.Mutex
	objects   map[string]string
	deleted   []string
	failAfter int
}

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{objects: map[string]string{}, failAfter: -1}
}

func (f *fakeBlobs) Upload(_ context.Context, key, _ string, body io.Reader) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAfter >= 0 && len(f.objects) >= f.failAfter {
		return "", errStore
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	url := "https://blobs.test/" + key
	f.objects[url] = string(data)
	return url, nil
}

func (f *fakeBlobs) Delete(_ context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !strings.HasPrefix(url, "https://blobs.test/") {
		return errStore
	}
	delete(f.objects, url)
	f.deleted = append(f.deleted, url)
	return nil
}

type fakeTags struct {
	tags    []string
	popular []repository.TagCount
	queries []string
}

func (f *fakeTags) AllTags(context.Context) ([]string, error) {
	return append([]string(nil), f.tags...), nil
}

func (f *fakeTags) PopularTags(_ context.Context, query string, limit int64) ([]repository.TagCount, error) {
	f.queries = append(f.queries, query)
	var out []repository.TagCount
	for _, tc := range f.popular {
		if strings.Contains(tc.Tag, query) {
			out = append(out, tc)
		}
	}
	if int(limit) < len(out) {
		out = out[:limit]
	}
	return out, nil
}
