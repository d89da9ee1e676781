package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/Dias221467/TimeCapsule/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type capsuleFixture struct {
	capsules      *fakeCapsules
	notifications *fakeNotifications
	blobs         *fakeBlobs
	svc           *CapsuleService
	group         models.Group
}

func newCapsuleFixture(cs ...*models.TimeCapsule) *capsuleFixture {
	f := &capsuleFixture{
		capsules:      newFakeCapsules(cs...),
		notifications: &fakeNotifications{},
		blobs:         newFakeBlobs(),
		group:         models.Group{ID: primitive.NewObjectID(), Name: "family", Owner: "alice", Users: []string{"alice", "bob", "carol"}},
	}
	notifier := NewNotificationService(f.notifications)
	notifier.Now = fixedClock
	users := newFakeUsers(&models.User{ID: "alice", Name: "Alice"})
	f.svc = NewCapsuleService(f.capsules, &fakeGroups{groups: []models.Group{f.group}}, users, notifier, f.blobs)
	f.svc.Now = fixedClock
	return f
}

func validInput() CreateCapsuleInput {
	return CreateCapsuleInput{
		Name:     "Graduation",
		OpenDate: testNow.Add(365 * 24 * time.Hour),
		Tags:     []string{"School", "FRIENDS", "school"},
	}
}

func TestCreateCapsule(t *testing.T) {
	f := newCapsuleFixture()
	in := validInput()
	in.Files = []Upload{
		{Filename: "a.png", ContentType: "image/png", Size: 3, Body: strings.NewReader("png")},
		{Filename: "b.mp4", ContentType: "video/mp4", Size: 3, Body: strings.NewReader("mp4")},
	}

	view, err := f.svc.CreateCapsule(context.Background(), "alice", in)
	require.NoError(t, err)

	assert.Equal(t, models.OwnerRef{ID: "alice", Name: "Alice"}, view.Owner)
	assert.False(t, view.IsOpened)
	assert.Nil(t, view.Contents)
	assert.Equal(t, []string{"school", "friends", "school"}, view.Tags)

	stored := f.capsules.get(view.ID)
	assert.Equal(t, testNow, stored.CreateDate)
	assert.Equal(t, models.DefaultBackgroundType, stored.BackgroundType)
	require.Len(t, stored.Contents, 2)
	prefix := "https://blobs.test/capsuleContents/" + view.ID.Hex() + "/"
	assert.Equal(t, models.Content{URL: prefix + "0", MimeType: "image/png"}, stored.Contents[0])
	assert.Equal(t, models.Content{URL: prefix + "1", MimeType: "video/mp4"}, stored.Contents[1])
	assert.Equal(t, "mp4", f.blobs.objects[prefix+"1"])
}

func TestCreateCapsuleValidation(t *testing.T) {
	cases := map[string]func(*CreateCapsuleInput){
		"short name":       func(in *CreateCapsuleInput) { in.Name = "ab" },
		"long name":        func(in *CreateCapsuleInput) { in.Name = strings.Repeat("x", 33) },
		"long description": func(in *CreateCapsuleInput) { in.Description = strings.Repeat("x", 1001) },
		"no open date":     func(in *CreateCapsuleInput) { in.OpenDate = time.Time{} },
		"too many tags":    func(in *CreateCapsuleInput) { in.Tags = []string{"a", "b", "c", "d", "e", "f"} },
		"too many users":   func(in *CreateCapsuleInput) { in.AllowedUsers = make([]string, 101) },
		"too many groups": func(in *CreateCapsuleInput) {
			for i := 0; i < 11; i++ {
				in.AllowedGroups = append(in.AllowedGroups, primitive.NewObjectID().Hex())
			}
		},
		"too many files": func(in *CreateCapsuleInput) { in.Files = make([]Upload, 11) },
		"file too big": func(in *CreateCapsuleInput) {
			in.Files = []Upload{{Filename: "big", Size: models.MaxContentFileSize + 1, Body: strings.NewReader("")}}
		},
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			f := newCapsuleFixture()
			in := validInput()
			mutate(&in)

			_, err := f.svc.CreateCapsule(context.Background(), "alice", in)
			assert.True(t, ErrValidation.Has(err), err)
			assert.Empty(t, f.capsules.capsules)
			assert.Empty(t, f.blobs.objects)
		})
	}
}

func TestCreateCapsuleNameCountsCharacters(t *testing.T) {
	f := newCapsuleFixture()
	in := validInput()
	in.Name = strings.Repeat("ж", 32)

	_, err := f.svc.CreateCapsule(context.Background(), "alice", in)
	assert.NoError(t, err)
}

func TestCreateCapsuleRejectsMalformedGroupID(t *testing.T) {
	f := newCapsuleFixture()
	in := validInput()
	in.AllowedGroups = []string{"family"}

	_, err := f.svc.CreateCapsule(context.Background(), "alice", in)
	assert.True(t, ErrInvalidID.Has(err))
}

func TestCreateCapsuleUploadFailureCleansUp(t *testing.T) {
	f := newCapsuleFixture()
	f.blobs.failAfter = 1
	in := validInput()
	in.Files = []Upload{
		{Filename: "a", ContentType: "text/plain", Body: strings.NewReader("a")},
		{Filename: "b", ContentType: "text/plain", Body: strings.NewReader("b")},
	}

	_, err := f.svc.CreateCapsule(context.Background(), "alice", in)
	require.ErrorIs(t, err, errStore)
	assert.Empty(t, f.capsules.capsules)
	assert.Empty(t, f.blobs.objects)
	assert.Len(t, f.blobs.deleted, 1)
}

func TestCreateCapsuleNotifiesSharedUsers(t *testing.T) {
	f := newCapsuleFixture()
	in := validInput()
	in.AllowedUsers = []string{"bob", "dave", "alice"}
	in.AllowedGroups = []string{f.group.ID.Hex()}

	view, err := f.svc.CreateCapsule(context.Background(), "alice", in)
	require.NoError(t, err)

	added := f.notifications.ofType(models.NotificationAddedToAllowedUsers)
	require.Len(t, added, 2)
	assert.Equal(t, "bob", added[0].ToUser)
	assert.Equal(t, "dave", added[1].ToUser)
	assert.Equal(t, view.ID, *added[0].TimeCapsule)

	shared := f.notifications.ofType(models.NotificationSharedWithGroup)
	require.Len(t, shared, 1)
	assert.Equal(t, "carol", shared[0].ToUser)
	assert.Equal(t, f.group.ID, *shared[0].Group)
}

func TestUpdateCapsuleNotifiesOnlyNewUsers(t *testing.T) {
	c := capsuleAt("alice", 1)
	c.AllowedUsers = []string{"bob"}
	f := newCapsuleFixture(c)
	ctx := context.Background()

	name := "renamed"
	users := []string{"bob", "erin"}
	view, err := f.svc.UpdateCapsule(ctx, "alice", c.ID.Hex(), UpdateCapsuleInput{Name: &name, AllowedUsers: &users})
	require.NoError(t, err)
	assert.Equal(t, "renamed", view.Name)
	assert.Equal(t, []string{"bob", "erin"}, view.AllowedUsers)

	added := f.notifications.ofType(models.NotificationAddedToAllowedUsers)
	require.Len(t, added, 1)
	assert.Equal(t, "erin", added[0].ToUser)

	_, err = f.svc.UpdateCapsule(ctx, "bob", c.ID.Hex(), UpdateCapsuleInput{Name: &name})
	assert.True(t, ErrNotFound.Has(err))

	short := "no"
	_, err = f.svc.UpdateCapsule(ctx, "alice", c.ID.Hex(), UpdateCapsuleInput{Name: &short})
	assert.True(t, ErrValidation.Has(err))
}

func TestDeleteCapsuleCascades(t *testing.T) {
	c := capsuleAt("alice", 1)
	c.Contents = []models.Content{{URL: "https://blobs.test/capsuleContents/x/0"}, {URL: "elsewhere"}}
	other := capsuleAt("alice", 2)
	f := newCapsuleFixture(c, other)
	ctx := context.Background()

	id, otherID := c.ID, other.ID
	f.notifications.items = []models.Notification{
		{Type: models.NotificationSubscribed, ToUser: "alice", TimeCapsule: &id},
		{Type: models.NotificationSubscribed, ToUser: "alice", TimeCapsule: &otherID},
		{Type: models.NotificationFollow, ToUser: "alice", ByUser: "bob"},
	}

	err := f.svc.DeleteCapsule(ctx, "bob", c.ID.Hex())
	assert.True(t, ErrNotFound.Has(err))

	require.NoError(t, f.svc.DeleteCapsule(ctx, "alice", c.ID.Hex()))
	_, err = f.capsules.GetCapsuleByID(ctx, c.ID)
	assert.Error(t, err)

	// A failing blob deletion does not fail the call.
	assert.Equal(t, []string{"https://blobs.test/capsuleContents/x/0"}, f.blobs.deleted)
	assert.Len(t, f.notifications.items, 2)
}

func TestLeaveAllowedUsers(t *testing.T) {
	c := capsuleAt("alice", 1)
	c.AllowedUsers = []string{"bob", "carol"}
	f := newCapsuleFixture(c)
	ctx := context.Background()

	id := c.ID
	f.notifications.items = []models.Notification{
		{Type: models.NotificationAddedToAllowedUsers, ToUser: "bob", TimeCapsule: &id},
		{Type: models.NotificationAddedToAllowedUsers, ToUser: "carol", TimeCapsule: &id},
	}

	require.NoError(t, f.svc.LeaveAllowedUsers(ctx, "bob", c.ID.Hex()))
	assert.Equal(t, []string{"carol"}, f.capsules.get(c.ID).AllowedUsers)
	require.Len(t, f.notifications.items, 1)
	assert.Equal(t, "carol", f.notifications.items[0].ToUser)

	err := f.svc.LeaveAllowedUsers(ctx, "bob", c.ID.Hex())
	assert.True(t, ErrNotFound.Has(err))
}
