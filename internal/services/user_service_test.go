package services

import (
	"context"
	"testing"

	"github.com/Dias221467/TimeCapsule/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newUserFixture() (*UserService, *fakeUsers, *fakeNotifications) {
	users := newFakeUsers(
		&models.User{ID: "alice", Name: "Alice"},
		&models.User{ID: "bob", Name: "Bob"},
	)
	notifications := &fakeNotifications{}
	notifier := NewNotificationService(notifications)
	notifier.Now = fixedClock
	return NewUserService(users, notifier), users, notifications
}

func TestRegisterUser(t *testing.T) {
	svc, _, _ := newUserFixture()
	ctx := context.Background()

	user, err := svc.RegisterUser(ctx, "carol", " Carol ", "carol@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Carol", user.Name)

	_, err = svc.RegisterUser(ctx, "carol", "Carol", "carol@example.com")
	assert.True(t, ErrValidation.Has(err))

	_, err = svc.RegisterUser(ctx, "dave", "Dave", "not-an-email")
	assert.True(t, ErrValidation.Has(err))

	_, err = svc.RegisterUser(ctx, "", "Dave", "dave@example.com")
	assert.True(t, ErrValidation.Has(err))
}

func TestToggleFollow(t *testing.T) {
	svc, users, notifications := newUserFixture()
	ctx := context.Background()

	following, err := svc.ToggleFollow(ctx, "bob", "alice")
	require.NoError(t, err)
	assert.True(t, following)

	profile, err := svc.GetProfile(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.Equal(t, 1, profile.Followers)
	assert.True(t, profile.IsFollowedByMe)

	following, err = svc.ToggleFollow(ctx, "bob", "alice")
	require.NoError(t, err)
	assert.False(t, following)
	assert.Empty(t, users.users["bob"].FollowingUsers)

	// Following again does not repeat the notification.
	_, err = svc.ToggleFollow(ctx, "bob", "alice")
	require.NoError(t, err)
	sent := notifications.ofType(models.NotificationFollow)
	require.Len(t, sent, 1)
	assert.Equal(t, "alice", sent[0].ToUser)
	assert.Equal(t, "bob", sent[0].ByUser)
}

func TestToggleFollowErrors(t *testing.T) {
	svc, _, _ := newUserFixture()
	ctx := context.Background()

	_, err := svc.ToggleFollow(ctx, "bob", "bob")
	assert.True(t, ErrValidation.Has(err))

	_, err = svc.ToggleFollow(ctx, "bob", "nobody")
	assert.True(t, ErrNotFound.Has(err))
}

func TestSavePreferredTags(t *testing.T) {
	svc, users, _ := newUserFixture()
	ctx := context.Background()

	tags, err := svc.SavePreferredTags(ctx, "bob", []string{"Sea", " Mountains "})
	require.NoError(t, err)
	assert.Equal(t, []string{"sea", "mountains"}, tags)
	assert.Equal(t, tags, users.users["bob"].PreferredTags)

	_, err = svc.SavePreferredTags(ctx, "nobody", []string{"sea"})
	assert.True(t, ErrNotFound.Has(err))

	_, err = svc.SavePreferredTags(ctx, "bob", make([]string, MaxPreferredTags+1))
	assert.True(t, ErrValidation.Has(err))
}

func TestGetProfileMissingUser(t *testing.T) {
	svc, _, _ := newUserFixture()
	_, err := svc.GetProfile(context.Background(), "nobody", "")
	assert.True(t, ErrNotFound.Has(err))
}
