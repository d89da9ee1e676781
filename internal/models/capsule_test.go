package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseReaction(t *testing.T) {
	for _, k := range ReactionKinds {
		got, ok := ParseReaction(string(k))
		assert.True(t, ok)
		assert.Equal(t, k, got)
	}

	got, ok := ParseReaction("remove")
	assert.True(t, ok)
	assert.Equal(t, ReactionRemove, got)

	for _, bad := range []string{"", "LIKE", "dislike", " like"} {
		_, ok := ParseReaction(bad)
		assert.False(t, ok, bad)
	}
}

func TestReactionKindsOrder(t *testing.T) {
	assert.Equal(t, []ReactionKind{"like", "love", "haha", "wow", "sad", "angry"}, ReactionKinds)
}

func TestIsOpenedBoundary(t *testing.T) {
	now := time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)
	c := &TimeCapsule{OpenDate: now}
	assert.True(t, c.IsOpened(now))
	assert.True(t, c.IsOpened(now.Add(time.Nanosecond)))
	assert.False(t, c.IsOpened(now.Add(-time.Nanosecond)))
}

func TestHasRestrictions(t *testing.T) {
	assert.False(t, (&TimeCapsule{}).HasRestrictions())
	assert.True(t, (&TimeCapsule{AllowedUsers: []string{"b"}}).HasRestrictions())
	assert.True(t, (&TimeCapsule{AllowedGroups: []string{"g"}}).HasRestrictions())
}

func TestParseStatus(t *testing.T) {
	assert.Equal(t, StatusOpened, ParseStatus("opened"))
	assert.Equal(t, StatusOpened, ParseStatus("open"))
	assert.Equal(t, StatusClosed, ParseStatus("closed"))
	assert.Equal(t, StatusAny, ParseStatus(""))
	assert.Equal(t, StatusAny, ParseStatus("whatever"))
}
