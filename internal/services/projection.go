package services

import (
	"time"

	"github.com/Dias221467/TimeCapsule/internal/models"
)

// ProjectCapsule builds the view of c shown to viewerID at now. It is a pure
// function: contents are withheld until the open date, and the raw
// subscriber and reaction lists never leave the capsule.
func ProjectCapsule(c *models.TimeCapsule, viewerID string, owner models.OwnerRef, now time.Time) models.CapsuleView {
	view := models.CapsuleView{
		ID:             c.ID,
		Owner:          owner,
		Name:           c.Name,
		Description:    c.Description,
		Location:       c.Location,
		BackgroundType: c.BackgroundType,
		CreateDate:     c.CreateDate,
		OpenDate:       c.OpenDate,
		IsPrivate:      c.IsPrivate,
		AllowedUsers:   nonNil(c.AllowedUsers),
		AllowedGroups:  nonNil(c.AllowedGroups),
		Tags:           nonNil(c.Tags),
		IsOpened:       c.IsOpened(now),
		ReactionsLean:  tally(c.Reactions),
	}

	if viewerID != "" {
		for _, u := range c.SubscribedUsers {
			if u == viewerID {
				view.IsSubscribed = true
				break
			}
		}
		for _, r := range c.Reactions {
			if r.UserID == viewerID {
				view.MyReaction = r.Reaction
				break
			}
		}
	}

	if view.IsOpened {
		contents := make([]models.Content, len(c.Contents))
		copy(contents, c.Contents)
		view.Contents = &contents
	}
	return view
}

func tally(reactions []models.Reaction) []models.ReactionCount {
	counts := make([]models.ReactionCount, len(models.ReactionKinds))
	for i, k := range models.ReactionKinds {
		counts[i].Reaction = k
	}
	for _, r := range reactions {
		for i := range counts {
			if counts[i].Reaction == r.Reaction {
				counts[i].Count++
				break
			}
		}
	}
	return counts
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
