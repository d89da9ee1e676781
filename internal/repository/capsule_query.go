package repository

import (
	"regexp"
	"strings"
	"time"

	"github.com/Dias221467/TimeCapsule/internal/models"
	"github.com/Dias221467/TimeCapsule/internal/visibility"
	"go.mongodb.org/mongo-driver/bson"
)

// Viewer identifies who a query runs on behalf of.
type Viewer struct {
	ID       string
	GroupIDs []string
}

// TextSearch is the free-text part of a capsule search.
//
// The enabled fields form one disjunction. Description matching only joins
// that disjunction when tag or name matching is enabled too; on its own it
// matches nothing and the keyword is ignored.
type TextSearch struct {
	Keyword       string
	InTags        bool
	InName        bool
	InDescription bool
}

// CapsuleQuery describes a capsule listing. All set criteria must hold.
// Results are always sorted by create date, newest first.
type CapsuleQuery struct {
	OwnerIDs         []string
	PublicOnly       bool
	UnrestrictedOnly bool
	VisibleTo        *Viewer
	SubscribedBy     string
	TagsAny          []string
	Status           models.CapsuleStatus
	Now              time.Time
	Text             *TextSearch
	MimeType         string
	OpenFrom         *time.Time
	OpenTo           *time.Time
	Skip             int64
	Limit            int64
}

// Filter renders the query as a MongoDB filter document.
func (q CapsuleQuery) Filter() bson.M {
	var and []bson.M

	if q.OwnerIDs != nil {
		and = append(and, bson.M{"owner": bson.M{"$in": q.OwnerIDs}})
	}
	if q.PublicOnly {
		and = append(and, bson.M{"is_private": false})
	}
	if q.UnrestrictedOnly {
		and = append(and, visibility.Unrestricted())
	}
	if q.VisibleTo != nil {
		and = append(and, visibility.Filter(q.VisibleTo.ID, q.VisibleTo.GroupIDs))
	}
	if q.SubscribedBy != "" {
		and = append(and, bson.M{"subscribed_users": q.SubscribedBy})
	}
	if len(q.TagsAny) > 0 {
		and = append(and, bson.M{"tags": bson.M{"$in": q.TagsAny}})
	}
	switch q.Status {
	case models.StatusOpened:
		and = append(and, bson.M{"open_date": bson.M{"$lte": q.Now}})
	case models.StatusClosed:
		and = append(and, bson.M{"open_date": bson.M{"$gt": q.Now}})
	}
	if or := q.Text.clauses(); len(or) > 0 {
		and = append(and, bson.M{"$or": or})
	}
	if q.MimeType != "" {
		and = append(and, bson.M{"contents.mime_type": prefixRegex(q.MimeType)})
	}
	if q.OpenFrom != nil || q.OpenTo != nil {
		rng := bson.M{}
		if q.OpenFrom != nil {
			rng["$gte"] = *q.OpenFrom
		}
		if q.OpenTo != nil {
			rng["$lte"] = *q.OpenTo
		}
		and = append(and, bson.M{"open_date": rng})
	}

	switch len(and) {
	case 0:
		return bson.M{}
	case 1:
		return and[0]
	default:
		return bson.M{"$and": and}
	}
}

func (t *TextSearch) clauses() bson.A {
	if t == nil || t.Keyword == "" {
		return nil
	}
	re := containsRegex(t.Keyword)

	var or bson.A
	if t.InTags {
		or = append(or, bson.M{"tags": re})
	}
	if t.InName {
		or = append(or, bson.M{"name": re})
	}
	if t.InDescription && len(or) > 0 {
		or = append(or, bson.M{"description": re})
	}
	return or
}

// Matches evaluates the query against a capsule in memory with the same
// semantics as Filter.
func (q CapsuleQuery) Matches(c *models.TimeCapsule) bool {
	if q.OwnerIDs != nil && !containsString(q.OwnerIDs, c.Owner) {
		return false
	}
	if q.PublicOnly && c.IsPrivate {
		return false
	}
	if q.UnrestrictedOnly && (c.IsPrivate || c.HasRestrictions()) {
		return false
	}
	if q.VisibleTo != nil && !visibility.IsVisible(c, q.VisibleTo.ID, q.VisibleTo.GroupIDs) {
		return false
	}
	if q.SubscribedBy != "" && !containsString(c.SubscribedUsers, q.SubscribedBy) {
		return false
	}
	if len(q.TagsAny) > 0 && !intersects(q.TagsAny, c.Tags) {
		return false
	}
	switch q.Status {
	case models.StatusOpened:
		if !c.IsOpened(q.Now) {
			return false
		}
	case models.StatusClosed:
		if c.IsOpened(q.Now) {
			return false
		}
	}
	if !q.Text.matches(c) {
		return false
	}
	if q.MimeType != "" {
		found := false
		for _, ct := range c.Contents {
			if strings.HasPrefix(strings.ToLower(ct.MimeType), strings.ToLower(q.MimeType)) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if q.OpenFrom != nil && c.OpenDate.Before(*q.OpenFrom) {
		return false
	}
	if q.OpenTo != nil && c.OpenDate.After(*q.OpenTo) {
		return false
	}
	return true
}

func (t *TextSearch) matches(c *models.TimeCapsule) bool {
	if t == nil || t.Keyword == "" {
		return true
	}
	if !t.InTags && !t.InName {
		return true
	}
	kw := strings.ToLower(t.Keyword)
	has := func(s string) bool { return strings.Contains(strings.ToLower(s), kw) }

	if t.InTags {
		for _, tag := range c.Tags {
			if has(tag) {
				return true
			}
		}
	}
	if t.InName && has(c.Name) {
		return true
	}
	return t.InDescription && has(c.Description)
}

func containsRegex(s string) bson.M {
	return bson.M{"$regex": regexp.QuoteMeta(s), "$options": "i"}
}

func prefixRegex(s string) bson.M {
	return bson.M{"$regex": "^" + regexp.QuoteMeta(s), "$options": "i"}
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func intersects(a, b []string) bool {
	for _, v := range a {
		if containsString(b, v) {
			return true
		}
	}
	return false
}
