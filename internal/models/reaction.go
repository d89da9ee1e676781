package models

// ReactionKind is one of the fixed reaction values.
type ReactionKind string

const (
	ReactionLike  ReactionKind = "like"
	ReactionLove  ReactionKind = "love"
	ReactionHaha  ReactionKind = "haha"
	ReactionWow   ReactionKind = "wow"
	ReactionSad   ReactionKind = "sad"
	ReactionAngry ReactionKind = "angry"

	// ReactionRemove clears the caller's reaction without setting a new one.
	ReactionRemove ReactionKind = "remove"
)

// ReactionKinds lists every reaction in tally order.
var ReactionKinds = []ReactionKind{
	ReactionLike,
	ReactionLove,
	ReactionHaha,
	ReactionWow,
	ReactionSad,
	ReactionAngry,
}

// ParseReaction accepts any reaction kind or the remove sentinel.
func ParseReaction(s string) (ReactionKind, bool) {
	k := ReactionKind(s)
	if k == ReactionRemove {
		return k, true
	}
	for _, known := range ReactionKinds {
		if k == known {
			return k, true
		}
	}
	return "", false
}
