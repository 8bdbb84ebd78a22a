package domain

import "time"

// RelationKind identifies a toggle relation between a user and a target.
type RelationKind string

const (
	RelationLike     RelationKind = "like"
	RelationBookmark RelationKind = "bookmark"
	RelationFollow   RelationKind = "follow"
)

// RelationKinds lists every kind, in a stable order.
var RelationKinds = []RelationKind{RelationLike, RelationBookmark, RelationFollow}

// Valid reports whether k is a known kind.
func (k RelationKind) Valid() bool {
	switch k {
	case RelationLike, RelationBookmark, RelationFollow:
		return true
	default:
		return false
	}
}

// TargetsPost reports whether the relation points at a post rather than a user.
func (k RelationKind) TargetsPost() bool {
	return k == RelationLike || k == RelationBookmark
}

// Relation records that UserID has Kind-ed TargetID. Existence is the fact;
// there is at most one row per (Kind, UserID, TargetID).
type Relation struct {
	Kind      RelationKind `json:"kind"`
	UserID    string       `json:"user_id"`
	TargetID  string       `json:"target_id"`
	CreatedAt time.Time    `json:"created_at"`
}
