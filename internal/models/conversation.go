package models

import (
	"strings"

	"github.com/google/uuid"
)

// GroupIDPrefix distinguishes group conversation ids from direct ones on the
// wire. User ids are UUIDs and can never start with it.
const GroupIDPrefix = "group_"

// directSeparator joins the two participant ids of a direct conversation.
const directSeparator = "_"

// Group is an explicit conversation record owned by its creator. Members keep
// insertion order and always contain the creator.
type Group struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Members   []string `json:"members"`
	CreatorID string   `json:"creator_id"`
	Avatar    string   `json:"avatar,omitempty"`
	CreatedAt int64    `json:"created_at"` // unix milliseconds
}

// HasMember reports whether userID is in the group's member list.
func (g *Group) HasMember(userID string) bool {
	for _, id := range g.Members {
		if id == userID {
			return true
		}
	}
	return false
}

// NewGroupID generates a fresh group conversation id.
func NewGroupID() string {
	return GroupIDPrefix + uuid.NewString()
}

// IsGroupID reports whether a conversation id names a group.
func IsGroupID(chatID string) bool {
	return strings.HasPrefix(chatID, GroupIDPrefix)
}

// DirectID computes the canonical id of the direct conversation between two
// users. The ids are sorted before joining, so either participant computes
// the same value: DirectID(a, b) == DirectID(b, a).
func DirectID(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + directSeparator + b
}

// DirectPeers splits a direct conversation id back into its two participant
// ids. Returns false for group ids or malformed input.
func DirectPeers(chatID string) (string, string, bool) {
	if IsGroupID(chatID) {
		return "", "", false
	}
	parts := strings.SplitN(chatID, directSeparator, 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// DirectCounterpart resolves the other participant of a direct conversation.
func DirectCounterpart(chatID, userID string) (string, bool) {
	a, b, ok := DirectPeers(chatID)
	if !ok {
		return "", false
	}
	switch userID {
	case a:
		return b, true
	case b:
		return a, true
	}
	return "", false
}

// Chat conversation kinds as they appear in list entries.
const (
	ChatTypePrivate = "private"
	ChatTypeGroup   = "group"
)

// ChatSummary is one entry of a user's conversation list.
type ChatSummary struct {
	ID          string   `json:"id"`
	Type        string   `json:"type"`
	Name        string   `json:"name"`
	Avatar      string   `json:"avatar,omitempty"`
	LastMessage string   `json:"last_message"`
	Timestamp   int64    `json:"timestamp"`
	Members     int      `json:"members,omitempty"`
	MemberIDs   []string `json:"member_ids,omitempty"`
	CreatorID   string   `json:"creator_id,omitempty"`
}
