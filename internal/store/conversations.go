package store

import (
	"time"

	"github.com/zvonchat/zvon/internal/models"
	"github.com/zvonchat/zvon/pkg/snowflake"
)

// Conversation is one chat's state. Direct conversations are materialized
// lazily on first append, keyed by the canonical pair id; groups are explicit
// records created up front. Group is nil for direct conversations.
type Conversation struct {
	ID       string
	Group    *models.Group
	Messages []*models.Message
}

// LastMessage returns the most recent message, or nil for an empty history.
func (c *Conversation) LastMessage() *models.Message {
	if len(c.Messages) == 0 {
		return nil
	}
	return c.Messages[len(c.Messages)-1]
}

// ConversationStore owns all conversation state: message lists, group
// membership, and the moderation-filtered history view. It is confined to the
// hub's event loop, which serializes every mutation, so it holds no lock.
//
// Authorization failures and missing targets are soft: the mutation is a
// no-op and the caller gets ok=false, never an error to surface.
type ConversationStore struct {
	ids           *snowflake.Generator
	blocks        *BlockList
	conversations map[string]*Conversation
}

func NewConversationStore(ids *snowflake.Generator, blocks *BlockList) *ConversationStore {
	return &ConversationStore{
		ids:           ids,
		blocks:        blocks,
		conversations: make(map[string]*Conversation),
	}
}

// Get returns a conversation if it exists.
func (s *ConversationStore) Get(chatID string) (*Conversation, bool) {
	conv, ok := s.conversations[chatID]
	return conv, ok
}

// Group returns a group record by id.
func (s *ConversationStore) GroupByID(groupID string) (*models.Group, bool) {
	conv, ok := s.conversations[groupID]
	if !ok || conv.Group == nil {
		return nil, false
	}
	return conv.Group, true
}

// Append creates a message in the given conversation and returns it for
// fan-out. The direct conversation record is created on first use; appending
// to an unknown group is a no-op.
func (s *ConversationStore) Append(chatID, senderID, senderName, senderAvatar, text, msgType, fileURL, fileName string, fileSize int64) (*models.Message, bool) {
	conv, ok := s.conversations[chatID]
	if !ok {
		if models.IsGroupID(chatID) {
			return nil, false
		}
		if _, _, valid := models.DirectPeers(chatID); !valid {
			return nil, false
		}
		conv = &Conversation{ID: chatID}
		s.conversations[chatID] = conv
	}

	id, err := s.ids.NextID()
	if err != nil {
		return nil, false
	}

	if msgType == "" {
		msgType = models.MsgTypeText
	}

	msg := &models.Message{
		ID:           id,
		ChatID:       chatID,
		SenderID:     senderID,
		SenderName:   senderName,
		SenderAvatar: senderAvatar,
		Text:         text,
		Type:         msgType,
		FileURL:      fileURL,
		FileName:     fileName,
		FileSize:     fileSize,
		Timestamp:    nowMillis(),
		Reactions:    []models.Reaction{},
	}
	conv.Messages = append(conv.Messages, msg)
	return msg, true
}

// History returns the conversation's messages in send order, filtered by the
// moderation rules: messages from senders the requester blocked are
// suppressed, and a direct history is empty for a requester the counterpart
// has blocked. The stored list itself is untouched.
func (s *ConversationStore) History(chatID, requesterID string) []*models.Message {
	conv, ok := s.conversations[chatID]
	if !ok {
		return []*models.Message{}
	}

	if counterpart, isDirect := models.DirectCounterpart(chatID, requesterID); isDirect {
		if s.blocks.IsBlocked(counterpart, requesterID) {
			return []*models.Message{}
		}
	}

	filtered := make([]*models.Message, 0, len(conv.Messages))
	for _, msg := range conv.Messages {
		if s.blocks.IsBlocked(requesterID, msg.SenderID) {
			continue
		}
		filtered = append(filtered, msg)
	}
	return filtered
}

// Edit mutates a message body. Only the sender may edit; anything else is a
// silent no-op.
func (s *ConversationStore) Edit(chatID string, messageID int64, requesterID, newText string) (*models.Message, bool) {
	msg, ok := s.findMessage(chatID, messageID)
	if !ok || msg.SenderID != requesterID {
		return nil, false
	}
	msg.Text = newText
	msg.Edited = true
	msg.EditedAt = nowMillis()
	return msg, true
}

// Delete removes a message from its conversation. Sender-only; deleting an
// already-deleted message is a no-op.
func (s *ConversationStore) Delete(chatID string, messageID int64, requesterID string) bool {
	conv, ok := s.conversations[chatID]
	if !ok {
		return false
	}
	for i, msg := range conv.Messages {
		if msg.ID == messageID {
			if msg.SenderID != requesterID {
				return false
			}
			conv.Messages = append(conv.Messages[:i], conv.Messages[i+1:]...)
			return true
		}
	}
	return false
}

// React upserts a reaction keyed by (message, user): a second reaction from
// the same user replaces the first. Returns the message's full reaction list.
func (s *ConversationStore) React(chatID string, messageID int64, userID, emoji string) ([]models.Reaction, bool) {
	msg, ok := s.findMessage(chatID, messageID)
	if !ok {
		return nil, false
	}
	replaced := false
	for i := range msg.Reactions {
		if msg.Reactions[i].UserID == userID {
			msg.Reactions[i].Emoji = emoji
			replaced = true
			break
		}
	}
	if !replaced {
		msg.Reactions = append(msg.Reactions, models.Reaction{UserID: userID, Emoji: emoji})
	}
	out := make([]models.Reaction, len(msg.Reactions))
	copy(out, msg.Reactions)
	return out, true
}

// CreateGroup constructs a group whose member set is memberIDs plus the
// creator, deduplicated, and initializes an empty message list.
func (s *ConversationStore) CreateGroup(name string, memberIDs []string, creatorID, avatar string) *models.Group {
	members := make([]string, 0, len(memberIDs)+1)
	seen := make(map[string]struct{}, len(memberIDs)+1)
	for _, id := range append(append([]string{}, memberIDs...), creatorID) {
		if _, dup := seen[id]; dup || id == "" {
			continue
		}
		seen[id] = struct{}{}
		members = append(members, id)
	}

	group := &models.Group{
		ID:        models.NewGroupID(),
		Name:      name,
		Members:   members,
		CreatorID: creatorID,
		Avatar:    avatar,
		CreatedAt: nowMillis(),
	}
	s.conversations[group.ID] = &Conversation{
		ID:       group.ID,
		Group:    group,
		Messages: []*models.Message{},
	}
	return group
}

// AddMembers appends new members to a group, skipping duplicates. The
// requester must already belong to the group.
func (s *ConversationStore) AddMembers(groupID, requesterID string, newMembers []string) (*models.Group, bool) {
	group, ok := s.GroupByID(groupID)
	if !ok || !group.HasMember(requesterID) {
		return nil, false
	}
	for _, id := range newMembers {
		if id != "" && !group.HasMember(id) {
			group.Members = append(group.Members, id)
		}
	}
	return group, true
}

// RemoveMember removes a member. Creator-only, and the creator cannot be
// removed this way.
func (s *ConversationStore) RemoveMember(groupID, requesterID, memberID string) (*models.Group, bool) {
	group, ok := s.GroupByID(groupID)
	if !ok || group.CreatorID != requesterID || memberID == group.CreatorID {
		return nil, false
	}
	if !group.HasMember(memberID) {
		return nil, false
	}
	group.Members = removeID(group.Members, memberID)
	return group, true
}

// LeaveGroup removes a member on their own initiative. The creator leaving
// deletes the whole group; the returned group carries the pre-delete member
// list so the deletion can still be fanned out.
func (s *ConversationStore) LeaveGroup(groupID, userID string) (group *models.Group, deleted, ok bool) {
	group, found := s.GroupByID(groupID)
	if !found || !group.HasMember(userID) {
		return nil, false, false
	}
	if group.CreatorID == userID {
		delete(s.conversations, groupID)
		return group, true, true
	}
	group.Members = removeID(group.Members, userID)
	return group, false, true
}

// RenameGroup sets a new group name. Creator-only.
func (s *ConversationStore) RenameGroup(groupID, requesterID, newName string) (*models.Group, bool) {
	group, ok := s.GroupByID(groupID)
	if !ok || group.CreatorID != requesterID {
		return nil, false
	}
	group.Name = newName
	return group, true
}

// DeleteGroup removes a group and its messages. Creator-only. The returned
// record carries the member list for the deletion fan-out.
func (s *ConversationStore) DeleteGroup(groupID, requesterID string) (*models.Group, bool) {
	group, ok := s.GroupByID(groupID)
	if !ok || group.CreatorID != requesterID {
		return nil, false
	}
	delete(s.conversations, groupID)
	return group, true
}

// ClearHistory empties a conversation's message list. Creator-only for
// groups; either participant may clear a direct conversation.
func (s *ConversationStore) ClearHistory(chatID, requesterID string) bool {
	conv, ok := s.conversations[chatID]
	if !ok {
		return false
	}
	if conv.Group != nil {
		if conv.Group.CreatorID != requesterID {
			return false
		}
	} else if _, isParticipant := models.DirectCounterpart(chatID, requesterID); !isParticipant {
		return false
	}
	conv.Messages = []*models.Message{}
	return true
}

// DeleteChat drops a direct conversation record entirely. Group removal goes
// through DeleteGroup instead.
func (s *ConversationStore) DeleteChat(chatID, requesterID string) bool {
	conv, ok := s.conversations[chatID]
	if !ok || conv.Group != nil {
		return false
	}
	if _, isParticipant := models.DirectCounterpart(chatID, requesterID); !isParticipant {
		return false
	}
	delete(s.conversations, chatID)
	return true
}

// ListFor returns the conversations visible to a user: direct conversations
// the user participates in that have at least one message, and every group
// whose member set contains the user. Ordering is the caller's concern.
func (s *ConversationStore) ListFor(userID string) []*Conversation {
	out := make([]*Conversation, 0)
	for _, conv := range s.conversations {
		if conv.Group != nil {
			if conv.Group.HasMember(userID) {
				out = append(out, conv)
			}
			continue
		}
		if _, isParticipant := models.DirectCounterpart(conv.ID, userID); isParticipant && len(conv.Messages) > 0 {
			out = append(out, conv)
		}
	}
	return out
}

func (s *ConversationStore) findMessage(chatID string, messageID int64) (*models.Message, bool) {
	conv, ok := s.conversations[chatID]
	if !ok {
		return nil, false
	}
	for _, msg := range conv.Messages {
		if msg.ID == messageID {
			return msg, true
		}
	}
	return nil, false
}

func removeID(ids []string, target string) []string {
	out := ids[:0]
	for _, id := range ids {
		if id != target {
			out = append(out, id)
		}
	}
	return out
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}
