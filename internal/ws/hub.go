package ws

import (
	"encoding/json"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/zvonchat/zvon/internal/models"
	"github.com/zvonchat/zvon/internal/store"
)

// activeCall is the ephemeral record of an in-flight call. The relay stays
// content-blind; this record only exists to route answer/end notifications
// and to end a call when a party's session drops.
type activeCall struct {
	CallerID  string
	CallType  string
	StartedAt time.Time
	Answered  bool
}

type inboundEvent struct {
	client *Client
	env    Envelope
}

// Hub owns the routing core. A single Run goroutine consumes registrations,
// disconnects, and inbound events, so every mutation of conversation state,
// block lists, presence, and call records is handled to completion before the
// next event starts. Deliveries are non-blocking pushes to per-client
// buffers; absent or slow recipients are dropped silently, never queued.
type Hub struct {
	logger *zap.Logger

	users  *store.UserStore
	convs  *store.ConversationStore
	blocks *store.BlockList

	presence *Presence
	calls    map[string]*activeCall

	register   chan *Client
	unregister chan *Client
	inbound    chan inboundEvent
}

func NewHub(logger *zap.Logger, users *store.UserStore, convs *store.ConversationStore, blocks *store.BlockList, presence *Presence) *Hub {
	return &Hub{
		logger:     logger,
		users:      users,
		convs:      convs,
		blocks:     blocks,
		presence:   presence,
		calls:      make(map[string]*activeCall),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbound:    make(chan inboundEvent),
	}
}

// Run is the serialized event stream. It must be the only goroutine touching
// the conversation store, block list, presence map, and call records.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			if h.presence.Attach(client) {
				h.presence.Broadcast(&Outbound{Event: EvUserStatus, Data: map[string]any{
					"user_id": client.userID,
					"online":  true,
				}})
			}
			h.logger.Info("session attached", zap.String("user_id", client.userID))

		case client := <-h.unregister:
			wentOffline := h.presence.Detach(client)
			close(client.send)
			if wentOffline {
				h.endCallsInvolving(client.userID)
				h.presence.Broadcast(&Outbound{Event: EvUserStatus, Data: map[string]any{
					"user_id": client.userID,
					"online":  false,
				}})
			}
			h.logger.Info("session detached", zap.String("user_id", client.userID))

		case in := <-h.inbound:
			h.dispatch(in.client, in.env)
		}
	}
}

func (h *Hub) dispatch(c *Client, env Envelope) {
	switch env.Event {
	case EvGetChats:
		h.handleGetChats(c)
	case EvGetMessages:
		h.handleGetMessages(c, env.Data)
	case EvSendMessage:
		h.handleSendMessage(c, env.Data)
	case EvEditMessage:
		h.handleEditMessage(c, env.Data)
	case EvDeleteMessage:
		h.handleDeleteMessage(c, env.Data)
	case EvAddReaction:
		h.handleAddReaction(c, env.Data)
	case EvCreateGroup:
		h.handleCreateGroup(c, env.Data)
	case EvAddMembers:
		h.handleAddMembers(c, env.Data)
	case EvRemoveMember:
		h.handleRemoveMember(c, env.Data)
	case EvLeaveGroup:
		h.handleLeaveGroup(c, env.Data)
	case EvDeleteGroup:
		h.handleDeleteGroup(c, env.Data)
	case EvRenameGroup:
		h.handleRenameGroup(c, env.Data)
	case EvClearChat:
		h.handleClearChat(c, env.Data)
	case EvDeleteChat:
		h.handleDeleteChat(c, env.Data)
	case EvBlockUser:
		h.handleBlockUser(c, env.Data)
	case EvUnblockUser:
		h.handleUnblockUser(c, env.Data)
	case EvCheckBlocked:
		h.handleCheckBlocked(c, env.Data)
	case EvStartCall:
		h.handleStartCall(c, env.Data)
	case EvAnswerCall:
		h.handleAnswerCall(c, env.Data)
	case EvEndCall:
		h.handleEndCall(c, env.Data)
	case EvSignal:
		h.handleSignal(c, env.Data)
	default:
		h.sendError(c, "unknown event: "+env.Event)
	}
}

// decode unmarshals an event payload, surfacing a validation error to the
// originating session on failure.
func (h *Hub) decode(c *Client, data json.RawMessage, v any) bool {
	if err := json.Unmarshal(data, v); err != nil {
		h.sendError(c, "malformed payload")
		return false
	}
	return true
}

func (h *Hub) sendError(c *Client, msg string) {
	c.trySend(&Outbound{Event: EvError, Data: map[string]any{"message": msg}})
}

// deliverTo pushes an event to a user's live session. No session means a
// silent drop: the event is never queued or retried.
func (h *Hub) deliverTo(userID string, ev *Outbound) {
	if client, ok := h.presence.Resolve(userID); ok {
		client.trySend(ev)
	}
}

func (h *Hub) deliverToAll(userIDs []string, ev *Outbound) {
	for _, id := range userIDs {
		h.deliverTo(id, ev)
	}
}

// recipients resolves a conversation's recipient set. For groups it is the
// member list; for direct conversations it is the two fixed participants,
// minus any participant who has blocked the other.
func (h *Hub) recipients(chatID string) []string {
	if models.IsGroupID(chatID) {
		group, ok := h.convs.GroupByID(chatID)
		if !ok {
			return nil
		}
		return append([]string{}, group.Members...)
	}

	a, b, ok := models.DirectPeers(chatID)
	if !ok {
		return nil
	}
	out := make([]string, 0, 2)
	if !h.blocks.IsBlocked(a, b) {
		out = append(out, a)
	}
	if !h.blocks.IsBlocked(b, a) {
		out = append(out, b)
	}
	return out
}

// participants resolves a conversation's full participant set, ignoring
// blocks. Used for call control, where both parties need teardown signals.
func (h *Hub) participants(chatID string) []string {
	if models.IsGroupID(chatID) {
		group, ok := h.convs.GroupByID(chatID)
		if !ok {
			return nil
		}
		return append([]string{}, group.Members...)
	}
	a, b, ok := models.DirectPeers(chatID)
	if !ok {
		return nil
	}
	return []string{a, b}
}

func (h *Hub) handleGetChats(c *Client) {
	chats := make([]models.ChatSummary, 0)
	for _, conv := range h.convs.ListFor(c.userID) {
		if conv.Group != nil {
			summary := models.ChatSummary{
				ID:        conv.ID,
				Type:      models.ChatTypeGroup,
				Name:      conv.Group.Name,
				Avatar:    conv.Group.Avatar,
				Members:   len(conv.Group.Members),
				MemberIDs: append([]string{}, conv.Group.Members...),
				CreatorID: conv.Group.CreatorID,
				Timestamp: conv.Group.CreatedAt,
			}
			if last := conv.LastMessage(); last != nil {
				summary.LastMessage = last.Text
				summary.Timestamp = last.Timestamp
			}
			chats = append(chats, summary)
			continue
		}

		counterpartID, _ := models.DirectCounterpart(conv.ID, c.userID)
		counterpart, err := h.users.GetByID(counterpartID)
		if err != nil {
			// Counterpart account removed; the conversation is not listable.
			continue
		}
		last := conv.LastMessage()
		chats = append(chats, models.ChatSummary{
			ID:          conv.ID,
			Type:        models.ChatTypePrivate,
			Name:        counterpart.Username,
			Avatar:      counterpart.Avatar,
			LastMessage: last.Text,
			Timestamp:   last.Timestamp,
		})
	}

	sort.Slice(chats, func(i, j int) bool { return chats[i].Timestamp > chats[j].Timestamp })

	c.trySend(&Outbound{Event: EvChatsList, Data: map[string]any{"chats": chats}})
}

func (h *Hub) handleGetMessages(c *Client, data json.RawMessage) {
	var req chatRef
	if !h.decode(c, data, &req) {
		return
	}
	if req.ChatID == "" {
		h.sendError(c, "chat_id is required")
		return
	}

	messages := h.convs.History(req.ChatID, c.userID)
	c.trySend(&Outbound{Event: EvMessagesHistory, Data: map[string]any{
		"chat_id":  req.ChatID,
		"messages": messages,
	}})
}

func (h *Hub) handleSendMessage(c *Client, data json.RawMessage) {
	var req sendMessageReq
	if !h.decode(c, data, &req) {
		return
	}
	if req.ChatID == "" {
		h.sendError(c, "chat_id is required")
		return
	}

	senderName := c.username
	senderAvatar := ""
	if sender, err := h.users.GetByID(c.userID); err == nil {
		senderName = sender.Username
		senderAvatar = sender.Avatar
	}

	msg, ok := h.convs.Append(req.ChatID, c.userID, senderName, senderAvatar,
		req.Text, req.Type, req.FileURL, req.FileName, req.FileSize)
	if !ok {
		return
	}

	// Fan out the full message so recipients render without a follow-up fetch.
	h.deliverToAll(h.recipients(req.ChatID), &Outbound{Event: EvNewMessage, Data: msg})
}

func (h *Hub) handleEditMessage(c *Client, data json.RawMessage) {
	var req editMessageReq
	if !h.decode(c, data, &req) {
		return
	}

	msg, ok := h.convs.Edit(req.ChatID, req.MessageID, c.userID, req.Text)
	if !ok {
		return
	}

	h.deliverToAll(h.recipients(req.ChatID), &Outbound{Event: EvMessageEdited, Data: map[string]any{
		"chat_id":    req.ChatID,
		"message_id": msg.ID,
		"text":       msg.Text,
		"edited_at":  msg.EditedAt,
	}})
}

func (h *Hub) handleDeleteMessage(c *Client, data json.RawMessage) {
	var req deleteMessageReq
	if !h.decode(c, data, &req) {
		return
	}

	if !h.convs.Delete(req.ChatID, req.MessageID, c.userID) {
		return
	}

	h.deliverToAll(h.recipients(req.ChatID), &Outbound{Event: EvMessageDeleted, Data: map[string]any{
		"chat_id":    req.ChatID,
		"message_id": req.MessageID,
	}})
}

func (h *Hub) handleAddReaction(c *Client, data json.RawMessage) {
	var req reactionReq
	if !h.decode(c, data, &req) {
		return
	}

	reactions, ok := h.convs.React(req.ChatID, req.MessageID, c.userID, req.Emoji)
	if !ok {
		return
	}

	h.deliverToAll(h.recipients(req.ChatID), &Outbound{Event: EvReactionUpdated, Data: map[string]any{
		"chat_id":    req.ChatID,
		"message_id": req.MessageID,
		"reactions":  reactions,
	}})
}

func (h *Hub) handleCreateGroup(c *Client, data json.RawMessage) {
	var req createGroupReq
	if !h.decode(c, data, &req) {
		return
	}
	if req.Name == "" {
		h.sendError(c, "name is required")
		return
	}

	group := h.convs.CreateGroup(req.Name, req.MemberIDs, c.userID, req.Avatar)
	h.deliverToAll(group.Members, &Outbound{Event: EvGroupCreated, Data: group})
}

func (h *Hub) handleAddMembers(c *Client, data json.RawMessage) {
	var req addMembersReq
	if !h.decode(c, data, &req) {
		return
	}

	group, ok := h.convs.AddMembers(req.GroupID, c.userID, req.MemberIDs)
	if !ok {
		return
	}

	// Refresh-style signal: recipients re-fetch their conversation list.
	h.deliverToAll(group.Members, &Outbound{Event: EvGroupUpdated, Data: map[string]any{
		"group_id": group.ID,
		"members":  group.Members,
	}})
}

func (h *Hub) handleRemoveMember(c *Client, data json.RawMessage) {
	var req removeMemberReq
	if !h.decode(c, data, &req) {
		return
	}

	group, ok := h.convs.RemoveMember(req.GroupID, c.userID, req.MemberID)
	if !ok {
		return
	}

	// The removed member still gets the removal notice, but no later
	// group events.
	h.deliverTo(req.MemberID, &Outbound{Event: EvRemovedFromGroup, Data: map[string]any{
		"group_id": group.ID,
	}})
	h.deliverToAll(group.Members, &Outbound{Event: EvGroupUpdated, Data: map[string]any{
		"group_id": group.ID,
		"members":  group.Members,
	}})
}

func (h *Hub) handleLeaveGroup(c *Client, data json.RawMessage) {
	var req groupRef
	if !h.decode(c, data, &req) {
		return
	}

	group, deleted, ok := h.convs.LeaveGroup(req.GroupID, c.userID)
	if !ok {
		return
	}

	if deleted {
		// Creator left: the group is gone for everyone.
		h.deliverToAll(group.Members, &Outbound{Event: EvGroupDeleted, Data: map[string]any{
			"group_id": group.ID,
		}})
		return
	}
	h.deliverToAll(group.Members, &Outbound{Event: EvGroupUpdated, Data: map[string]any{
		"group_id": group.ID,
		"members":  group.Members,
	}})
}

func (h *Hub) handleDeleteGroup(c *Client, data json.RawMessage) {
	var req groupRef
	if !h.decode(c, data, &req) {
		return
	}

	group, ok := h.convs.DeleteGroup(req.GroupID, c.userID)
	if !ok {
		return
	}

	h.deliverToAll(group.Members, &Outbound{Event: EvGroupDeleted, Data: map[string]any{
		"group_id": group.ID,
	}})
}

func (h *Hub) handleRenameGroup(c *Client, data json.RawMessage) {
	var req renameGroupReq
	if !h.decode(c, data, &req) {
		return
	}

	group, ok := h.convs.RenameGroup(req.GroupID, c.userID, req.Name)
	if !ok {
		return
	}

	h.deliverToAll(group.Members, &Outbound{Event: EvGroupRenamed, Data: map[string]any{
		"group_id": group.ID,
		"name":     group.Name,
	}})
}

func (h *Hub) handleClearChat(c *Client, data json.RawMessage) {
	var req chatRef
	if !h.decode(c, data, &req) {
		return
	}

	if !h.convs.ClearHistory(req.ChatID, c.userID) {
		return
	}

	h.deliverToAll(h.participants(req.ChatID), &Outbound{Event: EvChatCleared, Data: map[string]any{
		"chat_id": req.ChatID,
	}})
}

func (h *Hub) handleDeleteChat(c *Client, data json.RawMessage) {
	var req chatRef
	if !h.decode(c, data, &req) {
		return
	}

	if !h.convs.DeleteChat(req.ChatID, c.userID) {
		return
	}

	// Requester-local: the counterpart keeps their view until they delete it.
	c.trySend(&Outbound{Event: EvChatDeleted, Data: map[string]any{
		"chat_id": req.ChatID,
	}})
}

func (h *Hub) handleBlockUser(c *Client, data json.RawMessage) {
	var req userRef
	if !h.decode(c, data, &req) {
		return
	}
	if req.UserID == "" {
		h.sendError(c, "user_id is required")
		return
	}

	h.blocks.Block(c.userID, req.UserID)
	c.trySend(&Outbound{Event: EvUserBlocked, Data: map[string]any{"user_id": req.UserID}})
}

func (h *Hub) handleUnblockUser(c *Client, data json.RawMessage) {
	var req userRef
	if !h.decode(c, data, &req) {
		return
	}

	h.blocks.Unblock(c.userID, req.UserID)
	c.trySend(&Outbound{Event: EvUserUnblocked, Data: map[string]any{"user_id": req.UserID}})
}

func (h *Hub) handleCheckBlocked(c *Client, data json.RawMessage) {
	var req userRef
	if !h.decode(c, data, &req) {
		return
	}

	c.trySend(&Outbound{Event: EvBlockedStatus, Data: map[string]any{
		"user_id":    req.UserID,
		"is_blocked": h.blocks.IsBlocked(c.userID, req.UserID),
	}})
}

func (h *Hub) handleStartCall(c *Client, data json.RawMessage) {
	var req startCallReq
	if !h.decode(c, data, &req) {
		return
	}
	if req.ChatID == "" {
		h.sendError(c, "chat_id is required")
		return
	}

	h.calls[req.ChatID] = &activeCall{
		CallerID:  c.userID,
		CallType:  req.CallType,
		StartedAt: time.Now(),
	}

	ev := &Outbound{Event: EvIncomingCall, Data: map[string]any{
		"chat_id":   req.ChatID,
		"caller_id": c.userID,
		"call_type": req.CallType,
	}}
	for _, id := range h.recipients(req.ChatID) {
		if id != c.userID {
			h.deliverTo(id, ev)
		}
	}
}

func (h *Hub) handleAnswerCall(c *Client, data json.RawMessage) {
	var req chatRef
	if !h.decode(c, data, &req) {
		return
	}

	call, ok := h.calls[req.ChatID]
	if !ok {
		return
	}
	call.Answered = true

	// Answer notifications reach the whole participant set, caller included,
	// for both direct and group conversations.
	h.deliverToAll(h.participants(req.ChatID), &Outbound{Event: EvCallAnswered, Data: map[string]any{
		"chat_id":     req.ChatID,
		"answerer_id": c.userID,
	}})
}

func (h *Hub) handleEndCall(c *Client, data json.RawMessage) {
	var req chatRef
	if !h.decode(c, data, &req) {
		return
	}

	delete(h.calls, req.ChatID)
	h.deliverToAll(h.participants(req.ChatID), &Outbound{Event: EvCallEnded, Data: map[string]any{
		"chat_id": req.ChatID,
	}})
}

func (h *Hub) handleSignal(c *Client, data json.RawMessage) {
	var req signalReq
	if !h.decode(c, data, &req) {
		return
	}
	if req.To == "" {
		h.sendError(c, "to is required")
		return
	}

	// Opaque relay: the payload is forwarded verbatim, never inspected.
	h.deliverTo(req.To, &Outbound{Event: EvSignal, Data: map[string]any{
		"from":    c.userID,
		"payload": req.Payload,
	}})
}

// endCallsInvolving tears down calls a disconnecting user was party to, so
// the other side is not left with a stuck call screen. A call ends when its
// caller disconnects, or when either participant of a direct call does.
func (h *Hub) endCallsInvolving(userID string) {
	for chatID, call := range h.calls {
		involved := call.CallerID == userID
		if !involved {
			if counterpart, isDirect := models.DirectCounterpart(chatID, userID); isDirect && counterpart != "" {
				involved = true
			}
		}
		if !involved {
			continue
		}
		delete(h.calls, chatID)
		h.deliverToAll(h.participants(chatID), &Outbound{Event: EvCallEnded, Data: map[string]any{
			"chat_id": chatID,
		}})
	}
}
