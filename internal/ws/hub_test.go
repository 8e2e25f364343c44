package ws

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/zvonchat/zvon/internal/models"
	"github.com/zvonchat/zvon/internal/storage"
	"github.com/zvonchat/zvon/internal/store"
	"github.com/zvonchat/zvon/pkg/snowflake"
)

// Tests drive the dispatcher directly instead of going through Run, which
// keeps event handling synchronous and the assertions deterministic.

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	gen, err := snowflake.NewGenerator(snowflake.Config{})
	require.NoError(t, err)

	blocks := store.NewBlockList()
	convs := store.NewConversationStore(gen, blocks)
	users := store.NewUserStore()
	presence := NewPresence(storage.NewOnlineTracker(nil, time.Minute, zap.NewNop()))

	return NewHub(zap.NewNop(), users, convs, blocks, presence)
}

// connect creates a session already attached to presence, bypassing the
// register channel.
func connect(h *Hub, userID, username string) *Client {
	c := &Client{
		hub:      h,
		send:     make(chan *Outbound, sendBufferSize),
		userID:   userID,
		username: username,
	}
	h.presence.Attach(c)
	return c
}

func raw(t *testing.T, v any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

// recv pops the next queued event; dispatch is synchronous so anything
// delivered is already buffered.
func recv(t *testing.T, c *Client) *Outbound {
	t.Helper()
	select {
	case ev := <-c.send:
		return ev
	default:
		t.Fatal("expected a queued event")
		return nil
	}
}

func recvEvent(t *testing.T, c *Client, event string) map[string]any {
	t.Helper()
	ev := recv(t, c)
	require.Equal(t, event, ev.Event)
	data, ok := ev.Data.(map[string]any)
	require.True(t, ok, "payload of %s should be a map", event)
	return data
}

func assertSilent(t *testing.T, c *Client) {
	t.Helper()
	select {
	case ev := <-c.send:
		t.Fatalf("unexpected event %q", ev.Event)
	default:
	}
}

func TestHub_SendMessage_Direct(t *testing.T) {
	h := newTestHub(t)
	alice := connect(h, "alice", "alice")
	bob := connect(h, "bob", "bob")
	chatID := models.DirectID("alice", "bob")

	h.dispatch(alice, Envelope{Event: EvSendMessage, Data: raw(t, map[string]any{
		"chat_id": chatID,
		"text":    "hi",
	})})

	for _, c := range []*Client{alice, bob} {
		ev := recv(t, c)
		assert.Equal(t, EvNewMessage, ev.Event)
		msg, ok := ev.Data.(*models.Message)
		require.True(t, ok)
		assert.Equal(t, "hi", msg.Text)
		assert.Equal(t, "alice", msg.SenderID)
		assert.Equal(t, chatID, msg.ChatID)
	}
}

func TestHub_SendMessage_IdentityFromSession(t *testing.T) {
	h := newTestHub(t)
	mallory := connect(h, "mallory", "mallory")
	chatID := models.DirectID("mallory", "bob")

	// A spoofed sender_id in the payload is ignored: attribution comes from
	// the session, never the frame.
	h.dispatch(mallory, Envelope{Event: EvSendMessage, Data: raw(t, map[string]any{
		"chat_id":   chatID,
		"sender_id": "alice",
		"text":      "forged",
	})})

	ev := recv(t, mallory)
	msg := ev.Data.(*models.Message)
	assert.Equal(t, "mallory", msg.SenderID)
}

func TestHub_SendMessage_BlockedRecipientSkipped(t *testing.T) {
	h := newTestHub(t)
	alice := connect(h, "alice", "alice")
	bob := connect(h, "bob", "bob")
	chatID := models.DirectID("alice", "bob")

	h.blocks.Block("bob", "alice")

	h.dispatch(alice, Envelope{Event: EvSendMessage, Data: raw(t, map[string]any{
		"chat_id": chatID,
		"text":    "into the void",
	})})

	// The sender still sees their own message; the blocker gets nothing.
	ev := recv(t, alice)
	assert.Equal(t, EvNewMessage, ev.Event)
	assertSilent(t, bob)
}

func TestHub_SendMessage_UnknownGroupDropped(t *testing.T) {
	h := newTestHub(t)
	alice := connect(h, "alice", "alice")

	h.dispatch(alice, Envelope{Event: EvSendMessage, Data: raw(t, map[string]any{
		"chat_id": "group_nope",
		"text":    "hello?",
	})})

	assertSilent(t, alice)
}

func TestHub_EditMessage_FanOut(t *testing.T) {
	h := newTestHub(t)
	alice := connect(h, "alice", "alice")
	bob := connect(h, "bob", "bob")
	chatID := models.DirectID("alice", "bob")

	msg, ok := h.convs.Append(chatID, "alice", "alice", "", "typo", "", "", "", 0)
	require.True(t, ok)

	h.dispatch(alice, Envelope{Event: EvEditMessage, Data: raw(t, map[string]any{
		"chat_id":    chatID,
		"message_id": msg.ID,
		"text":       "fixed",
	})})

	for _, c := range []*Client{alice, bob} {
		data := recvEvent(t, c, EvMessageEdited)
		assert.Equal(t, "fixed", data["text"])
		assert.Equal(t, msg.ID, data["message_id"])
	}
}

func TestHub_EditMessage_NonSenderIgnored(t *testing.T) {
	h := newTestHub(t)
	alice := connect(h, "alice", "alice")
	bob := connect(h, "bob", "bob")
	chatID := models.DirectID("alice", "bob")

	msg, _ := h.convs.Append(chatID, "alice", "alice", "", "mine", "", "", "", 0)

	h.dispatch(bob, Envelope{Event: EvEditMessage, Data: raw(t, map[string]any{
		"chat_id":    chatID,
		"message_id": msg.ID,
		"text":       "hijacked",
	})})

	assertSilent(t, alice)
	assertSilent(t, bob)
}

func TestHub_DeleteMessage_FanOut(t *testing.T) {
	h := newTestHub(t)
	alice := connect(h, "alice", "alice")
	bob := connect(h, "bob", "bob")
	chatID := models.DirectID("alice", "bob")

	msg, _ := h.convs.Append(chatID, "alice", "alice", "", "oops", "", "", "", 0)

	h.dispatch(alice, Envelope{Event: EvDeleteMessage, Data: raw(t, map[string]any{
		"chat_id":    chatID,
		"message_id": msg.ID,
	})})

	for _, c := range []*Client{alice, bob} {
		data := recvEvent(t, c, EvMessageDeleted)
		assert.Equal(t, msg.ID, data["message_id"])
	}
	assert.Empty(t, h.convs.History(chatID, "alice"))
}

func TestHub_Reaction_FanOut(t *testing.T) {
	h := newTestHub(t)
	alice := connect(h, "alice", "alice")
	bob := connect(h, "bob", "bob")
	chatID := models.DirectID("alice", "bob")

	msg, _ := h.convs.Append(chatID, "alice", "alice", "", "react to me", "", "", "", 0)

	h.dispatch(bob, Envelope{Event: EvAddReaction, Data: raw(t, map[string]any{
		"chat_id":    chatID,
		"message_id": msg.ID,
		"emoji":      "👍",
	})})

	for _, c := range []*Client{alice, bob} {
		data := recvEvent(t, c, EvReactionUpdated)
		reactions := data["reactions"].([]models.Reaction)
		require.Len(t, reactions, 1)
		assert.Equal(t, "bob", reactions[0].UserID)
		assert.Equal(t, "👍", reactions[0].Emoji)
	}
}

func TestHub_GetMessages_AppliesBlockFilter(t *testing.T) {
	h := newTestHub(t)
	alice := connect(h, "alice", "alice")
	chatID := models.DirectID("alice", "bob")

	h.convs.Append(chatID, "bob", "bob", "", "before block", "", "", "", 0)
	h.blocks.Block("alice", "bob")

	h.dispatch(alice, Envelope{Event: EvGetMessages, Data: raw(t, map[string]any{
		"chat_id": chatID,
	})})

	data := recvEvent(t, alice, EvMessagesHistory)
	assert.Equal(t, chatID, data["chat_id"])
	messages := data["messages"].([]*models.Message)
	assert.Empty(t, messages)
}

func TestHub_GroupLifecycle(t *testing.T) {
	h := newTestHub(t)
	alice := connect(h, "alice", "alice")
	bob := connect(h, "bob", "bob")
	carol := connect(h, "carol", "carol")

	h.dispatch(alice, Envelope{Event: EvCreateGroup, Data: raw(t, map[string]any{
		"name":       "team",
		"member_ids": []string{"bob"},
	})})

	var groupID string
	for _, c := range []*Client{alice, bob} {
		ev := recv(t, c)
		require.Equal(t, EvGroupCreated, ev.Event)
		group := ev.Data.(*models.Group)
		assert.Equal(t, "team", group.Name)
		assert.ElementsMatch(t, []string{"alice", "bob"}, group.Members)
		groupID = group.ID
	}
	assertSilent(t, carol)

	h.dispatch(alice, Envelope{Event: EvAddMembers, Data: raw(t, map[string]any{
		"group_id":   groupID,
		"member_ids": []string{"carol"},
	})})
	for _, c := range []*Client{alice, bob, carol} {
		data := recvEvent(t, c, EvGroupUpdated)
		assert.ElementsMatch(t, []any{"alice", "bob", "carol"}, data["members"])
	}

	h.dispatch(alice, Envelope{Event: EvRenameGroup, Data: raw(t, map[string]any{
		"group_id": groupID,
		"name":     "crew",
	})})
	for _, c := range []*Client{alice, bob, carol} {
		data := recvEvent(t, c, EvGroupRenamed)
		assert.Equal(t, "crew", data["name"])
	}

	h.dispatch(alice, Envelope{Event: EvRemoveMember, Data: raw(t, map[string]any{
		"group_id":  groupID,
		"member_id": "carol",
	})})
	data := recvEvent(t, carol, EvRemovedFromGroup)
	assert.Equal(t, groupID, data["group_id"])
	assertSilent(t, carol)
	for _, c := range []*Client{alice, bob} {
		data := recvEvent(t, c, EvGroupUpdated)
		assert.ElementsMatch(t, []any{"alice", "bob"}, data["members"])
	}
}

func TestHub_RemoveMember_NonCreatorIgnored(t *testing.T) {
	h := newTestHub(t)
	alice := connect(h, "alice", "alice")
	bob := connect(h, "bob", "bob")

	group := h.convs.CreateGroup("team", []string{"bob"}, "alice", "")

	h.dispatch(bob, Envelope{Event: EvRemoveMember, Data: raw(t, map[string]any{
		"group_id":  group.ID,
		"member_id": "alice",
	})})

	assertSilent(t, alice)
	assertSilent(t, bob)
}

func TestHub_LeaveGroup_MemberThenCreator(t *testing.T) {
	h := newTestHub(t)
	alice := connect(h, "alice", "alice")
	bob := connect(h, "bob", "bob")

	group := h.convs.CreateGroup("team", []string{"bob"}, "alice", "")

	h.dispatch(bob, Envelope{Event: EvLeaveGroup, Data: raw(t, map[string]any{
		"group_id": group.ID,
	})})
	data := recvEvent(t, alice, EvGroupUpdated)
	assert.ElementsMatch(t, []any{"alice"}, data["members"])
	assertSilent(t, bob)

	// The creator leaving tears the group down for everyone remaining.
	h.dispatch(alice, Envelope{Event: EvLeaveGroup, Data: raw(t, map[string]any{
		"group_id": group.ID,
	})})
	data = recvEvent(t, alice, EvGroupDeleted)
	assert.Equal(t, group.ID, data["group_id"])
	_, ok := h.convs.GroupByID(group.ID)
	assert.False(t, ok)
}

func TestHub_DeleteGroup(t *testing.T) {
	h := newTestHub(t)
	alice := connect(h, "alice", "alice")
	bob := connect(h, "bob", "bob")

	group := h.convs.CreateGroup("team", []string{"bob"}, "alice", "")

	h.dispatch(alice, Envelope{Event: EvDeleteGroup, Data: raw(t, map[string]any{
		"group_id": group.ID,
	})})

	for _, c := range []*Client{alice, bob} {
		data := recvEvent(t, c, EvGroupDeleted)
		assert.Equal(t, group.ID, data["group_id"])
	}
}

func TestHub_ClearChat_NotifiesBothSides(t *testing.T) {
	h := newTestHub(t)
	alice := connect(h, "alice", "alice")
	bob := connect(h, "bob", "bob")
	chatID := models.DirectID("alice", "bob")

	h.convs.Append(chatID, "alice", "alice", "", "gone soon", "", "", "", 0)

	h.dispatch(alice, Envelope{Event: EvClearChat, Data: raw(t, map[string]any{
		"chat_id": chatID,
	})})

	for _, c := range []*Client{alice, bob} {
		data := recvEvent(t, c, EvChatCleared)
		assert.Equal(t, chatID, data["chat_id"])
	}
	assert.Empty(t, h.convs.History(chatID, "alice"))
}

func TestHub_DeleteChat_RequesterOnly(t *testing.T) {
	h := newTestHub(t)
	alice := connect(h, "alice", "alice")
	bob := connect(h, "bob", "bob")
	chatID := models.DirectID("alice", "bob")

	h.convs.Append(chatID, "alice", "alice", "", "bye", "", "", "", 0)

	h.dispatch(alice, Envelope{Event: EvDeleteChat, Data: raw(t, map[string]any{
		"chat_id": chatID,
	})})

	data := recvEvent(t, alice, EvChatDeleted)
	assert.Equal(t, chatID, data["chat_id"])
	assertSilent(t, bob)
}

func TestHub_BlockUnblockCheck(t *testing.T) {
	h := newTestHub(t)
	alice := connect(h, "alice", "alice")

	h.dispatch(alice, Envelope{Event: EvBlockUser, Data: raw(t, map[string]any{
		"user_id": "bob",
	})})
	data := recvEvent(t, alice, EvUserBlocked)
	assert.Equal(t, "bob", data["user_id"])
	assert.True(t, h.blocks.IsBlocked("alice", "bob"))
	// Directed edge: bob is free to message alice-wards state-wise.
	assert.False(t, h.blocks.IsBlocked("bob", "alice"))

	h.dispatch(alice, Envelope{Event: EvCheckBlocked, Data: raw(t, map[string]any{
		"user_id": "bob",
	})})
	data = recvEvent(t, alice, EvBlockedStatus)
	assert.Equal(t, true, data["is_blocked"])

	h.dispatch(alice, Envelope{Event: EvUnblockUser, Data: raw(t, map[string]any{
		"user_id": "bob",
	})})
	recvEvent(t, alice, EvUserUnblocked)
	assert.False(t, h.blocks.IsBlocked("alice", "bob"))
}

func TestHub_GetChats_SortedAndSkipsDeletedCounterpart(t *testing.T) {
	h := newTestHub(t)

	bob, err := h.users.Create("bob", "hash")
	require.NoError(t, err)
	ghost, err := h.users.Create("ghost", "hash")
	require.NoError(t, err)
	me, err := h.users.Create("me", "hash")
	require.NoError(t, err)

	client := connect(h, me.ID, "me")

	older := models.DirectID(me.ID, bob.ID)
	h.convs.Append(older, bob.ID, "bob", "", "first", "", "", "", 0)

	gone := models.DirectID(me.ID, ghost.ID)
	h.convs.Append(gone, ghost.ID, "ghost", "", "from beyond", "", "", "", 0)
	h.users.Delete(ghost.ID)

	group := h.convs.CreateGroup("team", []string{bob.ID}, me.ID, "")
	h.convs.Append(group.ID, bob.ID, "bob", "", "latest", "", "", "", 0)

	h.dispatch(client, Envelope{Event: EvGetChats, Data: nil})

	data := recvEvent(t, client, EvChatsList)
	chats := data["chats"].([]models.ChatSummary)
	require.Len(t, chats, 2, "conversation with a deleted account should not be listed")
	assert.Equal(t, group.ID, chats[0].ID, "most recent activity first")
	assert.Equal(t, "latest", chats[0].LastMessage)
	assert.Equal(t, older, chats[1].ID)
	assert.Equal(t, "bob", chats[1].Name)
}

func TestHub_CallFlow(t *testing.T) {
	h := newTestHub(t)
	alice := connect(h, "alice", "alice")
	bob := connect(h, "bob", "bob")
	chatID := models.DirectID("alice", "bob")

	h.dispatch(alice, Envelope{Event: EvStartCall, Data: raw(t, map[string]any{
		"chat_id":   chatID,
		"call_type": "video",
	})})

	// Ring goes to everyone but the caller.
	data := recvEvent(t, bob, EvIncomingCall)
	assert.Equal(t, "alice", data["caller_id"])
	assert.Equal(t, "video", data["call_type"])
	assertSilent(t, alice)

	h.dispatch(bob, Envelope{Event: EvAnswerCall, Data: raw(t, map[string]any{
		"chat_id": chatID,
	})})
	for _, c := range []*Client{alice, bob} {
		data := recvEvent(t, c, EvCallAnswered)
		assert.Equal(t, "bob", data["answerer_id"])
	}

	h.dispatch(alice, Envelope{Event: EvEndCall, Data: raw(t, map[string]any{
		"chat_id": chatID,
	})})
	for _, c := range []*Client{alice, bob} {
		recvEvent(t, c, EvCallEnded)
	}

	// The record is gone; a late answer is a no-op.
	h.dispatch(bob, Envelope{Event: EvAnswerCall, Data: raw(t, map[string]any{
		"chat_id": chatID,
	})})
	assertSilent(t, alice)
	assertSilent(t, bob)
}

func TestHub_DisconnectEndsCall(t *testing.T) {
	h := newTestHub(t)
	alice := connect(h, "alice", "alice")
	bob := connect(h, "bob", "bob")
	chatID := models.DirectID("alice", "bob")

	h.dispatch(alice, Envelope{Event: EvStartCall, Data: raw(t, map[string]any{
		"chat_id":   chatID,
		"call_type": "audio",
	})})
	recvEvent(t, bob, EvIncomingCall)

	h.presence.Detach(alice)
	h.endCallsInvolving("alice")

	recvEvent(t, bob, EvCallEnded)
	assert.Empty(t, h.calls)
}

func TestHub_SignalRelay(t *testing.T) {
	h := newTestHub(t)
	alice := connect(h, "alice", "alice")
	bob := connect(h, "bob", "bob")

	payload := json.RawMessage(`{"sdp":"offer"}`)
	h.dispatch(alice, Envelope{Event: EvSignal, Data: raw(t, map[string]any{
		"to":      "bob",
		"payload": payload,
	})})

	data := recvEvent(t, bob, EvSignal)
	assert.Equal(t, "alice", data["from"])
	assert.JSONEq(t, `{"sdp":"offer"}`, string(data["payload"].(json.RawMessage)))
	assertSilent(t, alice)
}

func TestHub_SignalToOfflineUserDropped(t *testing.T) {
	h := newTestHub(t)
	alice := connect(h, "alice", "alice")

	h.dispatch(alice, Envelope{Event: EvSignal, Data: raw(t, map[string]any{
		"to":      "nobody",
		"payload": json.RawMessage(`{}`),
	})})

	assertSilent(t, alice)
}

func TestHub_UnknownEvent(t *testing.T) {
	h := newTestHub(t)
	alice := connect(h, "alice", "alice")

	h.dispatch(alice, Envelope{Event: "no_such_event"})

	ev := recv(t, alice)
	assert.Equal(t, EvError, ev.Event)
}

func TestHub_MalformedPayload(t *testing.T) {
	h := newTestHub(t)
	alice := connect(h, "alice", "alice")

	h.dispatch(alice, Envelope{Event: EvSendMessage, Data: json.RawMessage(`"not an object"`)})

	ev := recv(t, alice)
	assert.Equal(t, EvError, ev.Event)
}

func TestHub_RunLoop_RegisterAndUnregisterBroadcastStatus(t *testing.T) {
	h := newTestHub(t)
	go h.Run()

	watcher := connect(h, "watcher", "watcher")

	alice := &Client{
		hub:      h,
		send:     make(chan *Outbound, sendBufferSize),
		userID:   "alice",
		username: "alice",
	}
	h.register <- alice

	ev := recvWait(t, watcher)
	require.Equal(t, EvUserStatus, ev.Event)
	data := ev.Data.(map[string]any)
	assert.Equal(t, "alice", data["user_id"])
	assert.Equal(t, true, data["online"])

	// alice also sees her own status broadcast
	recvWait(t, alice)

	h.unregister <- alice

	ev = recvWait(t, watcher)
	require.Equal(t, EvUserStatus, ev.Event)
	data = ev.Data.(map[string]any)
	assert.Equal(t, "alice", data["user_id"])
	assert.Equal(t, false, data["online"])

	// The hub closed the session channel on unregister.
	for range alice.send {
	}
}

func recvWait(t *testing.T, c *Client) *Outbound {
	t.Helper()
	select {
	case ev := <-c.send:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}
