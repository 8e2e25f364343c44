package ws

import "encoding/json"

// Envelope is the wire frame for both directions: an event name plus an
// event-specific payload.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Outbound is a server push. Data is marshalled lazily by the write pump.
type Outbound struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// Inbound event names.
const (
	EvGetChats      = "get_chats"
	EvGetMessages   = "get_messages"
	EvSendMessage   = "send_message"
	EvEditMessage   = "edit_message"
	EvDeleteMessage = "delete_message"
	EvAddReaction   = "add_reaction"
	EvCreateGroup   = "create_group"
	EvAddMembers    = "add_members"
	EvRemoveMember  = "remove_member"
	EvLeaveGroup    = "leave_group"
	EvDeleteGroup   = "delete_group"
	EvRenameGroup   = "rename_group"
	EvClearChat     = "clear_chat"
	EvDeleteChat    = "delete_chat"
	EvBlockUser     = "block_user"
	EvUnblockUser   = "unblock_user"
	EvCheckBlocked  = "check_blocked"
	EvStartCall     = "start_call"
	EvAnswerCall    = "answer_call"
	EvEndCall       = "end_call"
	EvSignal        = "signal"
)

// Outbound event names.
const (
	EvUserStatus       = "user_status"
	EvChatsList        = "chats_list"
	EvMessagesHistory  = "messages_history"
	EvNewMessage       = "new_message"
	EvMessageEdited    = "message_edited"
	EvMessageDeleted   = "message_deleted"
	EvReactionUpdated  = "reaction_updated"
	EvGroupCreated     = "group_created"
	EvGroupUpdated     = "group_updated"
	EvGroupDeleted     = "group_deleted"
	EvRemovedFromGroup = "removed_from_group"
	EvGroupRenamed     = "group_renamed"
	EvChatCleared      = "chat_cleared"
	EvChatDeleted      = "chat_deleted"
	EvUserBlocked      = "user_blocked"
	EvUserUnblocked    = "user_unblocked"
	EvBlockedStatus    = "blocked_status"
	EvIncomingCall     = "incoming_call"
	EvCallAnswered     = "call_answered"
	EvCallEnded        = "call_ended"
	EvError            = "error"
)

type chatRef struct {
	ChatID string `json:"chat_id"`
}

type sendMessageReq struct {
	ChatID   string `json:"chat_id"`
	Text     string `json:"text"`
	Type     string `json:"type"`
	FileURL  string `json:"file_url"`
	FileName string `json:"file_name"`
	FileSize int64  `json:"file_size"`
}

type editMessageReq struct {
	ChatID    string `json:"chat_id"`
	MessageID int64  `json:"message_id"`
	Text      string `json:"text"`
}

type deleteMessageReq struct {
	ChatID    string `json:"chat_id"`
	MessageID int64  `json:"message_id"`
}

type reactionReq struct {
	ChatID    string `json:"chat_id"`
	MessageID int64  `json:"message_id"`
	Emoji     string `json:"emoji"`
}

type createGroupReq struct {
	Name      string   `json:"name"`
	MemberIDs []string `json:"member_ids"`
	Avatar    string   `json:"avatar"`
}

type addMembersReq struct {
	GroupID   string   `json:"group_id"`
	MemberIDs []string `json:"member_ids"`
}

type removeMemberReq struct {
	GroupID  string `json:"group_id"`
	MemberID string `json:"member_id"`
}

type groupRef struct {
	GroupID string `json:"group_id"`
}

type renameGroupReq struct {
	GroupID string `json:"group_id"`
	Name    string `json:"name"`
}

type userRef struct {
	UserID string `json:"user_id"`
}

type startCallReq struct {
	ChatID   string `json:"chat_id"`
	CallType string `json:"call_type"` // audio or video
}

type signalReq struct {
	To      string          `json:"to"`
	Payload json.RawMessage `json:"payload"`
}
