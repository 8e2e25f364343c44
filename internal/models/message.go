package models

// Message body variants. Each variant carries only the fields relevant to its
// kind: text uses Text, media kinds use FileURL/FileName/FileSize with Text as
// an optional caption.
const (
	MsgTypeText  = "text"
	MsgTypeImage = "image"
	MsgTypeVideo = "video"
	MsgTypeVoice = "voice"
	MsgTypeFile  = "file"
)

// Reaction is one emoji from one user. A user has at most one reaction per
// message; a second reaction replaces the first.
type Reaction struct {
	UserID string `json:"user_id"`
	Emoji  string `json:"emoji"`
}

// Message belongs to exactly one conversation. IDs are snowflakes, so they
// sort by creation time even when timestamps collide. Sender name and avatar
// are denormalized at send time so recipients can render without a lookup;
// they may dangle if the sender's account is later removed.
type Message struct {
	ID           int64      `json:"id"`
	ChatID       string     `json:"chat_id"`
	SenderID     string     `json:"sender_id"`
	SenderName   string     `json:"sender_name"`
	SenderAvatar string     `json:"sender_avatar,omitempty"`
	Text         string     `json:"text"`
	Type         string     `json:"type"`
	FileURL      string     `json:"file_url,omitempty"`
	FileName     string     `json:"file_name,omitempty"`
	FileSize     int64      `json:"file_size,omitempty"`
	Timestamp    int64      `json:"timestamp"` // unix milliseconds
	Edited       bool       `json:"edited"`
	EditedAt     int64      `json:"edited_at,omitempty"`
	Reactions    []Reaction `json:"reactions"`
}
