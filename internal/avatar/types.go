package avatar

// Status is the authoritative lifecycle state of the avatar session.
type Status string

const (
	StatusIdle     Status = "idle"
	StatusStarting Status = "starting"
	StatusActive   Status = "active"
	StatusStopping Status = "stopping"
	StatusStopped  Status = "stopped"
	StatusFailed   Status = "failed"
)

// ChatMode selects how user input reaches the avatar while a session is
// active: typed text or live voice.
type ChatMode string

const (
	ChatModeText  ChatMode = "text"
	ChatModeVoice ChatMode = "voice"
)

// TaskType distinguishes verbatim repetition from generated answers.
type TaskType string

const (
	TaskRepeat    TaskType = "repeat"
	TaskGenerated TaskType = "chat"
)

// TaskDelivery controls whether the caller waits for speech completion.
type TaskDelivery string

const (
	DeliverySync  TaskDelivery = "sync"
	DeliveryAsync TaskDelivery = "async"
)

// SessionConfig is immutable once a session starts.
type SessionConfig struct {
	AvatarID           string   `json:"avatar_id"`
	Quality            string   `json:"quality"`
	Language           string   `json:"language"`
	KnowledgeID        string   `json:"knowledge_id,omitempty"`
	VoiceRate          float64  `json:"voice_rate"`
	VoiceEmotion       string   `json:"voice_emotion"`
	DefaultChatMode    ChatMode `json:"default_chat_mode"`
	Greeting           string   `json:"greeting,omitempty"`
	DisableIdleTimeout bool     `json:"disable_idle_timeout"`
}

// Utterance is one discrete piece of text for the avatar to speak.
type Utterance struct {
	Text     string       `json:"text"`
	Mode     TaskType     `json:"mode"`
	Delivery TaskDelivery `json:"delivery"`
}

// MediaHandle points at the live media stream of an active session. It is
// owned by exactly one session at a time.
type MediaHandle struct {
	URL         string `json:"url"`
	AccessToken string `json:"access_token"`
}

// Snapshot is the UI-facing view of the session. All booleans are derived
// from the authoritative status and dispatcher signals, never stored as
// independent flags.
type Snapshot struct {
	Status        Status      `json:"status"`
	SessionID     string      `json:"session_id,omitempty"`
	ChatMode      ChatMode    `json:"chat_mode"`
	AvatarTalking bool        `json:"avatar_talking"`
	UserTalking   bool        `json:"user_talking"`
	MediaAttached bool        `json:"media_attached"`
	Media         *MediaHandle `json:"media,omitempty"`
	LastError     string      `json:"last_error,omitempty"`
}
