package avatar

import "context"

// EventType enumerates remote-originated session events.
type EventType string

const (
	EventStreamReady       EventType = "stream_ready"
	EventTalkingStarted    EventType = "avatar_start_talking"
	EventTalkingStopped    EventType = "avatar_stop_talking"
	EventUserSpeechStarted EventType = "user_start"
	EventUserSpeechStopped EventType = "user_stop"
	EventDisconnected      EventType = "stream_disconnected"
)

// Event is one asynchronous notification from the avatar stream.
type Event struct {
	Type      EventType
	Media     *MediaHandle
	Detail    string
	Timestamp int64
}

// RemoteSession is one live connection to the avatar rendering service.
// Implementations close the event channel when the underlying stream ends.
type RemoteSession interface {
	ID() string
	Speak(ctx context.Context, u Utterance) error
	StartVoiceChat(ctx context.Context) error
	CloseVoiceChat(ctx context.Context) error
	Interrupt(ctx context.Context) error
	Stop(ctx context.Context) error
	Close() error
}

// RemoteClient opens remote avatar sessions. The returned channel carries
// events for the lifetime of that session only.
type RemoteClient interface {
	StartSession(ctx context.Context, token string, cfg SessionConfig) (RemoteSession, <-chan Event, error)
}

// TokenProvider exchanges the server-held secret for a short-lived session
// credential. Each call requests a fresh token.
type TokenProvider interface {
	AcquireToken(ctx context.Context) (string, error)
}
