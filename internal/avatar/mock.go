package avatar

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MockClient is a local fallback client used when HeyGen is not configured.
// It also backs the state-machine tests: every remote call is recorded and
// events can be injected through the session's Emit method.
type MockClient struct {
	mu       sync.Mutex
	sessions []*MockSession

	FailStart     bool
	FailVoiceChat bool
	FailSpeak     bool
}

func NewMockClient() *MockClient { return &MockClient{} }

func (c *MockClient) StartSession(_ context.Context, _ string, _ SessionConfig) (RemoteSession, <-chan Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FailStart {
		return nil, nil, errMock("start rejected")
	}
	events := make(chan Event, 64)
	s := &MockSession{
		id:            uuid.NewString(),
		events:        events,
		failVoiceChat: c.FailVoiceChat,
		failSpeak:     c.FailSpeak,
	}
	c.sessions = append(c.sessions, s)
	events <- Event{
		Type:      EventStreamReady,
		Media:     &MediaHandle{URL: "mock://stream/" + s.id, AccessToken: "mock-token"},
		Timestamp: time.Now().UnixMilli(),
	}
	return s, events, nil
}

// Sessions returns every session the client has opened, in order.
func (c *MockClient) Sessions() []*MockSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*MockSession, len(c.sessions))
	copy(out, c.sessions)
	return out
}

// OpenCount reports sessions that have not been stopped or closed.
func (c *MockClient) OpenCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, s := range c.sessions {
		if !s.Stopped() {
			n++
		}
	}
	return n
}

type MockSession struct {
	id     string
	events chan Event

	mu            sync.Mutex
	closed        bool
	stopped       bool
	voiceChat     bool
	spoken        []Utterance
	interrupts    int
	failVoiceChat bool
	failSpeak     bool
}

func (s *MockSession) ID() string { return s.id }

func (s *MockSession) Speak(_ context.Context, u Utterance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSpeak {
		return errMock("task rejected")
	}
	s.spoken = append(s.spoken, u)
	return nil
}

func (s *MockSession) StartVoiceChat(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failVoiceChat {
		return errMock("voice chat rejected")
	}
	s.voiceChat = true
	return nil
}

func (s *MockSession) CloseVoiceChat(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.voiceChat = false
	return nil
}

func (s *MockSession) Interrupt(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interrupts++
	return nil
}

func (s *MockSession) Stop(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	s.closeLocked()
	return nil
}

func (s *MockSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	s.closeLocked()
	return nil
}

// Emit injects a remote event, as the realtime socket would.
func (s *MockSession) Emit(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if e.Timestamp == 0 {
		e.Timestamp = time.Now().UnixMilli()
	}
	s.events <- e
}

// Disconnect simulates the remote stream dropping.
func (s *MockSession) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.events <- Event{Type: EventDisconnected, Timestamp: time.Now().UnixMilli()}
	s.closeLocked()
}

func (s *MockSession) Stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

func (s *MockSession) VoiceChatActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.voiceChat
}

func (s *MockSession) Spoken() []Utterance {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Utterance, len(s.spoken))
	copy(out, s.spoken)
	return out
}

func (s *MockSession) Interrupts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interrupts
}

func (s *MockSession) closeLocked() {
	if s.closed {
		return
	}
	s.closed = true
	close(s.events)
}

type errMock string

func (e errMock) Error() string { return string(e) }

// MockTokenProvider returns a canned token or error.
type MockTokenProvider struct {
	Token string
	Err   error
	Calls int
}

func (p *MockTokenProvider) AcquireToken(_ context.Context) (string, error) {
	p.Calls++
	if p.Err != nil {
		return "", p.Err
	}
	if p.Token == "" {
		return "mock-session-token", nil
	}
	return p.Token, nil
}
