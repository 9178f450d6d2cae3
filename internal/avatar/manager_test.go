package avatar

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestManager(client *MockClient, tokens TokenProvider, defaults SessionConfig) *Manager {
	if tokens == nil {
		tokens = &MockTokenProvider{}
	}
	return NewManager(tokens, client, defaults, nil, nil)
}

func waitFor(t *testing.T, m *Manager, cond func(Snapshot) bool) Snapshot {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		snap := m.Snapshot()
		if cond(snap) {
			return snap
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met before deadline, last snapshot: %+v", m.Snapshot())
	return Snapshot{}
}

func TestStartStopLifecycle(t *testing.T) {
	client := NewMockClient()
	m := newTestManager(client, nil, SessionConfig{AvatarID: "avatar_f_monica_001", DefaultChatMode: ChatModeText})

	if err := m.Start(context.Background(), nil); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	snap := waitFor(t, m, func(s Snapshot) bool {
		return s.Status == StatusActive && s.MediaAttached
	})
	if snap.SessionID == "" {
		t.Fatalf("active session should have an id")
	}
	if snap.ChatMode != ChatModeText {
		t.Fatalf("chat mode = %q, want text", snap.ChatMode)
	}

	if err := m.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	snap = m.Snapshot()
	if snap.Status != StatusStopped {
		t.Fatalf("status = %q, want stopped", snap.Status)
	}
	if snap.MediaAttached || snap.Media != nil {
		t.Fatalf("media handle should be released on stop")
	}
	if client.OpenCount() != 0 {
		t.Fatalf("open remote sessions = %d, want 0", client.OpenCount())
	}
}

func TestDoubleStartLeavesOneSession(t *testing.T) {
	client := NewMockClient()
	m := newTestManager(client, nil, SessionConfig{DefaultChatMode: ChatModeText})

	if err := m.Start(context.Background(), nil); err != nil {
		t.Fatalf("first Start() error = %v", err)
	}
	if err := m.Start(context.Background(), nil); !errors.Is(err, ErrAlreadyStarted) {
		t.Fatalf("second Start() error = %v, want ErrAlreadyStarted", err)
	}
	if got := len(client.Sessions()); got != 1 {
		t.Fatalf("remote sessions opened = %d, want 1", got)
	}
	if client.OpenCount() != 1 {
		t.Fatalf("open remote sessions = %d, want 1", client.OpenCount())
	}
}

func TestStopIsIdempotent(t *testing.T) {
	client := NewMockClient()
	m := newTestManager(client, nil, SessionConfig{DefaultChatMode: ChatModeText})

	if err := m.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() on idle session error = %v", err)
	}

	if err := m.Start(context.Background(), nil); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := m.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if err := m.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() on stopped session error = %v", err)
	}
	if m.Snapshot().Status != StatusStopped {
		t.Fatalf("status = %q, want stopped", m.Snapshot().Status)
	}
}

func TestSpeakRequiresActiveSession(t *testing.T) {
	client := NewMockClient()
	m := newTestManager(client, nil, SessionConfig{DefaultChatMode: ChatModeText})

	err := m.Speak(context.Background(), Utterance{Text: "hello"})
	var speechErr *SpeechError
	if !errors.As(err, &speechErr) {
		t.Fatalf("Speak() error = %v, want *SpeechError", err)
	}
	if speechErr.Remote {
		t.Fatalf("guard violation should be a local error")
	}
	if !errors.Is(err, ErrSessionNotActive) {
		t.Fatalf("Speak() error = %v, want ErrSessionNotActive", err)
	}
	if len(client.Sessions()) != 0 {
		t.Fatalf("no remote call should be made when not active")
	}
}

func TestSpeakDefaultsAndDelivery(t *testing.T) {
	client := NewMockClient()
	m := newTestManager(client, nil, SessionConfig{DefaultChatMode: ChatModeText})

	if err := m.Start(context.Background(), nil); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := m.Speak(context.Background(), Utterance{Text: "repeat me"}); err != nil {
		t.Fatalf("Speak() error = %v", err)
	}
	spoken := client.Sessions()[0].Spoken()
	if len(spoken) != 1 {
		t.Fatalf("spoken = %d utterances, want 1", len(spoken))
	}
	if spoken[0].Mode != TaskRepeat || spoken[0].Delivery != DeliverySync {
		t.Fatalf("defaults = %+v, want repeat/sync", spoken[0])
	}
}

func TestDisconnectForcesStopped(t *testing.T) {
	client := NewMockClient()
	m := newTestManager(client, nil, SessionConfig{DefaultChatMode: ChatModeText})

	if err := m.Start(context.Background(), nil); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	waitFor(t, m, func(s Snapshot) bool { return s.Status == StatusActive })

	client.Sessions()[0].Disconnect()

	snap := waitFor(t, m, func(s Snapshot) bool { return s.Status == StatusStopped })
	if snap.MediaAttached {
		t.Fatalf("media handle should be released on disconnect")
	}
	if snap.LastError != "" {
		t.Fatalf("disconnect is not an error, got %q", snap.LastError)
	}
}

func TestVoiceChatFailureRollsBackToFailed(t *testing.T) {
	client := NewMockClient()
	client.FailVoiceChat = true
	m := newTestManager(client, nil, SessionConfig{DefaultChatMode: ChatModeVoice})

	if err := m.Start(context.Background(), nil); err == nil {
		t.Fatalf("Start() should fail when the voice chat sub-step fails")
	}
	if m.Snapshot().Status != StatusFailed {
		t.Fatalf("status = %q, want failed", m.Snapshot().Status)
	}
	if client.OpenCount() != 0 {
		t.Fatalf("remote session should be torn down on rollback")
	}
}

func TestTokenFailureFailsStart(t *testing.T) {
	client := NewMockClient()
	tokens := &MockTokenProvider{Err: &AuthError{Kind: AuthMissingSecret, Detail: "HEYGEN_API_KEY is not set"}}
	m := newTestManager(client, tokens, SessionConfig{DefaultChatMode: ChatModeText})

	err := m.Start(context.Background(), nil)
	var authErr *AuthError
	if !errors.As(err, &authErr) || authErr.Kind != AuthMissingSecret {
		t.Fatalf("Start() error = %v, want missing-secret AuthError", err)
	}
	if m.Snapshot().Status != StatusFailed {
		t.Fatalf("status = %q, want failed", m.Snapshot().Status)
	}
	if len(client.Sessions()) != 0 {
		t.Fatalf("no remote session should be opened without a token")
	}
}

func TestSetChatModeKeepsPreviousModeOnFailure(t *testing.T) {
	client := NewMockClient()
	client.FailVoiceChat = true
	m := newTestManager(client, nil, SessionConfig{DefaultChatMode: ChatModeText})

	if err := m.Start(context.Background(), nil); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := m.SetChatMode(context.Background(), ChatModeVoice); err == nil {
		t.Fatalf("SetChatMode() should surface the remote failure")
	}
	snap := m.Snapshot()
	if snap.Status != StatusActive {
		t.Fatalf("status = %q, want active after mode-switch failure", snap.Status)
	}
	if snap.ChatMode != ChatModeText {
		t.Fatalf("chat mode = %q, want text after failed switch", snap.ChatMode)
	}
}

func TestSetChatModeSwitches(t *testing.T) {
	client := NewMockClient()
	m := newTestManager(client, nil, SessionConfig{DefaultChatMode: ChatModeText})

	if err := m.Start(context.Background(), nil); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := m.SetChatMode(context.Background(), ChatModeVoice); err != nil {
		t.Fatalf("SetChatMode(voice) error = %v", err)
	}
	if !client.Sessions()[0].VoiceChatActive() {
		t.Fatalf("voice chat should be active remotely")
	}
	if m.Snapshot().ChatMode != ChatModeVoice {
		t.Fatalf("chat mode = %q, want voice", m.Snapshot().ChatMode)
	}
	if err := m.SetChatMode(context.Background(), ChatModeText); err != nil {
		t.Fatalf("SetChatMode(text) error = %v", err)
	}
	if client.Sessions()[0].VoiceChatActive() {
		t.Fatalf("voice chat should be closed remotely")
	}
}

func TestGreetingSpokenAfterActive(t *testing.T) {
	client := NewMockClient()
	m := newTestManager(client, nil, SessionConfig{DefaultChatMode: ChatModeText, Greeting: "Hi, I'm Monica."})

	if err := m.Start(context.Background(), nil); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	spoken := client.Sessions()[0].Spoken()
	if len(spoken) != 1 {
		t.Fatalf("greeting utterances = %d, want 1", len(spoken))
	}
	if spoken[0].Mode != TaskRepeat || spoken[0].Text != "Hi, I'm Monica." {
		t.Fatalf("greeting = %+v, want verbatim repeat", spoken[0])
	}
}

func TestStaleEventsCannotResurrectStoppedSession(t *testing.T) {
	client := NewMockClient()
	m := newTestManager(client, nil, SessionConfig{DefaultChatMode: ChatModeText})

	if err := m.Start(context.Background(), nil); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	snap := waitFor(t, m, func(s Snapshot) bool { return s.Status == StatusActive })
	staleGen := m.gen
	if err := m.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	m.attachMedia(staleGen, &MediaHandle{URL: "mock://stale"})
	m.setAvatarTalking(staleGen, true)
	m.forceStopped(staleGen)

	snap = m.Snapshot()
	if snap.Status != StatusStopped || snap.MediaAttached || snap.AvatarTalking {
		t.Fatalf("stale events mutated stopped session: %+v", snap)
	}
}

func TestInterruptOnlyWhileActive(t *testing.T) {
	client := NewMockClient()
	m := newTestManager(client, nil, SessionConfig{DefaultChatMode: ChatModeText})

	if err := m.Interrupt(context.Background()); !errors.Is(err, ErrSessionNotActive) {
		t.Fatalf("Interrupt() error = %v, want ErrSessionNotActive", err)
	}

	if err := m.Start(context.Background(), nil); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := m.Interrupt(context.Background()); err != nil {
		t.Fatalf("Interrupt() error = %v", err)
	}
	if got := client.Sessions()[0].Interrupts(); got != 1 {
		t.Fatalf("interrupts = %d, want 1", got)
	}
	if m.Snapshot().Status != StatusActive {
		t.Fatalf("interrupt must not change status")
	}
}

func TestResetTransitions(t *testing.T) {
	client := NewMockClient()
	m := newTestManager(client, nil, SessionConfig{DefaultChatMode: ChatModeText})

	if err := m.Reset(); err != nil {
		t.Fatalf("Reset() on idle error = %v", err)
	}

	if err := m.Start(context.Background(), nil); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := m.Reset(); !errors.Is(err, ErrNotResettable) {
		t.Fatalf("Reset() while active error = %v, want ErrNotResettable", err)
	}
	if err := m.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if err := m.Reset(); err != nil {
		t.Fatalf("Reset() after stop error = %v", err)
	}
	if m.Snapshot().Status != StatusIdle {
		t.Fatalf("status = %q, want idle", m.Snapshot().Status)
	}
}

func TestTalkingFlagsFollowEvents(t *testing.T) {
	client := NewMockClient()
	m := newTestManager(client, nil, SessionConfig{DefaultChatMode: ChatModeText})

	if err := m.Start(context.Background(), nil); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	waitFor(t, m, func(s Snapshot) bool { return s.Status == StatusActive })

	sess := client.Sessions()[0]
	sess.Emit(Event{Type: EventTalkingStarted})
	waitFor(t, m, func(s Snapshot) bool { return s.AvatarTalking })
	sess.Emit(Event{Type: EventTalkingStopped})
	waitFor(t, m, func(s Snapshot) bool { return !s.AvatarTalking })

	sess.Emit(Event{Type: EventUserSpeechStarted})
	waitFor(t, m, func(s Snapshot) bool { return s.UserTalking })
	sess.Emit(Event{Type: EventUserSpeechStopped})
	waitFor(t, m, func(s Snapshot) bool { return !s.UserTalking })
}

func TestSubscribeObservesTransitions(t *testing.T) {
	client := NewMockClient()
	m := newTestManager(client, nil, SessionConfig{DefaultChatMode: ChatModeText})

	ch, cancel := m.Subscribe()
	defer cancel()

	if err := m.Start(context.Background(), nil); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case snap := <-ch:
			if snap.Status == StatusActive {
				return
			}
		case <-deadline:
			t.Fatalf("never observed active snapshot")
		}
	}
}
