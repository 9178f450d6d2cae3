package avatar

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/eliseochoa/monica/internal/observability"
)

// Manager owns the lifecycle of the single avatar session. All transitions
// are compare-and-set against the authoritative status field (plus a
// generation counter) so stale remote events can never resurrect a stopped
// session.
type Manager struct {
	tokens  TokenProvider
	client  RemoteClient
	logger  *zap.Logger
	metrics *observability.Metrics

	mu            sync.Mutex
	status        Status
	chatMode      ChatMode
	cfg           SessionConfig
	sessionID     string
	media         *MediaHandle
	remote        RemoteSession
	gen           uint64
	avatarTalking bool
	userTalking   bool
	lastErr       string

	subMu sync.Mutex
	subs  map[chan Snapshot]struct{}

	defaults SessionConfig
}

func NewManager(tokens TokenProvider, client RemoteClient, defaults SessionConfig, metrics *observability.Metrics, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		tokens:   tokens,
		client:   client,
		logger:   logger,
		metrics:  metrics,
		status:   StatusIdle,
		chatMode: ChatModeText,
		defaults: defaults,
		subs:     make(map[chan Snapshot]struct{}),
	}
}

// Start acquires a token, opens the remote session, registers the event
// dispatcher and transitions to Active. It rejects when a session is already
// starting or active. The voice-chat sub-step is part of the transition:
// if it fails the session rolls back to Failed before Active is reported.
func (m *Manager) Start(ctx context.Context, overrides *SessionConfig) error {
	m.mu.Lock()
	switch m.status {
	case StatusStarting, StatusActive, StatusStopping:
		m.mu.Unlock()
		return ErrAlreadyStarted
	}
	cfg := m.mergeConfig(overrides)
	m.status = StatusStarting
	m.gen++
	gen := m.gen
	m.cfg = cfg
	m.chatMode = ChatModeText
	m.sessionID = ""
	m.media = nil
	m.avatarTalking = false
	m.userTalking = false
	m.lastErr = ""
	m.mu.Unlock()
	m.notify()
	m.countEvent("starting")

	token, err := m.tokens.AcquireToken(ctx)
	if err != nil {
		m.failStart(gen, err)
		return err
	}

	remote, events, err := m.client.StartSession(ctx, token, cfg)
	if err != nil {
		m.failStart(gen, err)
		return err
	}

	d := newDispatcher(m, gen)
	go d.run(events)

	if cfg.DefaultChatMode == ChatModeVoice {
		if err := remote.StartVoiceChat(ctx); err != nil {
			if stopErr := remote.Stop(ctx); stopErr != nil {
				m.logger.Warn("rollback teardown failed", zap.Error(stopErr))
			}
			m.failStart(gen, err)
			return err
		}
	}

	m.mu.Lock()
	if m.gen != gen || m.status != StatusStarting {
		m.mu.Unlock()
		if stopErr := remote.Stop(ctx); stopErr != nil {
			m.logger.Warn("teardown of superseded session failed", zap.Error(stopErr))
		}
		return ErrStoppedDuringStart
	}
	m.remote = remote
	m.sessionID = remote.ID()
	if cfg.DefaultChatMode == ChatModeVoice {
		m.chatMode = ChatModeVoice
	}
	m.status = StatusActive
	m.mu.Unlock()
	m.notify()
	m.countEvent("active")
	if m.metrics != nil {
		m.metrics.ActiveSessions.Set(1)
	}
	m.logger.Info("avatar session active",
		zap.String("session_id", remote.ID()),
		zap.String("avatar_id", cfg.AvatarID),
		zap.String("chat_mode", string(cfg.DefaultChatMode)))

	// Optional post-start side effect: a scripted greeting spoken verbatim.
	// Failures here never affect the session state.
	if strings.TrimSpace(cfg.Greeting) != "" {
		if err := remote.Speak(ctx, Utterance{Text: cfg.Greeting, Mode: TaskRepeat, Delivery: DeliveryAsync}); err != nil {
			m.logger.Warn("greeting failed", zap.Error(err))
		}
	}
	return nil
}

// Stop tears the session down. Local cleanup is unconditional: the media
// handle is released and the status reaches Stopped whether or not the
// remote acknowledges. Calling Stop on an idle or stopped session is a no-op.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	if m.status == StatusIdle || m.status == StatusStopped || m.status == StatusStopping {
		m.mu.Unlock()
		return nil
	}
	m.status = StatusStopping
	remote := m.remote
	m.remote = nil
	m.media = nil
	m.chatMode = ChatModeText
	m.avatarTalking = false
	m.userTalking = false
	m.gen++
	m.mu.Unlock()
	m.notify()

	if remote != nil {
		if err := remote.Stop(ctx); err != nil {
			m.logger.Warn("remote teardown failed", zap.Error(err))
		}
	}

	m.mu.Lock()
	m.status = StatusStopped
	m.mu.Unlock()
	m.notify()
	m.countEvent("stopped")
	if m.metrics != nil {
		m.metrics.ActiveSessions.Set(0)
	}
	return nil
}

// Reset returns a stopped or failed session to Idle.
func (m *Manager) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.status {
	case StatusIdle:
		return nil
	case StatusStopped, StatusFailed:
		m.status = StatusIdle
		m.sessionID = ""
		m.lastErr = ""
		return nil
	default:
		return ErrNotResettable
	}
}

// Speak submits an utterance to the active session. When the session is not
// active the failure is local and no remote call is made.
func (m *Manager) Speak(ctx context.Context, u Utterance) error {
	if strings.TrimSpace(u.Text) == "" {
		return localSpeechError(ErrEmptyUtterance)
	}
	if u.Mode == "" {
		u.Mode = TaskRepeat
	}
	if u.Delivery == "" {
		u.Delivery = DeliverySync
	}

	m.mu.Lock()
	if m.status != StatusActive || m.remote == nil {
		m.mu.Unlock()
		m.countSpeak(u.Mode, "not_active")
		return localSpeechError(ErrSessionNotActive)
	}
	remote := m.remote
	m.mu.Unlock()

	if err := remote.Speak(ctx, u); err != nil {
		m.countSpeak(u.Mode, "remote_rejected")
		return remoteSpeechError(err)
	}
	m.countSpeak(u.Mode, "ok")
	return nil
}

// SetChatMode switches between text and voice input. Only valid while
// Active; on remote failure the previous mode is kept and the session stays
// Active.
func (m *Manager) SetChatMode(ctx context.Context, mode ChatMode) error {
	if mode != ChatModeText && mode != ChatModeVoice {
		return fmt.Errorf("unknown chat mode %q", mode)
	}

	m.mu.Lock()
	if m.status != StatusActive || m.remote == nil {
		m.mu.Unlock()
		return ErrSessionNotActive
	}
	if m.chatMode == mode {
		m.mu.Unlock()
		return nil
	}
	remote := m.remote
	gen := m.gen
	m.mu.Unlock()

	var err error
	if mode == ChatModeVoice {
		err = remote.StartVoiceChat(ctx)
	} else {
		err = remote.CloseVoiceChat(ctx)
	}
	if err != nil {
		return err
	}

	m.mu.Lock()
	if m.gen == gen && m.status == StatusActive {
		m.chatMode = mode
	}
	m.mu.Unlock()
	m.notify()
	m.countEvent("chat_mode_" + string(mode))
	return nil
}

// Interrupt asks the remote session to cut any in-progress utterance.
// Failures are reported but never change the session status.
func (m *Manager) Interrupt(ctx context.Context) error {
	m.mu.Lock()
	if m.status != StatusActive || m.remote == nil {
		m.mu.Unlock()
		return ErrSessionNotActive
	}
	remote := m.remote
	m.mu.Unlock()
	return remote.Interrupt(ctx)
}

// Snapshot returns the UI-facing view derived from the authoritative state.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Manager) snapshotLocked() Snapshot {
	snap := Snapshot{
		Status:        m.status,
		SessionID:     m.sessionID,
		ChatMode:      m.chatMode,
		AvatarTalking: m.avatarTalking,
		UserTalking:   m.userTalking,
		MediaAttached: m.media != nil,
		LastError:     m.lastErr,
	}
	if m.media != nil {
		mediaCopy := *m.media
		snap.Media = &mediaCopy
	}
	return snap
}

// Subscribe registers an observer for state snapshots. Slow observers miss
// intermediate snapshots rather than blocking the event path.
func (m *Manager) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 16)
	m.subMu.Lock()
	m.subs[ch] = struct{}{}
	m.subMu.Unlock()
	return ch, func() {
		m.subMu.Lock()
		delete(m.subs, ch)
		m.subMu.Unlock()
	}
}

func (m *Manager) notify() {
	snap := m.Snapshot()
	m.subMu.Lock()
	defer m.subMu.Unlock()
	for ch := range m.subs {
		select {
		case ch <- snap:
		default:
		}
	}
}

func (m *Manager) failStart(gen uint64, err error) {
	m.mu.Lock()
	if m.gen != gen || m.status != StatusStarting {
		m.mu.Unlock()
		return
	}
	m.status = StatusFailed
	m.lastErr = err.Error()
	m.mu.Unlock()
	m.notify()
	m.countEvent("failed")
	m.logger.Error("avatar session start failed", zap.Error(err))
}

// attachMedia hands the media handle to the session. Stale events from a
// superseded session are dropped.
func (m *Manager) attachMedia(gen uint64, h *MediaHandle) {
	m.mu.Lock()
	if m.gen != gen || (m.status != StatusStarting && m.status != StatusActive) || h == nil {
		m.mu.Unlock()
		return
	}
	m.media = h
	m.mu.Unlock()
	m.notify()
	m.countEvent("stream_ready")
}

func (m *Manager) setAvatarTalking(gen uint64, talking bool) {
	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		return
	}
	m.avatarTalking = talking
	m.mu.Unlock()
	m.notify()
}

func (m *Manager) setUserTalking(gen uint64, talking bool) {
	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		return
	}
	m.userTalking = talking
	m.mu.Unlock()
	m.notify()
}

// forceStopped handles a remote disconnect: a valid terminal transition,
// not an error. Idempotent against a concurrent Stop.
func (m *Manager) forceStopped(gen uint64) {
	m.mu.Lock()
	if m.gen != gen || m.status == StatusStopping || m.status == StatusStopped || m.status == StatusIdle {
		m.mu.Unlock()
		return
	}
	remote := m.remote
	m.remote = nil
	m.media = nil
	m.chatMode = ChatModeText
	m.avatarTalking = false
	m.userTalking = false
	m.status = StatusStopped
	m.gen++
	m.mu.Unlock()

	if remote != nil {
		_ = remote.Close()
	}
	m.notify()
	m.countEvent("disconnected")
	if m.metrics != nil {
		m.metrics.ActiveSessions.Set(0)
	}
	m.logger.Info("avatar stream disconnected, session stopped")
}

func (m *Manager) mergeConfig(overrides *SessionConfig) SessionConfig {
	cfg := m.defaults
	if overrides == nil {
		return cfg
	}
	if overrides.AvatarID != "" {
		cfg.AvatarID = overrides.AvatarID
	}
	if overrides.Quality != "" {
		cfg.Quality = overrides.Quality
	}
	if overrides.Language != "" {
		cfg.Language = overrides.Language
	}
	if overrides.KnowledgeID != "" {
		cfg.KnowledgeID = overrides.KnowledgeID
	}
	if overrides.VoiceRate > 0 {
		cfg.VoiceRate = overrides.VoiceRate
	}
	if overrides.VoiceEmotion != "" {
		cfg.VoiceEmotion = overrides.VoiceEmotion
	}
	if overrides.DefaultChatMode != "" {
		cfg.DefaultChatMode = overrides.DefaultChatMode
	}
	if overrides.Greeting != "" {
		cfg.Greeting = overrides.Greeting
	}
	return cfg
}

func (m *Manager) countEvent(event string) {
	if m.metrics != nil {
		m.metrics.SessionEvents.WithLabelValues(event).Inc()
	}
}

func (m *Manager) countSpeak(mode TaskType, outcome string) {
	if m.metrics != nil {
		m.metrics.SpeakRequests.WithLabelValues(string(mode), outcome).Inc()
	}
}
