package avatar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// HeyGenClientConfig configures the streaming avatar client.
type HeyGenClientConfig struct {
	BaseURL string
	Timeout time.Duration
}

// HeyGenClient drives the HeyGen streaming avatar API: REST calls for
// session control and a realtime websocket for session events.
type HeyGenClient struct {
	cfg    HeyGenClientConfig
	client *http.Client
	logger *zap.Logger
}

func NewHeyGenClient(cfg HeyGenClientConfig, logger *zap.Logger) *HeyGenClient {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = "https://api.heygen.com"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HeyGenClient{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

type streamingNewResponse struct {
	Data struct {
		SessionID        string `json:"session_id"`
		URL              string `json:"url"`
		AccessToken      string `json:"access_token"`
		RealtimeEndpoint string `json:"realtime_endpoint"`
	} `json:"data"`
}

// StartSession creates and starts a streaming session, then attaches the
// realtime event socket. The returned channel closes when the stream ends.
func (c *HeyGenClient) StartSession(ctx context.Context, token string, cfg SessionConfig) (RemoteSession, <-chan Event, error) {
	newReq := map[string]any{
		"quality":     cfg.Quality,
		"avatar_name": cfg.AvatarID,
		"voice": map[string]any{
			"rate":    cfg.VoiceRate,
			"emotion": cfg.VoiceEmotion,
		},
		"language":             cfg.Language,
		"disable_idle_timeout": cfg.DisableIdleTimeout,
	}
	if cfg.KnowledgeID != "" {
		newReq["knowledge_id"] = cfg.KnowledgeID
	}

	var created streamingNewResponse
	if err := c.postJSON(ctx, token, "/v1/streaming.new", newReq, &created); err != nil {
		return nil, nil, fmt.Errorf("create streaming session: %w", err)
	}
	if created.Data.SessionID == "" {
		return nil, nil, fmt.Errorf("create streaming session: response missing session_id")
	}

	if err := c.postJSON(ctx, token, "/v1/streaming.start", map[string]any{"session_id": created.Data.SessionID}, nil); err != nil {
		return nil, nil, fmt.Errorf("start streaming session: %w", err)
	}

	events := make(chan Event, 256)
	s := &heygenSession{
		id:     created.Data.SessionID,
		token:  token,
		client: c,
		events: events,
	}

	// The media handle becomes available as soon as the remote acknowledges
	// the start; surface it through the same event path the socket uses.
	// Enqueued before the read loop starts, so once the loop runs it is the
	// only sender on the channel.
	events <- Event{
		Type:      EventStreamReady,
		Media:     &MediaHandle{URL: created.Data.URL, AccessToken: created.Data.AccessToken},
		Timestamp: time.Now().UnixMilli(),
	}

	if created.Data.RealtimeEndpoint != "" {
		headers := http.Header{}
		headers.Set("Authorization", "Bearer "+token)
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, created.Data.RealtimeEndpoint, headers)
		if err != nil {
			_ = c.postJSON(ctx, token, "/v1/streaming.stop", map[string]any{"session_id": s.id}, nil)
			close(events)
			return nil, nil, fmt.Errorf("dial realtime endpoint: %w", err)
		}
		s.conn = conn
		go s.readLoop()
	}

	return s, events, nil
}

func (c *HeyGenClient) postJSON(ctx context.Context, token, path string, body map[string]any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(c.cfg.BaseURL, "/")+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	res, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return fmt.Errorf("heygen %s status %d: %s", path, res.StatusCode, strings.TrimSpace(string(detail)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

type heygenSession struct {
	id     string
	token  string
	client *HeyGenClient

	conn      *websocket.Conn
	writeMu   sync.Mutex
	closeOnce sync.Once
	events    chan Event
}

func (s *heygenSession) ID() string { return s.id }

func (s *heygenSession) Speak(ctx context.Context, u Utterance) error {
	return s.client.postJSON(ctx, s.token, "/v1/streaming.task", map[string]any{
		"session_id": s.id,
		"text":       u.Text,
		"task_type":  string(u.Mode),
		"task_mode":  string(u.Delivery),
	}, nil)
}

func (s *heygenSession) StartVoiceChat(ctx context.Context) error {
	return s.writeJSON(ctx, map[string]any{
		"type":               "voice_chat.start",
		"session_id":         s.id,
		"use_silence_prompt": false,
	})
}

func (s *heygenSession) CloseVoiceChat(ctx context.Context) error {
	return s.writeJSON(ctx, map[string]any{
		"type":       "voice_chat.close",
		"session_id": s.id,
	})
}

func (s *heygenSession) Interrupt(ctx context.Context) error {
	return s.client.postJSON(ctx, s.token, "/v1/streaming.interrupt", map[string]any{"session_id": s.id}, nil)
}

func (s *heygenSession) Stop(ctx context.Context) error {
	err := s.client.postJSON(ctx, s.token, "/v1/streaming.stop", map[string]any{"session_id": s.id}, nil)
	s.safeClose()
	return err
}

func (s *heygenSession) Close() error {
	s.safeClose()
	return nil
}

func (s *heygenSession) writeJSON(_ context.Context, payload map[string]any) error {
	if s.conn == nil {
		return fmt.Errorf("realtime socket not attached")
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteJSON(payload)
}

func (s *heygenSession) readLoop() {
	// The read loop is the only sender on s.events, so it alone closes the
	// channel. Stop/Close only close the socket, which unblocks ReadMessage.
	defer func() {
		s.safeClose()
		close(s.events)
	}()
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			s.emit(Event{Type: EventDisconnected, Timestamp: time.Now().UnixMilli()})
			return
		}
		var raw map[string]any
		if err := json.Unmarshal(data, &raw); err != nil {
			continue
		}
		eventType, _ := raw["type"].(string)
		switch EventType(eventType) {
		case EventTalkingStarted, EventTalkingStopped, EventUserSpeechStarted, EventUserSpeechStopped:
			s.emit(Event{Type: EventType(eventType), Timestamp: time.Now().UnixMilli()})
		case EventDisconnected:
			s.emit(Event{Type: EventDisconnected, Timestamp: time.Now().UnixMilli()})
			return
		default:
			// Unknown control events are dropped; the state machine only
			// reacts to the types above.
		}
	}
}

func (s *heygenSession) emit(e Event) {
	select {
	case s.events <- e:
	default:
		s.client.logger.Warn("avatar event dropped, channel saturated", zap.String("type", string(e.Type)))
	}
}

func (s *heygenSession) safeClose() {
	s.closeOnce.Do(func() {
		if s.conn != nil {
			_ = s.conn.Close()
		} else {
			close(s.events)
		}
	})
}
