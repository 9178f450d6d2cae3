package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/eliseochoa/monica/internal/avatar"
	"github.com/eliseochoa/monica/internal/rag"
)

// handleToken mints a short-lived streaming token for browser clients. The
// long-lived provider secret never leaves the server; only the minted token
// does, as a raw text body.
func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	token, err := s.tokens.AcquireToken(r.Context())
	if err != nil {
		s.logger.Error("token acquisition failed", zap.Error(err))
		s.metrics.TokenRequests.WithLabelValues("error").Inc()
		var authErr *avatar.AuthError
		if errors.As(err, &authErr) {
			s.metrics.ProviderErrors.WithLabelValues("heygen", string(authErr.Kind)).Inc()
			if authErr.Kind == avatar.AuthMissingSecret {
				respondError(w, http.StatusInternalServerError, authErr.Detail, "")
				return
			}
			respondError(w, http.StatusInternalServerError, "Failed to retrieve access token", authErr.Detail)
			return
		}
		respondError(w, http.StatusInternalServerError, "Failed to retrieve access token", "")
		return
	}
	s.metrics.TokenRequests.WithLabelValues("ok").Inc()
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(token))
}

type ragRequest struct {
	Query string `json:"query"`
}

type ragResponse struct {
	Response string `json:"response"`
}

func (s *Server) handleRAG(w http.ResponseWriter, r *http.Request) {
	var req ragRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "Invalid request body", "")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		respondError(w, http.StatusBadRequest, "Query is required", "")
		return
	}

	answer, err := s.answerer.Answer(r.Context(), req.Query)
	if err != nil {
		s.logger.Error("rag answer failed", zap.String("query", req.Query), zap.Error(err))
		var retErr *rag.RetrievalError
		if errors.As(err, &retErr) {
			s.metrics.ProviderErrors.WithLabelValues("retrieval", string(retErr.Kind)).Inc()
			respondError(w, http.StatusInternalServerError, "Failed to process request", string(retErr.Kind))
			return
		}
		var genErr *rag.GenerationError
		if errors.As(err, &genErr) {
			s.metrics.ProviderErrors.WithLabelValues("generation", string(genErr.Kind)).Inc()
			respondError(w, http.StatusInternalServerError, "Failed to process request", string(genErr.Kind))
			return
		}
		respondError(w, http.StatusInternalServerError, "Failed to process request", "")
		return
	}
	respondJSON(w, http.StatusOK, ragResponse{Response: answer})
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var overrides *avatar.SessionConfig
	var req avatar.SessionConfig
	switch err := decodeJSON(r, &req); {
	case err == nil:
		overrides = &req
	case errors.Is(err, errEmptyBody):
		// Defaults apply.
	default:
		respondError(w, http.StatusBadRequest, "Invalid request body", "")
		return
	}

	if err := s.sessions.Start(r.Context(), overrides); err != nil {
		if errors.Is(err, avatar.ErrAlreadyStarted) {
			respondError(w, http.StatusConflict, "Session already active", "")
			return
		}
		if errors.Is(err, avatar.ErrStoppedDuringStart) {
			respondError(w, http.StatusConflict, "Session stopped while starting", "")
			return
		}
		s.logger.Error("session start failed", zap.Error(err))
		respondError(w, http.StatusBadGateway, "Failed to start session", err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, s.sessions.Snapshot())
}

func (s *Server) handleStopSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Stop(r.Context()); err != nil {
		s.logger.Error("session stop failed", zap.Error(err))
		respondError(w, http.StatusBadGateway, "Failed to stop session", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, s.sessions.Snapshot())
}

func (s *Server) handleGetSession(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, s.sessions.Snapshot())
}

func (s *Server) handleSpeak(w http.ResponseWriter, r *http.Request) {
	var u avatar.Utterance
	if err := decodeJSON(r, &u); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body", "")
		return
	}

	if err := s.sessions.Speak(r.Context(), u); err != nil {
		var speechErr *avatar.SpeechError
		if errors.As(err, &speechErr) && !speechErr.Remote {
			if errors.Is(err, avatar.ErrEmptyUtterance) {
				respondError(w, http.StatusBadRequest, "Text is required", "")
				return
			}
			respondError(w, http.StatusConflict, "Session not active", "")
			return
		}
		s.logger.Error("speak failed", zap.Error(err))
		respondError(w, http.StatusBadGateway, "Failed to send speak task", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, s.sessions.Snapshot())
}

type chatModeRequest struct {
	Mode avatar.ChatMode `json:"mode"`
}

func (s *Server) handleChatMode(w http.ResponseWriter, r *http.Request) {
	var req chatModeRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body", "")
		return
	}
	if req.Mode != avatar.ChatModeText && req.Mode != avatar.ChatModeVoice {
		respondError(w, http.StatusBadRequest, "Mode must be text or voice", "")
		return
	}

	if err := s.sessions.SetChatMode(r.Context(), req.Mode); err != nil {
		if errors.Is(err, avatar.ErrSessionNotActive) {
			respondError(w, http.StatusConflict, "Session not active", "")
			return
		}
		s.logger.Error("chat mode switch failed", zap.String("mode", string(req.Mode)), zap.Error(err))
		respondError(w, http.StatusBadGateway, "Failed to switch chat mode", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, s.sessions.Snapshot())
}

func (s *Server) handleInterrupt(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Interrupt(r.Context()); err != nil {
		if errors.Is(err, avatar.ErrSessionNotActive) {
			respondError(w, http.StatusConflict, "Session not active", "")
			return
		}
		s.logger.Error("interrupt failed", zap.Error(err))
		respondError(w, http.StatusBadGateway, "Failed to interrupt", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, s.sessions.Snapshot())
}
