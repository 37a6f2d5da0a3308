// Package httpapi serves the interview over HTTP: a browser client over a
// websocket, headless runs, status and transcript reads, and metrics.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/ent0n29/screener/internal/config"
	"github.com/ent0n29/screener/internal/export"
	"github.com/ent0n29/screener/internal/interview"
	"github.com/ent0n29/screener/internal/launch"
	"github.com/ent0n29/screener/internal/observability"
	"github.com/ent0n29/screener/internal/session"
	"github.com/ent0n29/screener/internal/transcript"
	"github.com/ent0n29/screener/internal/voice"
)

// Deps are the collaborators the server routes requests to.
type Deps struct {
	Config   config.Config
	Sessions *session.Manager
	Launcher *launch.Launcher
	Metrics  *observability.Metrics
	// NewPort builds the speech port for one browser connection.
	NewPort func(connID string) *voice.Port
	Logger  *slog.Logger
}

type Server struct {
	cfg      config.Config
	sessions *session.Manager
	launcher *launch.Launcher
	metrics  *observability.Metrics
	newPort  func(connID string) *voice.Port
	logger   *slog.Logger
	upgrader websocket.Upgrader
	static   http.Handler

	// runs started over plain HTTP outlive the request that started them
	baseCtx context.Context
}

func New(d Deps) *Server {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	cfg := d.Config
	return &Server{
		cfg:      cfg,
		sessions: d.Sessions,
		launcher: d.Launcher,
		metrics:  d.Metrics,
		newPort:  d.NewPort,
		logger:   d.Logger,
		static:   newStaticHandler(),
		baseCtx:  context.Background(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Only the same origin may drive the microphone unless configured otherwise.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/ui/", http.StatusTemporaryRedirect)
	})
	r.Get("/ui", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/ui/", http.StatusTemporaryRedirect)
	})
	r.Handle("/ui/*", http.StripPrefix("/ui/", s.static))

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Post("/v1/interview", s.handleStartInterview)
	r.Get("/v1/interview/ws", s.handleInterviewWS)
	r.Get("/v1/interview/transcript", s.handleTranscript)
	r.Get("/v1/interview/{id}", s.handleGetInterview)
	r.Post("/v1/interview/{id}/stop", s.handleStopListening)
	r.Post("/v1/interview/{id}/end", s.handleEndInterview)
	r.Get("/v1/judge/latency", s.handleJudgeLatency)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"voice_provider": s.cfg.VoiceProvider,
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	active, busy := s.sessions.Active()
	body := map[string]any{
		"status": "ready",
		"busy":   busy,
	}
	if busy {
		body["active_session_id"] = active.ID
	}
	respondJSON(w, http.StatusOK, body)
}

type startInterviewRequest struct {
	Answers []string `json:"answers"`
}

// handleStartInterview runs an interview over a fixed list of answers. The
// open question round ends once the answers run out.
func (s *Server) handleStartInterview(w http.ResponseWriter, r *http.Request) {
	var req startInterviewRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	sess, err := s.launcher.Start(s.baseCtx, "http", voice.NewScripted(req.Answers), launch.Hooks{})
	if err != nil {
		if errors.Is(err, session.ErrActive) {
			respondError(w, http.StatusConflict, "interview_active", err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, "start_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, sess)
}

type interviewResponse struct {
	session.Session
	Summary   string                 `json:"summary,omitempty"`
	Answers   []interview.Entry      `json:"answers,omitempty"`
	Exchanges []interview.QAExchange `json:"exchanges,omitempty"`
	Export    *export.Outcome        `json:"export,omitempty"`
}

func (s *Server) handleGetInterview(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sess, err := s.sessions.Get(id)
	if err != nil {
		respondError(w, http.StatusNotFound, "not_found", err.Error())
		return
	}
	resp := interviewResponse{Session: sess}
	if out, ok := s.launcher.Outcome(id); ok {
		res := out.Result
		resp.Summary = res.Summary
		resp.Exchanges = res.Exchanges
		if res.Record != nil {
			resp.Answers = res.Record.Entries()
		}
		if res.Export.Record != nil || res.Export.Failure != nil {
			resp.Export = &res.Export
		}
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStopListening(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.sessions.StopListening(id); err != nil {
		respondError(w, http.StatusNotFound, "not_found", err.Error())
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]any{"session_id": id, "status": "stopping"})
}

func (s *Server) handleEndInterview(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sess, err := s.sessions.End(id)
	if err != nil {
		respondError(w, http.StatusNotFound, "not_found", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, sess)
}

type transcriptResponse struct {
	SessionID string            `json:"session_id"`
	Turns     []transcript.Turn `json:"turns"`
}

func (s *Server) handleTranscript(w http.ResponseWriter, _ *http.Request) {
	id, turns := s.launcher.Transcript()
	if turns == nil {
		turns = []transcript.Turn{}
	}
	respondJSON(w, http.StatusOK, transcriptResponse{SessionID: id, Turns: turns})
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}

func writeDeadline() time.Time { return time.Now().Add(10 * time.Second) }
