package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/ent0n29/screener/internal/interview"
	"github.com/ent0n29/screener/internal/launch"
	"github.com/ent0n29/screener/internal/protocol"
	"github.com/ent0n29/screener/internal/session"
	"github.com/ent0n29/screener/internal/voice"
)

// enterPressed is echoed to the client when it ends its turn.
const enterPressed = "⏎ Enter pressed"

// wsConn is one browser connection. At most one interview runs per
// connection; the session slot keeps it to one per process.
type wsConn struct {
	srv      *Server
	ctx      context.Context
	outbound chan any

	mu        sync.Mutex
	port      *voice.Port
	sessionID string
	running   bool
	audioSeq  int
}

func (s *Server) handleInterviewWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	s.countEvent("ws_connected")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	c := &wsConn{srv: s, ctx: ctx, outbound: make(chan any, 256)}

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			select {
			case <-ctx.Done():
				return
			case msg := <-c.outbound:
				_ = conn.SetWriteDeadline(writeDeadline())
				if err := conn.WriteJSON(msg); err != nil {
					cancel()
					return
				}
				if t, ok := messageTypeOf(msg); ok {
					s.countMessage("outbound", t)
				}
			}
		}
	}()

	conn.SetReadLimit(2 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
		return nil
	})

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
		if msgType != websocket.TextMessage {
			continue
		}
		parsed, err := protocol.ParseClientMessage(data)
		if err != nil {
			c.send(protocol.ErrorEvent{
				Type:   protocol.TypeErrorEvent,
				Code:   "invalid_client_message",
				Detail: err.Error(),
			})
			continue
		}
		if t, ok := messageTypeOf(parsed); ok {
			s.countMessage("inbound", t)
		}
		c.handle(parsed)
	}

	// A dropped connection cancels the interview; the summary and export
	// still run.
	cancel()
	<-writerDone
	s.countEvent("ws_disconnected")
}

func (c *wsConn) handle(msg any) {
	switch m := msg.(type) {
	case protocol.ClientAudioChunk:
		c.mu.Lock()
		port := c.port
		c.mu.Unlock()
		if port != nil {
			// chunks between listens are dropped
			_ = port.PushAudio(c.ctx, m.PCM16Base64, m.SampleRate)
		}
	case protocol.ClientControl:
		switch m.Action {
		case protocol.ActionStartInterview:
			c.start()
		case protocol.ActionUserEndTurn:
			id := c.currentID()
			c.send(protocol.UserSpeaking{Type: protocol.TypeUserSpeaking, SessionID: id, Text: enterPressed})
			if id != "" {
				_ = c.srv.sessions.StopListening(id)
			}
		case protocol.ActionEndCall:
			if id := c.currentID(); id != "" {
				_, _ = c.srv.sessions.End(id)
			}
		}
	}
}

func (c *wsConn) start() {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		c.send(protocol.ErrorEvent{
			Type:   protocol.TypeErrorEvent,
			Code:   "interview_active",
			Detail: "an interview is already running on this connection",
		})
		return
	}
	c.running = true
	port := c.srv.newPort(uuid.NewString())
	port.SetAudioSink(c)
	c.port = port
	c.mu.Unlock()

	speech := voice.Observed(port, func(text string) {
		c.send(protocol.BotSpeaking{Type: protocol.TypeBotSpeaking, SessionID: c.currentID(), Text: text})
	})
	sess, err := c.srv.launcher.Start(c.ctx, "ws", speech, launch.Hooks{
		OnState: func(id string, st interview.State) {
			c.setID(id)
			c.send(protocol.InterviewState{Type: protocol.TypeInterviewState, SessionID: id, State: st.String()})
		},
		OnFinish: c.finished,
	})
	if err != nil {
		c.mu.Lock()
		c.running = false
		c.port = nil
		c.mu.Unlock()
		code := "start_failed"
		if errors.Is(err, session.ErrActive) {
			code = "interview_active"
		}
		c.send(protocol.ErrorEvent{Type: protocol.TypeErrorEvent, Code: code, Detail: err.Error()})
		return
	}
	c.setID(sess.ID)
}

func (c *wsConn) finished(id string, res interview.Result, err error) {
	if err != nil {
		c.send(protocol.ErrorEvent{
			Type:      protocol.TypeErrorEvent,
			SessionID: id,
			Code:      "interview_failed",
			Retryable: errors.Is(err, interview.ErrJudgeUnavailable),
			Detail:    err.Error(),
		})
	}
	finished := protocol.InterviewFinished{
		Type:      protocol.TypeInterviewFinished,
		SessionID: id,
		Summary:   res.Summary,
		Cancelled: res.Cancelled,
	}
	if res.Export.Record != nil || res.Export.Failure != nil {
		if raw, merr := json.Marshal(res.Export); merr == nil {
			finished.Export = raw
		}
	}
	c.send(finished)

	reason := "completed"
	switch {
	case err != nil:
		reason = "failed"
	case res.Cancelled:
		reason = "ended"
	}
	c.send(protocol.CallEnded{Type: protocol.TypeCallEnded, SessionID: id, Reason: reason})

	c.mu.Lock()
	c.running = false
	c.port = nil
	c.mu.Unlock()
}

// SendAudio forwards synthesized speech to the browser.
func (c *wsConn) SendAudio(ctx context.Context, audioBase64, format string) error {
	c.mu.Lock()
	c.audioSeq++
	seq := c.audioSeq
	id := c.sessionID
	c.mu.Unlock()
	msg := protocol.AssistantAudioChunk{
		Type:        protocol.TypeAssistantAudio,
		SessionID:   id,
		Seq:         seq,
		Format:      format,
		AudioBase64: audioBase64,
	}
	select {
	case c.outbound <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.ctx.Done():
		return c.ctx.Err()
	}
}

// send queues msg unless the connection is gone or the queue is full.
func (c *wsConn) send(msg any) {
	if c.ctx.Err() != nil {
		return
	}
	select {
	case c.outbound <- msg:
	default:
		if t, ok := messageTypeOf(msg); ok {
			c.srv.countMessage("dropped", t)
		}
	}
}

func (c *wsConn) setID(id string) {
	c.mu.Lock()
	c.sessionID = id
	c.mu.Unlock()
}

func (c *wsConn) currentID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

func (s *Server) countEvent(event string) {
	if s.metrics != nil {
		s.metrics.SessionEvents.WithLabelValues(event).Inc()
	}
}

func (s *Server) countMessage(direction string, t protocol.MessageType) {
	if s.metrics != nil {
		s.metrics.WSMessages.WithLabelValues(direction, string(t)).Inc()
	}
}

func messageTypeOf(v any) (protocol.MessageType, bool) {
	switch m := v.(type) {
	case protocol.ClientAudioChunk:
		return m.Type, true
	case protocol.ClientControl:
		return m.Type, true
	case protocol.BotSpeaking:
		return m.Type, true
	case protocol.UserSpeaking:
		return m.Type, true
	case protocol.AssistantAudioChunk:
		return m.Type, true
	case protocol.InterviewState:
		return m.Type, true
	case protocol.InterviewFinished:
		return m.Type, true
	case protocol.CallEnded:
		return m.Type, true
	case protocol.ErrorEvent:
		return m.Type, true
	default:
		return "", false
	}
}
