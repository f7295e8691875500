package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/mcqprep-backend/internal/quiz"
	"github.com/stemsi/mcqprep-backend/internal/response"
	"github.com/stemsi/mcqprep-backend/internal/service"
	ws "github.com/stemsi/mcqprep-backend/internal/websocket"
)

const outboundBuffer = 16

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams a quiz session over a WebSocket and accepts the same
// commands as the REST endpoints.
type WSHandler struct {
	sessionService *service.QuizSessionService
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(sessionService *service.QuizSessionService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		sessionService: sessionService,
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
	}
}

// SessionStream godoc
// WS /ws/v1/sessions/:session_id/stream
// Pushes state, tick, submitted, graded and closed events. Commands that
// change the session are answered through the event stream; commands that
// change nothing get a state reply with changed=false.
func (h *WSHandler) SessionStream(c *gin.Context) {
	sessionID := c.Param("session_id")

	events, cancel, err := h.sessionService.Subscribe(sessionID)
	if err != nil {
		status, code := sessionError(err)
		response.Fail(c, status, code)
		return
	}
	defer cancel()

	initial, err := h.sessionService.State(sessionID)
	if err != nil {
		status, code := sessionError(err)
		response.Fail(c, status, code)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wsLog := requestLogger(c, h.log)
	wsLog.Info().Msg("Client connected")

	out := make(chan interface{}, outboundBuffer)
	readerDone := make(chan struct{})
	writerDone := make(chan struct{})
	defer close(readerDone)

	go h.writeLoop(conn, wsLog, out, events, readerDone, writerDone)

	send := func(v interface{}) {
		select {
		case out <- v:
		case <-writerDone:
		}
	}

	send(stateResponse(true, initial))

	ws.PrepareRead(conn)
	for {
		var msg ws.Request
		if err := ws.ReadJSON(conn, &msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}

		if reply := h.handleAction(sessionID, &msg); reply != nil {
			send(reply)
		}
	}
}

// writeLoop is the only goroutine that writes to conn.
func (h *WSHandler) writeLoop(
	conn *websocket.Conn,
	log zerolog.Logger,
	out <-chan interface{},
	events <-chan service.SessionEvent,
	readerDone <-chan struct{},
	writerDone chan<- struct{},
) {
	defer close(writerDone)

	for {
		var msg interface{}
		select {
		case <-readerDone:
			return
		case msg = <-out:
		case ev, ok := <-events:
			if !ok {
				_ = ws.WriteClose(conn, "session ended")
				conn.Close()
				return
			}
			msg = eventMessage(ev)
		}

		if err := ws.WriteTyped(conn, msg); err != nil {
			log.Debug().Err(err).Msg("Write failed")
			conn.Close()
			return
		}
	}
}

// handleAction runs one client command and returns the direct reply, if any.
func (h *WSHandler) handleAction(sessionID string, msg *ws.Request) interface{} {
	var (
		changed bool
		view    *service.SessionView
		err     error
	)

	switch msg.Action {
	case ws.ActionPing:
		return ws.PongResponse{Event: ws.EventPong}
	case ws.ActionAnswer:
		if msg.Option == "" {
			return ws.NewError(string(response.ErrValidation), "option is required")
		}
		changed, view, err = h.sessionService.SelectAnswer(sessionID, msg.Option)
	case ws.ActionNext:
		changed, view, err = h.sessionService.Next(sessionID)
	case ws.ActionGoTo:
		if msg.Index == nil {
			return ws.NewError(string(response.ErrValidation), "index is required")
		}
		view, err = h.sessionService.GoTo(sessionID, *msg.Index)
		changed = err == nil
	case ws.ActionAdvance:
		// Advance either navigates or submits, so it always changes the session.
		_, view, err = h.sessionService.Advance(sessionID)
		changed = err == nil
	case ws.ActionSubmit:
		changed, view, err = h.sessionService.Submit(sessionID)
	default:
		h.log.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
		return ws.NewError(string(response.ErrInvalidPayload), "unknown action: "+string(msg.Action))
	}

	if err != nil {
		_, code := sessionError(err)
		return ws.NewError(string(code), response.GetMessage(code))
	}
	if changed {
		return nil
	}
	return stateResponse(false, view)
}

func stateResponse(changed bool, view *service.SessionView) ws.StateResponse {
	return ws.StateResponse{Event: ws.EventState, Changed: changed, State: view.State, View: view.View}
}

// eventMessage translates a session event into its wire form.
func eventMessage(ev service.SessionEvent) interface{} {
	switch ev.Kind {
	case quiz.EventTick:
		return ws.TickResponse{
			Event:         ws.EventTick,
			Seq:           ev.Seq,
			TimeRemaining: ev.State.TimeRemaining,
			Clock:         quiz.FormatClock(ev.State.TimeRemaining),
		}
	case quiz.EventSubmitted:
		return ws.SubmittedResponse{Event: ws.EventSubmitted, Trigger: ev.State.Trigger}
	case service.EventGraded:
		return ws.GradedResponse{Event: ws.EventGraded, Outcome: *ev.Outcome}
	case quiz.EventClosed:
		return ws.ClosedResponse{Event: ws.EventClosed}
	default:
		return ws.StateResponse{Event: ws.EventState, Seq: ev.Seq, Changed: true, State: ev.State, View: quiz.Project(ev.State)}
	}
}
