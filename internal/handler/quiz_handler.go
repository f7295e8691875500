package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/mcqprep-backend/internal/model"
	"github.com/stemsi/mcqprep-backend/internal/response"
	"github.com/stemsi/mcqprep-backend/internal/service"
	"github.com/stemsi/mcqprep-backend/internal/validator"
)

// QuizHandler handles the quiz session endpoints.
type QuizHandler struct {
	sessionService *service.QuizSessionService
	log            zerolog.Logger
}

// NewQuizHandler creates a new QuizHandler.
func NewQuizHandler(sessionService *service.QuizSessionService, log zerolog.Logger) *QuizHandler {
	return &QuizHandler{
		sessionService: sessionService,
		log:            log.With().Str("component", "quiz_handler").Logger(),
	}
}

type commandResult struct {
	Changed bool                 `json:"changed"`
	Session *service.SessionView `json:"session"`
}

// StartSession godoc
// POST /api/v1/sessions
// Creates a session for {subject, year, board} and returns its ticket. An
// incomplete selection is not an error: the session reports MISSING_SELECTION.
func (h *QuizHandler) StartSession(c *gin.Context) {
	var key model.SelectionKey
	if fields := validator.BindOptional(c, &key); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	started, err := h.sessionService.Start(c.Request.Context(), key)
	if err != nil {
		log := response.Logger(c, h.log)
		log.Error().Err(err).Str("selection", key.String()).Msg("Failed to start session")
		h.fail(c, err)
		return
	}

	response.Success(c, http.StatusCreated, started)
}

// GetSession godoc
// GET /api/v1/sessions/:session_id
func (h *QuizHandler) GetSession(c *gin.Context) {
	view, err := h.sessionService.State(c.Param("session_id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, view)
}

// Reselect godoc
// PUT /api/v1/sessions/:session_id/selection
// Restarts the session for another subject, year or board.
func (h *QuizHandler) Reselect(c *gin.Context) {
	var key model.SelectionKey
	if fields := validator.BindOptional(c, &key); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	view, err := h.sessionService.Reselect(c.Request.Context(), c.Param("session_id"), key)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, view)
}

// Answer godoc
// POST /api/v1/sessions/:session_id/answer
// The first answer to a question is final; later ones report changed=false.
func (h *QuizHandler) Answer(c *gin.Context) {
	var req model.AnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	changed, view, err := h.sessionService.SelectAnswer(c.Param("session_id"), req.Option)
	h.respond(c, changed, view, err)
}

// Next godoc
// POST /api/v1/sessions/:session_id/next
func (h *QuizHandler) Next(c *gin.Context) {
	changed, view, err := h.sessionService.Next(c.Param("session_id"))
	h.respond(c, changed, view, err)
}

// GoTo godoc
// POST /api/v1/sessions/:session_id/goto
func (h *QuizHandler) GoTo(c *gin.Context) {
	var req model.GoToRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	view, err := h.sessionService.GoTo(c.Param("session_id"), *req.Index)
	h.respond(c, err == nil, view, err)
}

// Advance godoc
// POST /api/v1/sessions/:session_id/advance
// Next on every question but the last, where it submits.
func (h *QuizHandler) Advance(c *gin.Context) {
	submitted, view, err := h.sessionService.Advance(c.Param("session_id"))
	h.respond(c, submitted, view, err)
}

// Submit godoc
// POST /api/v1/sessions/:session_id/submit
func (h *QuizHandler) Submit(c *gin.Context) {
	submitted, view, err := h.sessionService.Submit(c.Param("session_id"))
	h.respond(c, submitted, view, err)
}

// CloseSession godoc
// DELETE /api/v1/sessions/:session_id
// Leaves the quiz. An unsubmitted session is discarded without a result.
func (h *QuizHandler) CloseSession(c *gin.Context) {
	if err := h.sessionService.Close(c.Param("session_id")); err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"closed": true})
}

// GetResult godoc
// GET /api/v1/sessions/:session_id/result
// Returns the review payload once the submitted session has been graded.
func (h *QuizHandler) GetResult(c *gin.Context) {
	outcome, err := h.sessionService.Result(c.Request.Context(), c.Param("session_id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, outcome)
}

func (h *QuizHandler) respond(c *gin.Context, changed bool, view *service.SessionView, err error) {
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, commandResult{Changed: changed, Session: view})
}

func (h *QuizHandler) fail(c *gin.Context, err error) {
	status, code := sessionError(err)
	if status == http.StatusInternalServerError {
		log := requestLogger(c, h.log)
		log.Error().Err(err).Str("path", c.FullPath()).Msg("Session request failed")
	}
	response.Fail(c, status, code)
}
