package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/prepgen-backend/internal/apperror"
	"github.com/stemsi/prepgen-backend/internal/config"
	"github.com/stemsi/prepgen-backend/internal/logger"
	"github.com/stemsi/prepgen-backend/internal/middleware"
	"github.com/stemsi/prepgen-backend/internal/model"
	"github.com/stemsi/prepgen-backend/internal/response"
	"github.com/stemsi/prepgen-backend/internal/service"
	ws "github.com/stemsi/prepgen-backend/internal/websocket"
)

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

// WSHandler streams an in-progress attempt: autosave, submit and completion events.
type WSHandler struct {
	rdb            *redis.Client
	paperService   *service.PaperService
	attemptService *service.AttemptService
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(
	rdb *redis.Client,
	paperService *service.PaperService,
	attemptService *service.AttemptService,
	log zerolog.Logger,
	allowedOrigins []string,
) *WSHandler {
	return &WSHandler{
		rdb:            rdb,
		paperService:   paperService,
		attemptService: attemptService,
		log:            logger.Component(log, "ws_handler"),
		upgrader:       buildUpgrader(allowedOrigins),
	}
}

// attemptStream is the state of one connection.
type attemptStream struct {
	conn      *ws.Conn
	attemptID uuid.UUID
	studentID int
	log       zerolog.Logger
	done      sync.Once
}

// finish sends the completion event once and closes the connection.
func (s *attemptStream) finish(resp ws.CompletedResponse) {
	s.done.Do(func() {
		if err := s.conn.WriteTyped(resp); err != nil {
			s.log.Debug().Err(err).Msg("Completion write failed")
		}
		s.conn.CloseNormal("attempt completed")
	})
}

// AttemptStream godoc
// WS /ws/v1/student/attempts/:attempt_id/stream?token=
// Upgrades to WebSocket for autosave and submission. The attempt must be in
// progress and owned by the caller; otherwise the request fails before upgrade.
func (h *WSHandler) AttemptStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	attemptID, ok := uuidParam(c, "attempt_id")
	if !ok {
		return
	}

	if _, err := h.paperService.OpenPaper(c.Request.Context(), attemptID, claims.UserID); err != nil {
		failWithError(c, err)
		return
	}

	raw, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	conn := ws.NewConn(raw)
	defer conn.Close()

	// The request context ends with the handler; the subscription outlives the upgrade.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream := &attemptStream{
		conn:      conn,
		attemptID: attemptID,
		studentID: claims.UserID,
		log: h.log.With().
			Int("student_id", claims.UserID).
			Str("attempt_id", attemptID.String()).
			Logger(),
	}

	sub := h.rdb.Subscribe(ctx, config.CacheKey.AttemptEventsChannel(attemptID.String()))
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		stream.log.Error().Err(err).Msg("Subscribe to attempt events failed")
		_ = conn.WriteError(string(response.ErrInternal), "event subscription failed")
		return
	}
	go h.forwardEvents(stream, sub.Channel())

	stream.log.Info().Msg("Student connected")

	for {
		var msg ws.RequestPayload
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				stream.log.Warn().Err(err).Msg("Unexpected close")
			} else {
				stream.log.Debug().Msg("Connection closed")
			}
			return
		}

		switch msg.Action {
		case ws.ActionAutosave:
			h.handleAutosave(ctx, stream, &msg)
		case ws.ActionSubmit:
			if h.handleSubmit(ctx, stream, &msg) {
				return
			}
		case ws.ActionPing:
			_ = conn.WriteTyped(ws.PongResponse{Event: ws.EventPong})
		default:
			stream.log.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
			_ = conn.WriteError(string(response.ErrInvalidPayload), "unknown action: "+string(msg.Action))
		}
	}
}

// forwardEvents relays completion published by any instance, then ends the stream.
func (h *WSHandler) forwardEvents(stream *attemptStream, events <-chan *redis.Message) {
	for msg := range events {
		var event model.AttemptEvent
		if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
			stream.log.Warn().Err(err).Msg("Malformed attempt event")
			continue
		}
		if event.Type == model.AttemptEventCompleted {
			stream.finish(ws.CompletedFromEvent(event))
			return
		}
	}
}

func (h *WSHandler) handleAutosave(ctx context.Context, stream *attemptStream, msg *ws.RequestPayload) {
	questionID, err := uuid.Parse(msg.QuestionID)
	if err != nil {
		_ = stream.conn.WriteError(string(response.ErrInvalidID), "question_id must be a UUID")
		return
	}
	option := strings.ToUpper(strings.TrimSpace(msg.Option))
	if !slices.Contains(model.OptionLabels, option) {
		_ = stream.conn.WriteError(string(response.ErrValidation), "option must be one of A, B, C, D")
		return
	}

	if err := h.attemptService.Autosave(ctx, stream.attemptID, stream.studentID, questionID, option); err != nil {
		h.writeServiceError(stream, err)
		return
	}
	_ = stream.conn.WriteTyped(ws.SavedResponse{Event: ws.EventSaved, QuestionID: questionID.String()})
}

// handleSubmit scores the attempt and reports whether the stream is finished.
func (h *WSHandler) handleSubmit(ctx context.Context, stream *attemptStream, msg *ws.RequestPayload) bool {
	detail, err := h.attemptService.Submit(ctx, stream.attemptID, stream.studentID, msg.Answers)
	if err != nil {
		h.writeServiceError(stream, err)
		return errors.Is(err, apperror.ErrState)
	}
	stream.finish(ws.CompletedFromAttempt(&detail.Attempt))
	return true
}

func (h *WSHandler) writeServiceError(stream *attemptStream, err error) {
	code := wsErrorCode(err)
	if code == response.ErrInternal {
		stream.log.Error().Err(err).Msg("Attempt stream action failed")
		_ = stream.conn.WriteError(string(code), response.GetMessage(code))
		return
	}
	_ = stream.conn.WriteError(string(code), err.Error())
}

// wsErrorCode maps service errors onto the same codes the REST API uses.
func wsErrorCode(err error) response.ErrCode {
	switch {
	case errors.Is(err, service.ErrAttemptExpired):
		return response.ErrAttemptExpired
	case errors.Is(err, service.ErrNotOwner):
		return response.ErrForbidden
	case errors.Is(err, apperror.ErrConfig):
		return response.ErrInvalidConfig
	case errors.Is(err, apperror.ErrState):
		return response.ErrInvalidState
	case errors.Is(err, apperror.ErrNotFound):
		return response.ErrNotFound
	default:
		return response.ErrInternal
	}
}
