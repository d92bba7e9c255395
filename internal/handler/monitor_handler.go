package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/prepgen-backend/internal/config"
	"github.com/stemsi/prepgen-backend/internal/logger"
	"github.com/stemsi/prepgen-backend/internal/response"
	"github.com/stemsi/prepgen-backend/internal/service"
)

const (
	refreshInterval   = 15 * time.Second
	keepAliveInterval = 30 * time.Second
	refreshTimeout    = 5 * time.Second // keeps a slow query from stalling the SSE loop
)

// MonitorHandler streams live attempt activity for a subject over SSE.
type MonitorHandler struct {
	rdb            *redis.Client
	subjectService *service.SubjectService
	monitorService *service.MonitorService
	log            zerolog.Logger
}

func NewMonitorHandler(
	rdb *redis.Client,
	subjectService *service.SubjectService,
	monitorService *service.MonitorService,
	log zerolog.Logger,
) *MonitorHandler {
	return &MonitorHandler{
		rdb:            rdb,
		subjectService: subjectService,
		monitorService: monitorService,
		log:            logger.Component(log, "monitor_handler"),
	}
}

// GetSnapshot godoc
// GET /api/v1/admin/subjects/:id/monitor/snapshot
func (h *MonitorHandler) GetSnapshot(c *gin.Context) {
	subjectID, ok := intParam(c, "id")
	if !ok {
		return
	}
	snapshot, err := h.monitorService.Snapshot(c.Request.Context(), subjectID)
	if err != nil {
		failWithError(c, err)
		return
	}
	response.Success(c, http.StatusOK, snapshot)
}

// MonitorSubjectSSE godoc
// GET /api/v1/admin/subjects/:id/monitor
// Sends a snapshot, then forwards start/completion events as they happen with
// periodic refreshes while attempts are live.
func (h *MonitorHandler) MonitorSubjectSSE(c *gin.Context) {
	subjectID, ok := intParam(c, "id")
	if !ok {
		return
	}

	reqCtx := c.Request.Context()
	if _, err := h.subjectService.GetByID(reqCtx, subjectID); err != nil {
		failWithError(c, err)
		return
	}

	// Subscribe before the first snapshot so no event falls in between.
	pubsub := h.rdb.Subscribe(reqCtx, config.CacheKey.SubjectMonitorChannel(subjectID))
	defer pubsub.Close()
	if _, err := pubsub.Receive(reqCtx); err != nil {
		h.log.Error().Err(err).Int("subject_id", subjectID).Msg("Failed to subscribe to monitor channel")
		response.Fail(c, http.StatusServiceUnavailable, response.ErrInternal)
		return
	}
	ch := pubsub.Channel()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")

	live := h.sendSnapshot(c, reqCtx, subjectID, "snapshot")

	keepAliveTicker := time.NewTicker(keepAliveInterval)
	defer keepAliveTicker.Stop()
	refreshTicker := time.NewTicker(refreshInterval)
	defer refreshTicker.Stop()

	h.log.Info().Int("subject_id", subjectID).Msg("Admin attached to live monitor")

	for {
		select {
		case <-reqCtx.Done():
			h.log.Info().Int("subject_id", subjectID).Msg("Admin detached from live monitor")
			return

		case msg, ok := <-ch:
			if !ok {
				return
			}
			// Payloads are already JSON; forward without decoding.
			c.Render(-1, sseRaw{event: "attempt", data: msg.Payload})
			c.Writer.Flush()
			live = true

		case <-refreshTicker.C:
			if !live {
				continue
			}
			live = h.sendSnapshot(c, reqCtx, subjectID, "refresh")

		case <-keepAliveTicker.C:
			c.SSEvent("ping", gin.H{"time": time.Now().Unix()})
			c.Writer.Flush()
		}
	}
}

// sendSnapshot writes a snapshot event and reports whether any attempt is live.
// Failures are logged and treated as live so the next tick retries.
func (h *MonitorHandler) sendSnapshot(c *gin.Context, parent context.Context, subjectID int, event string) bool {
	ctx, cancel := context.WithTimeout(parent, refreshTimeout)
	defer cancel()

	snapshot, err := h.monitorService.Snapshot(ctx, subjectID)
	if err != nil {
		h.log.Warn().Err(err).Int("subject_id", subjectID).Msg("Failed to build monitor snapshot")
		return true
	}

	c.SSEvent(event, snapshot)
	c.Writer.Flush()
	return snapshot.InProgress > 0
}

// sseRaw renders a server-sent event whose data is pre-encoded JSON.
type sseRaw struct {
	event string
	data  string
}

func (r sseRaw) Render(w http.ResponseWriter) error {
	r.WriteContentType(w)
	_, err := w.Write([]byte("event:" + r.event + "\ndata:" + r.data + "\n\n"))
	return err
}

func (r sseRaw) WriteContentType(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
}
