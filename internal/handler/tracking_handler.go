package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"mailwatch/internal/domain/emaillog"
	"mailwatch/internal/repository"
	"mailwatch/internal/services"
	"mailwatch/internal/transport/httpdto"
	mailwatch_errors "mailwatch/pkg/errors"
)

type TrackingHandler struct {
	tracking *services.TrackingService
	sync     *services.SyncService
	worker   *services.PollingWorker
	logRepo  repository.LogRepository
	events   repository.EventRepository
}

func NewTrackingHandler(tracking *services.TrackingService, sync *services.SyncService, worker *services.PollingWorker, logRepo repository.LogRepository, events repository.EventRepository) *TrackingHandler {
	return &TrackingHandler{
		tracking: tracking,
		sync:     sync,
		worker:   worker,
		logRepo:  logRepo,
		events:   events,
	}
}

// Webhook ingests one pushed provider notification.
func (h *TrackingHandler) Webhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil || len(body) == 0 {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("empty body", "INVALID_REQUEST"))
		return
	}

	evt, err := h.tracking.ProcessNotification(c.Request.Context(), body)
	if err != nil {
		switch {
		case errors.Is(err, mailwatch_errors.ErrParse), errors.Is(err, mailwatch_errors.ErrMessageIDNotFound):
			c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse(err.Error(), "INVALID_PAYLOAD"))
		case errors.Is(err, mailwatch_errors.ErrLogNotFound):
			// The email was never logged (sampled out); acknowledged so the
			// provider does not retry.
			c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.WebhookAccepted{}))
		default:
			c.JSON(http.StatusInternalServerError, httpdto.NewErrorResponse(err.Error(), "REQUEST_FAILED"))
		}
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.WebhookAccepted{
		EventID:   evt.ID.String(),
		EventType: string(evt.EventType),
	}))
}

// ManualSync searches both queues for events carrying one identifier.
func (h *TrackingHandler) ManualSync(c *gin.Context) {
	messageID := c.Param("id")
	if messageID == "" {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("message id is required", "INVALID_REQUEST"))
		return
	}

	result, err := h.sync.ManualSync(c.Request.Context(), messageID)
	if err != nil {
		if errors.Is(err, mailwatch_errors.ErrConfiguration) {
			c.JSON(http.StatusConflict, httpdto.NewErrorResponse(err.Error(), "CONFIGURATION_ERROR"))
			return
		}
		c.JSON(http.StatusBadGateway, httpdto.NewErrorResponse(err.Error(), "TRANSPORT_ERROR"))
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(result))
}

func (h *TrackingHandler) ListLogs(c *gin.Context) {
	filter := repository.ListFilter{
		Status:    c.Query("status"),
		Recipient: c.Query("recipient"),
		Page:      parseIntDefault(c.Query("page"), 1),
		Limit:     parseIntDefault(c.Query("limit"), 50),
	}

	logs, total, err := h.logRepo.List(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, httpdto.NewErrorResponse(err.Error(), "REQUEST_FAILED"))
		return
	}

	resp := httpdto.EmailLogListResponse{
		Logs:  make([]httpdto.EmailLogResponse, 0, len(logs)),
		Total: total,
		Page:  filter.Page,
		Limit: filter.Limit,
	}
	for _, l := range logs {
		resp.Logs = append(resp.Logs, toLogResponse(l))
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(resp))
}

func (h *TrackingHandler) ListLogEvents(c *gin.Context) {
	logID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid log id", "INVALID_REQUEST"))
		return
	}

	events, err := h.events.ListByLog(c.Request.Context(), logID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, httpdto.NewErrorResponse(err.Error(), "REQUEST_FAILED"))
		return
	}

	resp := make([]httpdto.EmailEventResponse, 0, len(events))
	for _, e := range events {
		resp = append(resp, toEventResponse(e))
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(resp))
}

func (h *TrackingHandler) WorkerStatus(c *gin.Context) {
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(h.worker.Status(c.Request.Context())))
}

func (h *TrackingHandler) PauseWorker(c *gin.Context) {
	h.worker.Pause()
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(h.worker.Status(c.Request.Context())))
}

func (h *TrackingHandler) ResumeWorker(c *gin.Context) {
	h.worker.Resume()
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(h.worker.Status(c.Request.Context())))
}

func toLogResponse(l emaillog.EmailLog) httpdto.EmailLogResponse {
	resp := httpdto.EmailLogResponse{
		ID:         l.ID.String(),
		TrackingID: l.TrackingID,
		Recipient:  l.Recipient,
		Sender:     l.Sender,
		Subject:    l.Subject,
		Status:     string(l.Status),
		SentAt:     l.SentAt,
	}
	if l.ProviderMessageID.Valid {
		resp.ProviderMessageID = l.ProviderMessageID.String
	}
	if l.DeliveredAt.Valid {
		resp.DeliveredAt = &l.DeliveredAt.Time
	}
	if l.OpenedAt.Valid {
		resp.OpenedAt = &l.OpenedAt.Time
	}
	if l.ClickedAt.Valid {
		resp.ClickedAt = &l.ClickedAt.Time
	}
	if l.BounceType.Valid {
		resp.BounceType = l.BounceType.String
	}
	return resp
}

func toEventResponse(e emaillog.EmailEvent) httpdto.EmailEventResponse {
	resp := httpdto.EmailEventResponse{
		ID:         e.ID.String(),
		MessageID:  e.MessageID,
		EventType:  string(e.EventType),
		OccurredAt: e.OccurredAt,
	}
	if e.Country.Valid {
		resp.Country = e.Country.String
	}
	if e.Region.Valid {
		resp.Region = e.Region.String
	}
	if e.LinkURL.Valid {
		resp.LinkURL = e.LinkURL.String
	}
	if e.BounceSubtype.Valid {
		resp.BounceSubtype = e.BounceSubtype.String
	}
	return resp
}

func parseIntDefault(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}
