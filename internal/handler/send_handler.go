package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"mailwatch/internal/services"
	"mailwatch/internal/transport/httpdto"
)

type SendHandler struct {
	send *services.SendService
}

func NewSendHandler(send *services.SendService) *SendHandler {
	return &SendHandler{send: send}
}

func (h *SendHandler) Send(c *gin.Context) {
	var req httpdto.SendEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}

	in := services.SendInput{
		To:               req.To,
		Subject:          req.Subject,
		Body:             req.Body,
		Headers:          req.Headers,
		ConfigurationSet: req.ConfigurationSet,
	}
	if req.TemplateID != "" {
		id, err := uuid.Parse(req.TemplateID)
		if err != nil {
			c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid template_id", "INVALID_REQUEST"))
			return
		}
		in.TemplateID = uuid.NullUUID{UUID: id, Valid: true}
	}
	if req.CampaignID != "" {
		id, err := uuid.Parse(req.CampaignID)
		if err != nil {
			c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid campaign_id", "INVALID_REQUEST"))
			return
		}
		in.CampaignID = uuid.NullUUID{UUID: id, Valid: true}
	}

	l, err := h.send.Send(c.Request.Context(), in)
	if err != nil {
		c.JSON(http.StatusBadGateway, httpdto.NewErrorResponse(err.Error(), "SEND_FAILED"))
		return
	}

	resp := httpdto.SendEmailResponse{Sent: true}
	if l != nil {
		resp.Logged = true
		resp.TrackingID = l.TrackingID
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(resp))
}
