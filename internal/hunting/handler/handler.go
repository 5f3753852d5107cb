// Package handler exposes the hunting HTTP endpoints.
package handler

import (
	"net/http"
	"strconv"

	"leadhunt_backend/internal/hunting/service"
	"leadhunt_backend/internal/hunting/transport"
	"leadhunt_backend/platform/httpkit"
	"leadhunt_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"

	defaultListLimit = 50
	maxListLimit     = 200
)

type Handler struct {
	leads    *service.Service
	sessions *service.SessionService
	val      *validator.Validator
}

func New(leads *service.Service, sessions *service.SessionService, val *validator.Validator) *Handler {
	return &Handler{leads: leads, sessions: sessions, val: val}
}

func (h *Handler) RegisterLeadRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.GET("/:id", h.GetByID)
	rg.POST("/:id/approve", h.Approve)
	rg.POST("/:id/reject", h.Reject)
	rg.PUT("/:id/dm", h.SetDM)
	rg.POST("/:id/send", h.SendOutreach)
	rg.GET("/:id/conversation", h.Conversation)
	rg.POST("/:id/messages", h.SendMessage)
}

func (h *Handler) RegisterSessionRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.GetSession)
	rg.PUT("", h.UpdateSession)
	rg.POST("/pause", h.PauseSession)
	rg.POST("/resume", h.ResumeSession)
	rg.POST("/hunt", h.HuntNow)
}

func (h *Handler) List(c *gin.Context) {
	tenantID, ok := httpkit.MustTenantID(c)
	if !ok {
		return
	}

	limit := defaultListLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > maxListLimit {
			httpkit.Error(c, http.StatusBadRequest, "limit must be 1-"+strconv.Itoa(maxListLimit), nil)
			return
		}
		limit = parsed
	}

	leads, err := h.leads.List(c.Request.Context(), tenantID, c.Query("status"), limit)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToLeadResponses(leads))
}

func (h *Handler) GetByID(c *gin.Context) {
	tenantID, leadID, ok := h.leadScope(c)
	if !ok {
		return
	}

	lead, err := h.leads.Get(c.Request.Context(), tenantID, leadID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToLeadResponse(lead))
}

func (h *Handler) Approve(c *gin.Context) {
	tenantID, leadID, ok := h.leadScope(c)
	if !ok {
		return
	}

	lead, err := h.leads.Approve(c.Request.Context(), tenantID, leadID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToLeadResponse(lead))
}

func (h *Handler) Reject(c *gin.Context) {
	tenantID, leadID, ok := h.leadScope(c)
	if !ok {
		return
	}

	lead, err := h.leads.Reject(c.Request.Context(), tenantID, leadID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToLeadResponse(lead))
}

func (h *Handler) SetDM(c *gin.Context) {
	tenantID, leadID, ok := h.leadScope(c)
	if !ok {
		return
	}

	var req transport.SetDMRequest
	if !h.bind(c, &req) {
		return
	}

	lead, err := h.leads.SetDM(c.Request.Context(), tenantID, leadID, req.Message)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToLeadResponse(lead))
}

func (h *Handler) SendOutreach(c *gin.Context) {
	tenantID, leadID, ok := h.leadScope(c)
	if !ok {
		return
	}

	var req transport.SendOutreachRequest
	if !h.bind(c, &req) {
		return
	}

	lead, partial, err := h.leads.SendOutreach(c.Request.Context(), tenantID, leadID, req.CommentText)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.SendOutreachResponse{
		Lead:           transport.ToLeadResponse(lead),
		PartialFailure: partial,
	})
}

func (h *Handler) Conversation(c *gin.Context) {
	tenantID, leadID, ok := h.leadScope(c)
	if !ok {
		return
	}

	conv, msgs, err := h.leads.Conversation(c.Request.Context(), tenantID, leadID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToConversationResponse(conv, msgs))
}

func (h *Handler) SendMessage(c *gin.Context) {
	tenantID, leadID, ok := h.leadScope(c)
	if !ok {
		return
	}

	var req transport.SendMessageRequest
	if !h.bind(c, &req) {
		return
	}

	msg, err := h.leads.SendMessage(c.Request.Context(), tenantID, leadID, req.Body)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.Created(c, transport.MessageResponse{
		ID:             msg.ID,
		IsFromUser:     msg.IsFromUser,
		Body:           msg.Body,
		DeliveryStatus: msg.DeliveryStatus,
		SentAt:         msg.SentAt,
	})
}

func (h *Handler) GetSession(c *gin.Context) {
	tenantID, ok := httpkit.MustTenantID(c)
	if !ok {
		return
	}

	session, err := h.sessions.Get(c.Request.Context(), tenantID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToSessionResponse(session))
}

func (h *Handler) UpdateSession(c *gin.Context) {
	tenantID, ok := httpkit.MustTenantID(c)
	if !ok {
		return
	}

	var req transport.UpdateSessionRequest
	if !h.bind(c, &req) {
		return
	}

	session, err := h.sessions.Update(c.Request.Context(), tenantID, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToSessionResponse(session))
}

func (h *Handler) PauseSession(c *gin.Context) {
	tenantID, ok := httpkit.MustTenantID(c)
	if !ok {
		return
	}

	session, err := h.sessions.Pause(c.Request.Context(), tenantID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToSessionResponse(session))
}

func (h *Handler) ResumeSession(c *gin.Context) {
	tenantID, ok := httpkit.MustTenantID(c)
	if !ok {
		return
	}

	session, err := h.sessions.Resume(c.Request.Context(), tenantID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToSessionResponse(session))
}

func (h *Handler) HuntNow(c *gin.Context) {
	tenantID, ok := httpkit.MustTenantID(c)
	if !ok {
		return
	}

	if httpkit.HandleError(c, h.sessions.HuntNow(c.Request.Context(), tenantID)) {
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "queued"})
}

func (h *Handler) leadScope(c *gin.Context) (tenantID, leadID uuid.UUID, ok bool) {
	tenantID, ok = httpkit.MustTenantID(c)
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	leadID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return uuid.Nil, uuid.Nil, false
	}
	return tenantID, leadID, true
}

func (h *Handler) bind(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return false
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return false
	}
	return true
}
