package notification

import (
	"net/http"
	"strconv"
	"time"

	"leadhunt_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.GET("/unread-count", h.UnreadCount)
	rg.POST("/:id/read", h.MarkRead)
	rg.POST("/read-all", h.MarkAllRead)
}

type notificationResponse struct {
	ID           uuid.UUID  `json:"id"`
	Title        string     `json:"title"`
	Content      string     `json:"content"`
	Category     string     `json:"category"`
	ResourceID   *uuid.UUID `json:"resourceId,omitempty"`
	ResourceType *string    `json:"resourceType,omitempty"`
	IsRead       bool       `json:"isRead"`
	CreatedAt    time.Time  `json:"createdAt"`
}

func toNotificationResponse(n Notification) notificationResponse {
	return notificationResponse{
		ID:           n.ID,
		Title:        n.Title,
		Content:      n.Content,
		Category:     n.Category,
		ResourceID:   n.ResourceID,
		ResourceType: n.ResourceType,
		IsRead:       n.IsRead,
		CreatedAt:    n.CreatedAt,
	}
}

func (h *Handler) List(c *gin.Context) {
	tenantID, ok := httpkit.MustTenantID(c)
	if !ok {
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("pageSize", "20"))

	items, total, err := h.svc.List(c.Request.Context(), tenantID, page, pageSize)
	if httpkit.HandleError(c, err) {
		return
	}

	out := make([]notificationResponse, 0, len(items))
	for _, n := range items {
		out = append(out, toNotificationResponse(n))
	}
	httpkit.OK(c, gin.H{"notifications": out, "total": total})
}

func (h *Handler) UnreadCount(c *gin.Context) {
	tenantID, ok := httpkit.MustTenantID(c)
	if !ok {
		return
	}

	count, err := h.svc.UnreadCount(c.Request.Context(), tenantID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"unreadCount": count})
}

func (h *Handler) MarkRead(c *gin.Context) {
	tenantID, ok := httpkit.MustTenantID(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid notification id", nil)
		return
	}

	if httpkit.HandleError(c, h.svc.MarkRead(c.Request.Context(), tenantID, id)) {
		return
	}
	httpkit.OK(c, gin.H{"status": "read"})
}

func (h *Handler) MarkAllRead(c *gin.Context) {
	tenantID, ok := httpkit.MustTenantID(c)
	if !ok {
		return
	}

	if httpkit.HandleError(c, h.svc.MarkAllRead(c.Request.Context(), tenantID)) {
		return
	}
	httpkit.OK(c, gin.H{"status": "read"})
}
