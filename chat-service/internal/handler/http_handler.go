package handler

import (
	"context"
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/dananaoo/bazarlink/chat-service/internal/assignment"
	"github.com/dananaoo/bazarlink/chat-service/internal/authz"
	"github.com/dananaoo/bazarlink/chat-service/internal/domain"
	"github.com/dananaoo/bazarlink/chat-service/internal/service"
	"github.com/dananaoo/bazarlink/pkg/log"
	"github.com/dananaoo/bazarlink/pkg/middleware"
	"github.com/dananaoo/bazarlink/pkg/response"
)

const defaultListLimit = 50

type HTTPHandler struct {
	history     service.HistoryService
	assignments *assignment.Manager
}

func NewHTTPHandler(history service.HistoryService, assignments *assignment.Manager) *HTTPHandler {
	return &HTTPHandler{history: history, assignments: assignments}
}

// RegisterRoutes mounts the chat API behind auth.
func (h *HTTPHandler) RegisterRoutes(r gin.IRouter, auth *middleware.AuthMiddleware) {
	api := r.Group("", auth.RequireAuth())
	{
		api.GET("/links/:link_id/messages", h.GetHistory)
		api.POST("/links/:link_id/assign", h.Assign)
		api.POST("/links/:link_id/unassign", h.Unassign)
		api.PUT("/messages/:message_id/read", h.MarkRead)
		api.GET("/chats/my", h.ListMine)
		api.GET("/chats/other", h.ListOthers)
		api.GET("/chats/consumer", h.ListForConsumer)
	}
}

// GetHistory handles GET /links/:link_id/messages
func (h *HTTPHandler) GetHistory(c *gin.Context) {
	caller, ok := identity(c)
	if !ok {
		return
	}
	linkID, ok := pathID(c, "link_id")
	if !ok {
		return
	}

	var req domain.HistoryRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, "invalid query parameters")
		return
	}

	messages, err := h.history.History(c.Request.Context(), caller, linkID, req.Skip, req.Limit)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, gin.H{"messages": messages})
}

// MarkRead handles PUT /messages/:message_id/read
func (h *HTTPHandler) MarkRead(c *gin.Context) {
	caller, ok := identity(c)
	if !ok {
		return
	}
	messageID, ok := pathID(c, "message_id")
	if !ok {
		return
	}

	msg, err := h.history.MarkMessageRead(c.Request.Context(), caller, messageID)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, msg)
}

// Assign handles POST /links/:link_id/assign
func (h *HTTPHandler) Assign(c *gin.Context) {
	caller, ok := identity(c)
	if !ok {
		return
	}
	linkID, ok := pathID(c, "link_id")
	if !ok {
		return
	}

	link, err := h.assignments.Claim(c.Request.Context(), linkID, caller)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, link)
}

// Unassign handles POST /links/:link_id/unassign
func (h *HTTPHandler) Unassign(c *gin.Context) {
	caller, ok := identity(c)
	if !ok {
		return
	}
	linkID, ok := pathID(c, "link_id")
	if !ok {
		return
	}

	link, err := h.assignments.Unclaim(c.Request.Context(), linkID, caller)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, link)
}

func (h *HTTPHandler) ListMine(c *gin.Context) {
	h.list(c, h.assignments.ListMine)
}

func (h *HTTPHandler) ListOthers(c *gin.Context) {
	h.list(c, h.assignments.ListOthers)
}

func (h *HTTPHandler) ListForConsumer(c *gin.Context) {
	h.list(c, h.assignments.ListForConsumer)
}

func (h *HTTPHandler) list(c *gin.Context, fetch func(context.Context, domain.Identity, int, int) ([]domain.Link, error)) {
	caller, ok := identity(c)
	if !ok {
		return
	}

	var req domain.ListLinksRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, "invalid query parameters")
		return
	}
	if req.Skip < 0 {
		req.Skip = 0
	}
	if req.Limit <= 0 || req.Limit > defaultListLimit {
		req.Limit = defaultListLimit
	}

	links, err := fetch(c.Request.Context(), caller, req.Skip, req.Limit)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, gin.H{"links": links})
}

func identity(c *gin.Context) (domain.Identity, bool) {
	id, ok := authz.IdentityFrom(middleware.GetSubject(c))
	if !ok {
		response.Unauthorized(c, "missing credentials")
	}
	return id, ok
}

func pathID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		response.BadRequest(c, "invalid "+name)
		return 0, false
	}
	return uint(id), true
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, domain.ErrAuthentication):
		response.Unauthorized(c, err.Error())
	case errors.Is(err, domain.ErrAuthorization):
		response.Forbidden(c, err.Error())
	case errors.Is(err, domain.ErrValidation):
		response.BadRequest(c, err.Error())
	case errors.Is(err, domain.ErrStoreUnavailable):
		response.Unavailable(c, "service temporarily unavailable")
	default:
		l := log.Ctx(c.Request.Context())
		l.Error().Err(err).Msg("request failed")
		response.InternalError(c, "internal error")
	}
}
