package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/dananaoo/bazarlink/chat-service/internal/audit"
	"github.com/dananaoo/bazarlink/chat-service/internal/config"
	"github.com/dananaoo/bazarlink/chat-service/internal/domain"
	"github.com/dananaoo/bazarlink/chat-service/internal/hub"
	"github.com/dananaoo/bazarlink/chat-service/internal/service"
	"github.com/dananaoo/bazarlink/pkg/log"
	"github.com/dananaoo/bazarlink/pkg/middleware"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type WSHandler struct {
	hub     *hub.Hub
	service service.ChatService
	wsCfg   config.WebSocketConfig
}

func NewWSHandler(h *hub.Hub, svc service.ChatService, wsCfg config.WebSocketConfig) *WSHandler {
	return &WSHandler{
		hub:     h,
		service: svc,
		wsCfg:   wsCfg,
	}
}

// HandleWebSocket attaches a socket to the link named in the path. Refused
// handshakes are upgraded and immediately closed so browsers can read the
// close code.
func (h *WSHandler) HandleWebSocket(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	linkID, err := strconv.ParseUint(c.Param("link_id"), 10, 64)
	if err != nil || linkID == 0 {
		h.refuse(c, websocket.ClosePolicyViolation, "invalid link id")
		return
	}

	identity, err := h.service.Attach(ctx, middleware.BearerToken(c.Request), uint(linkID))
	if err != nil {
		code, reason := refusal(err)
		audit.LogWithDetail(ctx, audit.ActionConnectDenied, identity.UserID, "link="+c.Param("link_id"), reason)
		h.refuse(c, code, reason)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		l.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := hub.NewClient(uuid.NewString(), uint(linkID), identity, conn, h.wsCfg)

	// The request context ends with this handler; keep its values only.
	connCtx := log.WithConnection(context.WithoutCancel(ctx), client.LinkID, identity.UserID, client.ID)

	h.service.HandleConnect(connCtx, client)
	go client.WritePump()

	acks := newAckQueue(h.wsCfg.SendBuffer)
	go acks.run(connCtx, client, h.reportFailure)

	client.ReadPump(connCtx, h.hub, func(ctx context.Context, c *hub.Client, message []byte) {
		h.handleMessage(ctx, c, message, acks)
	})
	acks.close()
	h.service.HandleDisconnect(connCtx, client)
}

func (h *WSHandler) refuse(c *gin.Context, code int, reason string) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	deadline := time.Now().Add(h.wsCfg.WriteWait)
	conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
}

func refusal(err error) (int, string) {
	if reason, ok := domain.ReasonOf(err); ok {
		return websocket.ClosePolicyViolation, string(reason)
	}
	if errors.Is(err, domain.ErrAuthentication) || errors.Is(err, domain.ErrAuthorization) {
		return websocket.ClosePolicyViolation, err.Error()
	}
	return websocket.CloseInternalServerErr, "service unavailable"
}

// handleMessage dispatches one inbound frame. Chat messages are only queued
// here; their outcome is reported by acks, so the read loop keeps serving
// heartbeats while a slow store holds the link's sequencer.
func (h *WSHandler) handleMessage(ctx context.Context, client *hub.Client, message []byte, acks *ackQueue) {
	var base domain.BaseMessage
	if err := json.Unmarshal(message, &base); err != nil {
		client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "invalid message format"))
		return
	}

	switch base.Type {
	case domain.MsgTypePing:
		h.service.HandlePing(ctx, client)

	case domain.MsgTypeTyping:
		var frame domain.TypingFrame
		if err := json.Unmarshal(message, &frame); err != nil {
			client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "invalid typing message"))
			return
		}
		if err := h.service.HandleTyping(ctx, client, &frame); err != nil {
			h.reportFailure(ctx, client, err)
		}

	case domain.MsgTypeMessage:
		var frame domain.MessageFrame
		if err := json.Unmarshal(message, &frame); err != nil {
			client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "invalid chat message"))
			return
		}
		if acks.full() {
			client.SendMessage(domain.NewErrorMessage(domain.ErrCodeRateLimited, "too many unacknowledged messages"))
			return
		}
		wait, err := h.service.QueueMessage(ctx, client, &frame)
		if err != nil {
			h.reportFailure(ctx, client, err)
			return
		}
		acks.push(wait)

	default:
		client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "unknown message type: "+base.Type))
	}
}

// reportFailure tells the sending connection why its frame was dropped.
func (h *WSHandler) reportFailure(ctx context.Context, client *hub.Client, err error) {
	l := log.Ctx(ctx)

	code := domain.ErrCodeSendFailed
	message := "failed to send message"
	switch {
	case errors.Is(err, domain.ErrValidation):
		code, message = domain.ErrCodeBadRequest, err.Error()
	case errors.Is(err, domain.ErrAuthorization), errors.Is(err, domain.ErrAuthentication):
		code, message = domain.ErrCodeForbidden, err.Error()
	case errors.Is(err, service.ErrRateLimited):
		code, message = domain.ErrCodeRateLimited, err.Error()
	default:
		l.Error().Err(err).Msg("chat frame failed")
	}
	client.SendMessage(domain.NewErrorMessage(code, message))
}

func (h *WSHandler) RegisterRoutes(r gin.IRouter) {
	r.GET("/ws/chat/:link_id", h.HandleWebSocket)
}
