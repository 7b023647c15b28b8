package audit

import (
	"context"

	"github.com/dananaoo/bazarlink/pkg/log"
)

// Audit actions for the chat service.
const (
	ActionConnect       = "chat.connect"
	ActionConnectDenied = "chat.connect_denied"
	ActionSendMessage   = "chat.send_message"
	ActionMarkRead      = "chat.mark_read"
	ActionAssign        = "chat.assign"
	ActionUnassign      = "chat.unassign"
	ActionRevoke        = "chat.revoke"
	ActionDisconnect    = "chat.disconnect"
)

// Field constants for audit entries.
const (
	FieldAction = "action"
	FieldDetail = "detail"
)

// Log emits a structured audit entry via the context logger.
func Log(ctx context.Context, action string, userID uint, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Uint(log.FieldUserID, userID).
		Msg(msg)
}

// LogWithDetail is Log with a free-form detail field.
func LogWithDetail(ctx context.Context, action string, userID uint, detail string, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Uint(log.FieldUserID, userID).
		Str(FieldDetail, detail).
		Msg(msg)
}
