package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/vitrine-shop/vitrine/internal/jobs"
	"github.com/vitrine-shop/vitrine/internal/users"
)

// Mailer delivers a plain-text email.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// NoticeHandler delivers account notices.
type NoticeHandler struct {
	mailer  Mailer
	metrics *jobmetrics.Metrics
	logger  *slog.Logger
}

// NewNoticeHandler constructs a NoticeHandler.
func NewNoticeHandler(mailer Mailer, metrics *jobmetrics.Metrics, logger *slog.Logger) *NoticeHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &NoticeHandler{mailer: mailer, metrics: metrics, logger: logger}
}

// ProcessTask implements asynq.Handler.
func (h *NoticeHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	tracker := h.metrics.Track("account_notice")
	var payload AccountNoticePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		h.logger.Error("account notice payload", slog.Any("error", err))
		return tracker.End(fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry))
	}
	subject, body, ok := composeNotice(payload)
	if !ok {
		h.logger.Warn("account notice kind unknown", slog.String("kind", payload.Kind))
		return tracker.End(fmt.Errorf("unknown notice kind %q: %w", payload.Kind, asynq.SkipRetry))
	}
	if err := h.mailer.Send(ctx, payload.Email, subject, body); err != nil {
		h.logger.Warn("account notice delivery", slog.String("user_id", payload.UserID), slog.Any("error", err))
		return tracker.End(err)
	}
	h.logger.Info("account notice sent", slog.String("user_id", payload.UserID), slog.String("kind", payload.Kind))
	return tracker.End(nil)
}

func composeNotice(p AccountNoticePayload) (subject, body string, ok bool) {
	switch users.NoticeKind(p.Kind) {
	case users.NoticeRoleChanged:
		return "Your role has changed",
			fmt.Sprintf("Your back office role is now %s.", p.Role), true
	case users.NoticeSuspended:
		return "Your account has been suspended",
			"Your back office account was suspended. You can no longer sign in.", true
	case users.NoticeReactivated:
		return "Your account has been reactivated",
			"Your back office account is active again.", true
	case users.NoticeDeleted:
		return "Your account has been removed",
			"Your back office account was removed.", true
	default:
		return "", "", false
	}
}
