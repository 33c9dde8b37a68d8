package jobs

import (
	"encoding/json"
	"errors"

	"github.com/hibiken/asynq"

	"github.com/vitrine-shop/vitrine/internal/users"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskAccountNotice tells a user their account changed.
	TaskAccountNotice = "account:notice"
)

// AccountNoticePayload is the queued form of users.AccountNotice.
type AccountNoticePayload struct {
	UserID  string `json:"user_id"`
	Email   string `json:"email"`
	Kind    string `json:"kind"`
	Role    string `json:"role,omitempty"`
	ActorID string `json:"actor_id,omitempty"`
}

// NewAccountNoticeTask constructs an Asynq task.
func NewAccountNoticeTask(n users.AccountNotice) (*asynq.Task, error) {
	if n.Email == "" {
		return nil, errors.New("jobs: account notice without recipient")
	}
	data, err := json.Marshal(AccountNoticePayload{
		UserID:  n.UserID,
		Email:   n.Email,
		Kind:    string(n.Kind),
		Role:    string(n.Role),
		ActorID: n.ActorID,
	})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAccountNotice, data, asynq.MaxRetry(5)), nil
}
