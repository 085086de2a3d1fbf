package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the queue all shop jobs run on.
	QueueDefault = "default"
	// TaskTypeSendEmail carries transactional mail: checkout codes and
	// order confirmations.
	TaskTypeSendEmail = "mail:send"
)

// SendEmailPayload describes one outbound message.
type SendEmailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// NewSendEmailTask marshals the payload into an asynq task.
func NewSendEmailTask(payload SendEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendEmail, data), nil
}

type mailHandler struct {
	logger *slog.Logger
}

// ProcessTask handles TaskTypeSendEmail. A payload that does not decode
// will never decode, so it skips the retry machinery.
func (h *mailHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload SendEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		h.logger.Error("mail task payload undecodable", slog.Any("error", err))
		return asynq.SkipRetry
	}
	// TODO: hand off to the SMTP relay once it is provisioned; until then
	// delivery is log-only.
	h.logger.Info("send email",
		slog.String("to", payload.To),
		slog.String("subject", payload.Subject),
	)
	return nil
}
