/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package tally

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/blnkfinance/tally/config"
	"github.com/blnkfinance/tally/internal/metrics"
	"github.com/blnkfinance/tally/internal/notification"
	redis_db "github.com/blnkfinance/tally/internal/redis-db"
	"github.com/blnkfinance/tally/internal/request"
	"github.com/blnkfinance/tally/model"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
)

const (
	EventLedgerCreated       = "ledger.created"
	EventTransactionRecorded = "ledger.transaction.recorded"
	EventTransactionUpdated  = "ledger.transaction.updated"
	EventTransactionDeleted  = "ledger.transaction.deleted"
	EventLedgerReset         = "ledger.reset"

	WebhookTaskType          = "tally:webhook"
	webhookDeliveryTimeout   = 30 * time.Second
	webhookEnqueueMaxRetries = 5
)

// LedgerEvent is published after a mutation has been persisted.
type LedgerEvent struct {
	UserID      string             `json:"user_id"`
	Transaction *model.Transaction `json:"transaction,omitempty"`
	Ledger      *model.Ledger      `json:"ledger"`
}

// NewWebhook is the body POSTed to the configured webhook URL.
type NewWebhook struct {
	Event   string      `json:"event"`
	Payload LedgerEvent `json:"data"`
}

// EventPublisher hands confirmed ledger events to whatever delivers them.
type EventPublisher interface {
	Publish(ctx context.Context, webhook NewWebhook) error
	Close() error
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, NewWebhook) error { return nil }
func (noopPublisher) Close() error                              { return nil }

// WebhookPublisher enqueues webhook deliveries on an asynq queue.
type WebhookPublisher struct {
	client *asynq.Client
	queue  string
}

func NewWebhookPublisher(cnf *config.Configuration) (*WebhookPublisher, error) {
	opt, err := redis_db.AsynqOpt(cnf.Redis.Dns, cnf.Redis.SkipTLSVerify)
	if err != nil {
		return nil, err
	}
	return &WebhookPublisher{client: asynq.NewClient(opt), queue: cnf.Queue.WebhookQueue}, nil
}

func (w *WebhookPublisher) Publish(ctx context.Context, webhook NewWebhook) error {
	payload, err := json.Marshal(webhook)
	if err != nil {
		return err
	}
	task := asynq.NewTask(WebhookTaskType, payload, asynq.Queue(w.queue), asynq.MaxRetry(webhookEnqueueMaxRetries))
	info, err := w.client.EnqueueContext(ctx, task)
	if err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{"event": webhook.Event, "task_id": info.ID}).Debug("webhook enqueued")
	return nil
}

func (w *WebhookPublisher) Close() error {
	return w.client.Close()
}

// publish never fails the mutation that produced the event.
func (t *Tally) publish(ctx context.Context, event string, payload LedgerEvent) {
	err := t.events.Publish(ctx, NewWebhook{Event: event, Payload: payload})
	if err != nil {
		metrics.RecordWebhook(event, "failed")
		notification.NotifyError(fmt.Errorf("failed to enqueue %s webhook for user %s: %w", event, payload.UserID, err))
		return
	}
	metrics.RecordWebhook(event, "enqueued")
}

// ProcessWebhook is the asynq handler that delivers a queued webhook.
func ProcessWebhook(ctx context.Context, task *asynq.Task) error {
	conf, err := config.Fetch()
	if err != nil {
		return err
	}
	if conf.Notification.Webhook.Url == "" {
		return nil
	}

	var webhook NewWebhook
	if err := json.Unmarshal(task.Payload(), &webhook); err != nil {
		logrus.Errorf("Error unmarshaling webhook payload: %v", err)
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	ctx, cancel := context.WithTimeout(ctx, webhookDeliveryTimeout)
	defer cancel()
	_, err = request.PostJSON(ctx, conf.Notification.Webhook.Url, conf.Notification.Webhook.Headers, webhook, nil)
	if err != nil {
		logrus.WithField("event", webhook.Event).Errorf("webhook delivery failed: %v", err)
		return err
	}
	logrus.WithField("event", webhook.Event).Info("webhook delivered")
	return nil
}
