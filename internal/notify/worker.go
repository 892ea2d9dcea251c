package notify

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/taquilla/taquilla/internal/model"
	"github.com/taquilla/taquilla/internal/repository"
)

const (
	dispatchQueueName = "notifications.dispatch"
	claimBatch        = 50
)

// Task is the payload published to the broker for each outbox row. It carries
// everything a channel worker needs without querying the primary database.
type Task struct {
	TaskID     string `json:"task_id"`
	TenantID   uint64 `json:"tenant_id"`
	OutboxID   uint64 `json:"outbox_id"`
	TemplateID string `json:"template_id"`
	Channel    string `json:"channel"`
	Recipient  string `json:"recipient"`
	Subject    string `json:"subject"`
	Body       string `json:"body"`
	EnqueuedAt string `json:"enqueued_at"`
}

// Worker drains the outbox into the broker. It runs a reconnect loop with
// exponential backoff; while the broker is down, rows simply stay pending.
type Worker struct {
	outbox   *repository.OutboxRepo
	url      string
	interval time.Duration
	log      zerolog.Logger
	lastTick atomic.Int64
}

// NewWorker builds the outbox dispatch worker.
func NewWorker(outbox *repository.OutboxRepo, amqpURL string, interval time.Duration, log zerolog.Logger) *Worker {
	return &Worker{
		outbox:   outbox,
		url:      amqpURL,
		interval: interval,
		log:      log.With().Str("component", "notify-worker").Logger(),
	}
}

// Alive reports whether the worker completed a poll within the last minute.
func (w *Worker) Alive() bool {
	last := w.lastTick.Load()
	return last > 0 && time.Since(time.Unix(last, 0)) < time.Minute
}

// Run connects to the broker and polls the outbox until the context is
// cancelled. A dropped connection triggers a backoff and reconnect.
func (w *Worker) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn, err := amqp.Dial(w.url)
		if err != nil {
			w.log.Warn().Err(err).Dur("retry_in", backoff).Msg("broker dial failed")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second
		if err := w.publishLoop(ctx, conn); err != nil {
			_ = conn.Close()
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.log.Warn().Err(err).Msg("publish loop ended, reconnecting")
			continue
		}
	}
}

func (w *Worker) publishLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(dispatchQueueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.drainOnce(ctx, ch); err != nil {
				return err
			}
			w.lastTick.Store(time.Now().Unix())
		}
	}
}

// drainOnce claims one batch of pending rows and publishes each. Claim and
// settle share a transaction so a crashed worker leaves rows pending for the
// next pass instead of lost.
func (w *Worker) drainOnce(ctx context.Context, ch *amqp.Channel) error {
	for {
		n, err := w.drainBatch(ctx, ch)
		if err != nil {
			return err
		}
		if n < claimBatch {
			return nil
		}
	}
}

func (w *Worker) drainBatch(ctx context.Context, ch *amqp.Channel) (int, error) {
	tx, err := w.outbox.DB().BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	pending, err := w.outbox.ClaimPending(ctx, tx, claimBatch)
	if err != nil {
		return 0, err
	}
	for i := range pending {
		if err := w.publishOne(ctx, ch, tx, &pending[i]); err != nil {
			// Broker-level failure: abort the batch, rows stay pending.
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	committed = true
	return len(pending), nil
}

func (w *Worker) publishOne(ctx context.Context, ch *amqp.Channel, tx *sql.Tx, m *model.OutboxMessage) error {
	taskID := uuid.NewString()
	body, err := json.Marshal(Task{
		TaskID:     taskID,
		TenantID:   m.TenantID,
		OutboxID:   m.ID,
		TemplateID: m.TemplateID,
		Channel:    m.Channel,
		Recipient:  m.Recipient,
		Subject:    m.Subject,
		Body:       m.Body,
		EnqueuedAt: m.CreatedAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		// Unserializable row: settle as failed so it stops blocking the queue.
		w.log.Error().Err(err).Uint64("outbox_id", m.ID).Msg("marshal task")
		return w.outbox.MarkFailedTx(ctx, tx, m.ID, err.Error())
	}
	err = ch.PublishWithContext(ctx, "", dispatchQueueName, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    taskID,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish outbox %d: %w", m.ID, err)
	}
	return w.outbox.MarkSentTx(ctx, tx, m.ID, taskID, time.Now())
}
