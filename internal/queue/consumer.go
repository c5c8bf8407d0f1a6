package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/iliyamo/foodcart-booking/internal/config"
	"github.com/iliyamo/foodcart-booking/internal/model"
	"github.com/iliyamo/foodcart-booking/internal/service"
)

// Reconciler applies one payment notification.  *service.ReconcileService
// implements it.
type Reconciler interface {
	Reconcile(ctx context.Context, n service.PaymentNotification) (*model.Booking, error)
}

type disposition int

const (
	ack     disposition = iota // processed, or failed in a way a retry cannot fix
	requeue                    // transient failure, deliver again
	reject                     // unreadable body, drop without requeue
)

// PaymentConsumer feeds the payment.events queue into the reconciler, one
// message at a time.
type PaymentConsumer struct {
	url        string
	queue      string
	prefetch   int
	reconciler Reconciler
	log        *zap.Logger

	requeueDelay time.Duration
}

func NewPaymentConsumer(cfg config.RabbitConfig, r Reconciler, log *zap.Logger) *PaymentConsumer {
	prefetch := cfg.Prefetch
	if prefetch < 1 {
		prefetch = 1
	}
	return &PaymentConsumer{
		url:          cfg.URL,
		queue:        cfg.PaymentQueue,
		prefetch:     prefetch,
		reconciler:   r,
		log:          log,
		requeueDelay: time.Second,
	}
}

// Run dials the broker, declares the durable queue and consumes until ctx is
// cancelled, reconnecting with a doubling backoff capped at 30s whenever the
// connection or the deliveries channel is lost.
func (c *PaymentConsumer) Run(ctx context.Context) error {
	wait := time.Second
	for {
		conn, err := amqp.Dial(c.url)
		if err != nil {
			c.log.Warn("payment consumer: dial failed", zap.Error(err), zap.Duration("retry_in", wait))
			if !sleep(ctx, wait) {
				return ctx.Err()
			}
			if wait < 30*time.Second {
				wait *= 2
			}
			continue
		}
		wait = time.Second

		err = c.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.log.Warn("payment consumer: consume loop ended, reconnecting", zap.Error(err))
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c *PaymentConsumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		c.log.Warn("payment consumer: set QoS failed", zap.Error(err))
	}
	if _, err := ch.QueueDeclare(c.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare %s: %w", c.queue, err)
	}
	msgs, err := ch.ConsumeWithContext(ctx, c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume %s: %w", c.queue, err)
	}
	c.log.Info("payment consumer started", zap.String("queue", c.queue))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			switch c.handleMessage(ctx, d.Body) {
			case ack:
				_ = d.Ack(false)
			case requeue:
				if ctx.Err() == nil {
					sleep(ctx, c.requeueDelay)
				}
				_ = d.Nack(false, true)
			case reject:
				_ = d.Nack(false, false)
			}
		}
	}
}

func (c *PaymentConsumer) handleMessage(ctx context.Context, body []byte) disposition {
	var msg PaymentEventMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		c.log.Error("payment consumer: unreadable message", zap.Error(err), zap.ByteString("body", body))
		return reject
	}
	fields := []zap.Field{
		zap.Uint64("booking_id", msg.BookingID),
		zap.String("outcome", string(msg.Outcome)),
		zap.String("external_reference_id", msg.ExternalReferenceID),
	}
	b, err := c.reconciler.Reconcile(ctx, msg.Notification())
	switch {
	case err == nil:
		c.log.Info("payment event applied", append(fields, zap.String("status", string(b.Status)))...)
		return ack
	case errors.Is(err, service.ErrTransient):
		c.log.Warn("payment event deferred", append(fields, zap.Error(err))...)
		return requeue
	case ctx.Err() != nil || errors.Is(err, context.Canceled):
		// Shutting down: the transaction rolled back, hand the event back.
		c.log.Warn("payment event interrupted", append(fields, zap.Error(err))...)
		return requeue
	default:
		c.log.Error("payment event dropped", append(fields, zap.Error(err))...)
		return ack
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
