package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/Cheertaboi/pos-offer-service/internal/models"
)

const usageEventType = "offer.used"

// UsageEvent is the message body published for every recorded offer usage.
type UsageEvent struct {
	Type          string            `json:"type"`
	UsageID       string            `json:"usage_id"`
	OfferID       string            `json:"offer_id"`
	OrderID       string            `json:"order_id"`
	SessionID     string            `json:"session_id"`
	Channel       models.Channel    `json:"channel"`
	CustomerPhone string            `json:"customer_phone,omitempty"`
	Discount      string            `json:"discount_amount"`
	FreeItems     []models.FreeItem `json:"free_items"`
	UsedAt        time.Time         `json:"used_at"`
}

// RoutingKey is offer.used.<channel>, so consumers can bind per channel.
func RoutingKey(ch models.Channel) string {
	return usageEventType + "." + string(ch)
}

func encodeUsage(rec models.UsageRecord) ([]byte, error) {
	free := rec.FreeItems
	if free == nil {
		free = []models.FreeItem{}
	}
	return json.Marshal(UsageEvent{
		Type:          usageEventType,
		UsageID:       rec.ID,
		OfferID:       rec.OfferID,
		OrderID:       rec.OrderID,
		SessionID:     rec.SessionID,
		Channel:       rec.Channel,
		CustomerPhone: rec.CustomerPhone,
		Discount:      rec.Discount.StringFixed(2),
		FreeItems:     free,
		UsedAt:        rec.UsedAt.UTC(),
	})
}

// Publisher sends usage events to a topic exchange and waits for the
// broker's confirm on each one.
type Publisher struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
}

type confirmation interface {
	WaitContext(ctx context.Context) (bool, error)
}

// awaitConfirm blocks until the broker settles this publish.
func awaitConfirm(ctx context.Context, c confirmation) error {
	acked, err := c.WaitContext(ctx)
	if err != nil {
		return errors.Wrap(err, "wait for usage event confirm")
	}
	if !acked {
		return errors.New("usage event nacked by broker")
	}
	return nil
}

func Dial(url, exchange string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, errors.Wrap(err, "dial amqp")
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, errors.Wrap(err, "open amqp channel")
	}
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, errors.Wrapf(err, "declare exchange %s", exchange)
	}
	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, errors.Wrap(err, "enable publisher confirms")
	}

	return &Publisher{conn: conn, ch: ch, exchange: exchange}, nil
}

func (p *Publisher) Close() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
}

func (p *Publisher) PublishUsage(ctx context.Context, rec models.UsageRecord) error {
	body, err := encodeUsage(rec)
	if err != nil {
		return errors.Wrap(err, "encode usage event")
	}

	if p.conn == nil || p.conn.IsClosed() {
		return errors.New("amqp connection is closed")
	}
	dc, err := p.ch.PublishWithDeferredConfirmWithContext(ctx, p.exchange, RoutingKey(rec.Channel), false, false, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		MessageId:    rec.ID,
		Timestamp:    time.Now(),
		Type:         usageEventType,
		Body:         body,
	})
	if err != nil {
		return errors.Wrap(err, "publish usage event")
	}
	return awaitConfirm(ctx, dc)
}
