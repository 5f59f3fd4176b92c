package events

import (
	"context"
	"time"

	"whalewatch/internal/adapters/kafka"
	"whalewatch/internal/domain/liquidity"
	"whalewatch/internal/domain/whaleorder"
	"whalewatch/pkg/logger"
)

// Event names on the realtime channel.
const (
	EventNewOrder        = "new_order"
	EventOrderFilled     = "order_filled"
	EventOrderDeleted    = "order_deleted"
	EventLiquidityUpdate = "liquidity_update"
)

// Broadcaster fans an event out to connected realtime subscribers.
type Broadcaster interface {
	Broadcast(event string, payload interface{})
}

// Notifier receives order lifecycle notifications for out-of-band alerting.
type Notifier interface {
	NotifyOrderCreated(ctx context.Context, o *whaleorder.WhaleOrder)
	NotifyOrderFilled(ctx context.Context, o *whaleorder.WhaleOrder)
}

// Envelope is the wire shape of every realtime event.
type Envelope struct {
	Event     string      `json:"event"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// Publisher distributes lifecycle events to the realtime channel, the Kafka
// mirror and the alert notifier. Every sink is best effort: a failed or
// absent sink never affects the pipeline, only the audience.
type Publisher struct {
	bus      Broadcaster
	producer *kafka.Producer
	notifier Notifier
	log      *logger.Logger
}

// NewPublisher creates an event publisher. Any sink may be nil.
func NewPublisher(bus Broadcaster, producer *kafka.Producer, notifier Notifier) *Publisher {
	return &Publisher{
		bus:      bus,
		producer: producer,
		notifier: notifier,
		log:      logger.Get().With("component", "events"),
	}
}

func (p *Publisher) broadcast(event string, data interface{}) {
	if p.bus == nil {
		return
	}
	p.bus.Broadcast(event, data)
}

func (p *Publisher) mirror(ctx context.Context, topic, key string, data interface{}) {
	if p.producer == nil {
		return
	}
	if err := p.producer.Publish(ctx, topic, key, data); err != nil {
		p.log.Warnw("Kafka mirror publish failed", "topic", topic, "error", err)
	}
}

// OrderCreated publishes a new_order event.
func (p *Publisher) OrderCreated(ctx context.Context, o *whaleorder.WhaleOrder) {
	p.broadcast(EventNewOrder, o)
	p.mirror(ctx, kafka.TopicOrderCreated, o.ID.String(), o)
	if p.notifier != nil {
		p.notifier.NotifyOrderCreated(ctx, o)
	}
}

// OrderFilled publishes an order_filled event.
func (p *Publisher) OrderFilled(ctx context.Context, o *whaleorder.WhaleOrder) {
	p.broadcast(EventOrderFilled, o)
	p.mirror(ctx, kafka.TopicOrderFilled, o.ID.String(), o)
	if p.notifier != nil {
		p.notifier.NotifyOrderFilled(ctx, o)
	}
}

// OrderDeleted publishes an order_deleted event.
func (p *Publisher) OrderDeleted(ctx context.Context, o *whaleorder.WhaleOrder) {
	p.broadcast(EventOrderDeleted, o)
	p.mirror(ctx, kafka.TopicOrderDeleted, o.ID.String(), o)
}

// LiquidityUpdated publishes a liquidity_update event with the full snapshot.
func (p *Publisher) LiquidityUpdated(ctx context.Context, s *liquidity.Snapshot) {
	p.broadcast(EventLiquidityUpdate, s)
	p.mirror(ctx, kafka.TopicLiquidityUpdate, "snapshot", s)
}

// PriceUpdate is the Kafka payload for a refreshed reference price.
type PriceUpdate struct {
	Price     float64   `json:"price"`
	Timestamp time.Time `json:"timestamp"`
}

// PriceUpdated mirrors a refreshed reference price to Kafka. The realtime
// channel is not involved; subscribers track prices through their own feeds.
func (p *Publisher) PriceUpdated(ctx context.Context, price float64) {
	p.mirror(ctx, kafka.TopicPriceUpdate, "BTCUSD", PriceUpdate{
		Price:     price,
		Timestamp: time.Now().UTC(),
	})
}
