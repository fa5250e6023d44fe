package fanout

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"fenrir/internal/book"
	"fenrir/internal/model"
)

// Kafka topic names, mirrored verbatim from the pipeline this fanout
// replaces so a downstream analytics consumer keyed on these strings keeps
// working unmodified.
const (
	TopicPriceUpdates     = "price-updates"
	TopicOrderBookUpdates = "order-book-updates"
	TopicVolumeUpdates    = "volume-updates"
)

type priceUpdateRecord struct {
	MarketID  string    `json:"market_id"`
	YesPrice  string    `json:"yes_price"`
	NoPrice   string    `json:"no_price"`
	Timestamp time.Time `json:"timestamp"`
}

type orderBookUpdateRecord struct {
	MarketID  string    `json:"market_id"`
	OrderID   string    `json:"order_id"`
	Outcome   string    `json:"outcome"`
	Side      string    `json:"side"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

type volumeUpdateRecord struct {
	MarketID  string    `json:"market_id"`
	OrderID   string    `json:"order_id"`
	Outcome   string    `json:"outcome"`
	Quantity  string    `json:"quantity"`
	Timestamp time.Time `json:"timestamp"`
}

// Analytics is an append-only log of exchange activity for downstream
// consumption. It never blocks order processing on delivery: write errors
// are logged and dropped.
type Analytics struct {
	writer *kafka.Writer
}

// NewAnalytics constructs an Analytics log against the given Kafka broker
// address.
func NewAnalytics(brokerURL string) *Analytics {
	return &Analytics{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokerURL),
			Balancer: &kafka.LeastBytes{},
		},
	}
}

func (a *Analytics) Close() error {
	return a.writer.Close()
}

// PublishOrderUpdate writes the price-updates and order-book-updates
// records that accompany every processed order, and the volume-updates
// record only when the order reached FILLED.
func (a *Analytics) PublishOrderUpdate(o *model.Order, mb *book.MarketBook) {
	now := time.Now()

	a.publish(TopicPriceUpdates, o.MarketID.String(), priceUpdateRecord{
		MarketID:  o.MarketID.String(),
		YesPrice:  mb.CurrentYesPrice.String(),
		NoPrice:   mb.CurrentNoPrice.String(),
		Timestamp: now,
	})

	a.publish(TopicOrderBookUpdates, o.MarketID.String(), orderBookUpdateRecord{
		MarketID:  o.MarketID.String(),
		OrderID:   o.ID.String(),
		Outcome:   string(o.Outcome),
		Side:      string(o.Side),
		Status:    string(o.Status),
		Timestamp: now,
	})

	if o.Status == model.OrderStatusFilled {
		a.publish(TopicVolumeUpdates, o.MarketID.String(), volumeUpdateRecord{
			MarketID:  o.MarketID.String(),
			OrderID:   o.ID.String(),
			Outcome:   string(o.Outcome),
			Quantity:  o.FilledQuantity.String(),
			Timestamp: now,
		})
	}
}

func (a *Analytics) publish(topic, key string, record any) {
	payload, err := json.Marshal(record)
	if err != nil {
		log.Error().Err(err).Str("topic", topic).Msg("failed to marshal analytics record")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = a.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: payload,
	})
	if err != nil {
		log.Error().Err(err).Str("topic", topic).Msg("failed to publish analytics record")
	}
}
