package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/food_cart/internal/domain"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const EventCheckoutRequested = "CheckoutRequested"

var ErrNilSnapshot = errors.New("nil checkout snapshot")

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// CheckoutPublisher hands a frozen cart over to the order pipeline.
type CheckoutPublisher struct {
	writer messageWriter
	logger *zap.Logger
}

func NewCheckoutPublisher(logger *zap.Logger, topic string, brokers ...string) *CheckoutPublisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		WriteTimeout:           10 * time.Second,
		AllowAutoTopicCreation: true,
	}
	return &CheckoutPublisher{writer: w, logger: logger}
}

func (p *CheckoutPublisher) Publish(ctx context.Context, snapshot *domain.CheckoutSnapshot) error {
	if snapshot == nil {
		return ErrNilSnapshot
	}

	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal checkout snapshot: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(snapshot.CheckoutID), // checkout_id for ordering
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(EventCheckoutRequested)},
			{Key: "session_id", Value: []byte(snapshot.SessionID)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish checkout %s: %w", snapshot.CheckoutID, err)
	}

	p.logger.Info("checkout published",
		zap.String("checkout_id", snapshot.CheckoutID),
		zap.String("restaurant_id", snapshot.RestaurantID),
		zap.String("total", snapshot.Total.StringFixed(2)),
	)
	return nil
}

func (p *CheckoutPublisher) Close() error {
	return p.writer.Close()
}
