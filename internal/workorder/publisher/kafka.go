package publisher

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fekuna/omnipos-workshop-service/internal/workorder"
	"github.com/fekuna/omnipos-workshop-service/pkg/broker"
)

// KafkaPublisher keys messages by order number so one order's events stay
// in order on a single partition.
type KafkaPublisher struct {
	producer *broker.KafkaProducer
}

func NewKafkaPublisher(producer *broker.KafkaProducer) *KafkaPublisher {
	return &KafkaPublisher{producer: producer}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event *workorder.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", event.EventType, err)
	}
	return p.producer.Publish(ctx, event.Payload.OrderNumber, data)
}
