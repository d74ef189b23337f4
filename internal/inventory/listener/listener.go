package listener

import (
	"context"
	"encoding/json"
	"time"

	"github.com/fekuna/omnipos-workshop-service/internal/auth"
	"github.com/fekuna/omnipos-workshop-service/internal/inventory"
	"github.com/fekuna/omnipos-workshop-service/internal/inventory/dto"
	"github.com/fekuna/omnipos-workshop-service/pkg/broker"
	"github.com/fekuna/omnipos-workshop-service/pkg/logger"
	"go.uber.org/zap"
)

// ReceiptListener books goods-received notes from purchasing as stock receipts.
type ReceiptListener struct {
	consumer *broker.KafkaConsumer
	uc       inventory.UseCase
	logger   logger.ZapLogger
}

func NewReceiptListener(consumer *broker.KafkaConsumer, uc inventory.UseCase, logger logger.ZapLogger) *ReceiptListener {
	return &ReceiptListener{
		consumer: consumer,
		uc:       uc,
		logger:   logger,
	}
}

func (l *ReceiptListener) Start(ctx context.Context) {
	l.logger.Info("Starting receipts Kafka listener")
	for {
		select {
		case <-ctx.Done():
			l.logger.Info("Stopping receipts Kafka listener")
			return
		default:
			msg, err := l.consumer.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				l.logger.Error("Failed to read kafka message", zap.Error(err))
				time.Sleep(1 * time.Second)
				continue
			}
			l.processMessage(ctx, msg.Value)
		}
	}
}

type PartsReceivedEvent struct {
	EventID   string               `json:"event_id"`
	EventType string               `json:"event_type"`
	Payload   PartsReceivedPayload `json:"payload"`
	Timestamp time.Time            `json:"timestamp"`
}

type PartsReceivedPayload struct {
	ReceiptID string                `json:"receipt_id"`
	Items     []ReceivedItemPayload `json:"items"`
}

type ReceivedItemPayload struct {
	PartID   int64 `json:"part_id"`
	Quantity int   `json:"quantity"`
}

// processMessage reports how many items were booked. A redelivered note
// books nothing; bad lines are logged and skipped so one line does not block
// the partition.
func (l *ReceiptListener) processMessage(ctx context.Context, value []byte) int {
	var event PartsReceivedEvent
	if err := json.Unmarshal(value, &event); err != nil {
		l.logger.Error("Failed to unmarshal event", zap.Error(err))
		return 0
	}

	if event.EventType != "PartsReceived" {
		return 0
	}

	l.logger.Info("Processing PartsReceived event", zap.String("receipt_id", event.Payload.ReceiptID))

	input := &dto.BookReceiptInput{
		ReceiptID: event.Payload.ReceiptID,
		EventID:   event.EventID,
		Items:     make([]dto.ReceivedItem, 0, len(event.Payload.Items)),
	}
	for _, item := range event.Payload.Items {
		input.Items = append(input.Items, dto.ReceivedItem{PartID: item.PartID, Quantity: item.Quantity})
	}

	result, err := l.uc.BookReceipt(auth.WithUser(ctx, auth.System), input)
	if err != nil {
		l.logger.Error("Failed to book receipt",
			zap.String("receipt_id", event.Payload.ReceiptID),
			zap.Error(err),
		)
		return 0
	}
	if result.Duplicate {
		l.logger.Info("Skipping redelivered receipt", zap.String("receipt_id", result.ReceiptID))
		return 0
	}
	for _, s := range result.Skipped {
		l.logger.Error("Failed to book received part",
			zap.String("receipt_id", result.ReceiptID),
			zap.Int64("part_id", s.PartID),
			zap.Int("quantity", s.Quantity),
			zap.String("reason", s.Reason),
		)
	}
	return len(result.Movements)
}
