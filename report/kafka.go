package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/segmentio/kafka-go"
	"github.com/warp/payments-engine/ledger"
)

// messageWriter is the part of *kafka.Writer the emitter uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaEmitter publishes one message per account. Messages are buffered by
// Emit and written in one batch by Flush. The key is the client id, so all
// snapshots of a client land on the same partition.
type KafkaEmitter struct {
	writer  messageWriter
	pending []kafka.Message
}

func NewKafka(brokers []string, topic string) (*KafkaEmitter, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka output needs at least one broker")
	}
	if topic == "" {
		return nil, errors.New("kafka output needs a topic")
	}
	return newKafkaEmitter(&kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}), nil
}

func newKafkaEmitter(w messageWriter) *KafkaEmitter {
	return &KafkaEmitter{writer: w}
}

func (e *KafkaEmitter) Emit(_ context.Context, acc ledger.Account) error {
	data, err := json.Marshal(NewRecord(acc))
	if err != nil {
		return err
	}
	e.pending = append(e.pending, kafka.Message{
		Key:   []byte(strconv.FormatUint(uint64(acc.Client), 10)),
		Value: data,
	})
	return nil
}

func (e *KafkaEmitter) Flush(ctx context.Context) error {
	if len(e.pending) == 0 {
		return nil
	}
	if err := e.writer.WriteMessages(ctx, e.pending...); err != nil {
		return fmt.Errorf("publish %d accounts: %w", len(e.pending), err)
	}
	e.pending = nil
	return nil
}

func (e *KafkaEmitter) Close() error {
	return e.writer.Close()
}
