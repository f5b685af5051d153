// Package kafka wraps the fire-and-forget producer used by the market
// data firehose. Delivery is best effort: the async writer batches in the
// background and failed batches are counted, never retried into the hot
// path. The acked trade tape uses its own sync producer and does not go
// through here.
package kafka

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"
)

type Producer struct {
	writer *kafka.Writer
	errs   atomic.Uint64
}

func NewProducer(brokers []string, topic string) *Producer {
	p := &Producer{}
	p.writer = &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireNone,
		Async:        true,
		BatchTimeout: 10 * time.Millisecond,
		Completion: func(_ []kafka.Message, err error) {
			if err != nil {
				p.errs.Add(1)
			}
		},
	}
	return p
}

// Send enqueues one message for asynchronous delivery. The only error it
// can return comes from a closed writer.
func (p *Producer) Send(ctx context.Context, key, value []byte) error {
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   key,
		Value: value,
	})
}

// Errors reports how many batches have failed delivery so far.
func (p *Producer) Errors() uint64 {
	return p.errs.Load()
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
