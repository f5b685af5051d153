// Package firehose streams every sequenced book delta to Kafka on a
// fire-and-forget contract: the async writer batches in the background
// and anything it cannot deliver is dropped with a counter. Consumers
// that need a lossless trade record subscribe to the tape topic instead.
package firehose

import (
	"context"
	"encoding/binary"
	"log/slog"

	"matchbox/domain/messages"
	"matchbox/domain/types"
	"matchbox/infra/kafka"
	"matchbox/infra/metrics"
)

// Firehose implements marketdata.Tap. Values are the same fixed binary
// datagrams the multicast stream carries; keys are the big-endian ticker
// id so one ticker's deltas land in one partition, in order.
type Firehose struct {
	producer *kafka.Producer
	log      *slog.Logger
}

// New wraps a producer for the firehose topic.
func New(brokers []string, topic string, log *slog.Logger) *Firehose {
	return &Firehose{
		producer: kafka.NewProducer(brokers, topic),
		log:      log.With("component", "firehose"),
	}
}

// Publish implements marketdata.Tap.
func (f *Firehose) Publish(seq types.SeqNum, u *messages.MarketUpdate) {
	d := messages.Datagram{Seq: seq, Update: *u}
	val := make([]byte, messages.DatagramSize)
	d.Put(val)
	key := make([]byte, 4)
	binary.BigEndian.PutUint32(key, uint32(u.TickerID))
	if err := f.producer.Send(context.Background(), key, val); err != nil {
		metrics.FirehoseDropped.Inc()
	}
}

// Close flushes the writer's last batches.
func (f *Firehose) Close() error {
	return f.producer.Close()
}
