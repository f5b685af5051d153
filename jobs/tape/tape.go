// Package tape commits every trade to durable storage: a local pebble
// journal keyed by the trade's market data sequence number, and, when
// Kafka is configured, an acked publication for downstream clearing and
// surveillance. The tape only ever records trades; book deltas go to the
// firehose instead.
package tape

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"time"

	"github.com/IBM/sarama"
	"github.com/cockroachdb/pebble"

	"matchbox/api/adminpb"
	"matchbox/domain/messages"
	"matchbox/domain/types"
	"matchbox/infra/metrics"
)

const tapeBuffer = 64 * 1024

// Tape implements marketdata.Tap. Publish hands the trade to a worker
// goroutine over a buffered channel; a full buffer drops the record with
// a counter rather than stalling the publisher.
type Tape struct {
	db       *pebble.DB
	producer sarama.SyncProducer
	topic    string

	in   chan adminpb.TradeEvent
	done chan struct{}
	log  *slog.Logger
}

// Open opens the journal at dir and, when brokers is non-empty, connects
// the acked Kafka producer.
func Open(dir string, brokers []string, topic string, log *slog.Logger) (*Tape, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("tape: open journal %s: %w", dir, err)
	}
	t := &Tape{
		db:    db,
		topic: topic,
		in:    make(chan adminpb.TradeEvent, tapeBuffer),
		done:  make(chan struct{}),
		log:   log.With("component", "tape"),
	}
	if len(brokers) > 0 {
		cfg := sarama.NewConfig()
		cfg.Producer.Return.Successes = true
		cfg.Producer.RequiredAcks = sarama.WaitForAll
		cfg.Producer.Retry.Max = 5
		producer, err := sarama.NewSyncProducer(brokers, cfg)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("tape: kafka producer: %w", err)
		}
		t.producer = producer
	}
	go t.worker()
	return t, nil
}

// Publish implements marketdata.Tap.
func (t *Tape) Publish(seq types.SeqNum, u *messages.MarketUpdate) {
	if u.Kind != messages.UpdateTrade {
		return
	}
	ev := adminpb.TradeEvent{
		Seq:      uint64(seq),
		SendNs:   time.Now().UnixNano(),
		TickerID: uint32(u.TickerID),
		Side:     int32(u.Side),
		Price:    int64(u.Price),
		Qty:      int64(u.Qty),
	}
	select {
	case t.in <- ev:
	default:
		metrics.TapeErrors.Inc()
	}
}

func (t *Tape) worker() {
	defer close(t.done)
	var key [8]byte
	for ev := range t.in {
		val, err := ev.MarshalBinary()
		if err != nil {
			metrics.TapeErrors.Inc()
			continue
		}
		binary.BigEndian.PutUint64(key[:], ev.Seq)
		if err := t.db.Set(key[:], val, pebble.NoSync); err != nil {
			metrics.TapeErrors.Inc()
			t.log.Error("journal write failed", "seq", ev.Seq, "err", err)
			continue
		}
		if t.producer != nil {
			msg := &sarama.ProducerMessage{
				Topic: t.topic,
				Key:   sarama.ByteEncoder(key[:]),
				Value: sarama.ByteEncoder(val),
			}
			if _, _, err := t.producer.SendMessage(msg); err != nil {
				metrics.TapeErrors.Inc()
				t.log.Error("kafka publish failed", "seq", ev.Seq, "err", err)
				continue
			}
		}
		metrics.TapeRecords.Inc()
	}
}

// Trades returns the journaled trades in [from, to) sequence order, for
// the admin surface and tests.
func (t *Tape) Trades(from, to uint64) ([]adminpb.TradeEvent, error) {
	var lo, hi [8]byte
	binary.BigEndian.PutUint64(lo[:], from)
	binary.BigEndian.PutUint64(hi[:], to)
	iter, err := t.db.NewIter(&pebble.IterOptions{LowerBound: lo[:], UpperBound: hi[:]})
	if err != nil {
		return nil, fmt.Errorf("tape: iterator: %w", err)
	}
	defer iter.Close()
	var out []adminpb.TradeEvent
	for iter.First(); iter.Valid(); iter.Next() {
		var ev adminpb.TradeEvent
		if err := ev.UnmarshalBinary(iter.Value()); err != nil {
			return nil, fmt.Errorf("tape: corrupt record: %w", err)
		}
		out = append(out, ev)
	}
	return out, iter.Error()
}

// Close drains pending records and releases the journal and producer.
func (t *Tape) Close() error {
	close(t.in)
	<-t.done
	if t.producer != nil {
		t.producer.Close()
	}
	return t.db.Close()
}
