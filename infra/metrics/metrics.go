// Package metrics holds the process-wide Prometheus instruments. They are
// registered on the default registry and served by the ops HTTP listener.
// Hot paths only ever touch counters, never histograms with labels.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "exchange_requests_total",
		Help: "Client requests accepted off the wire.",
	})

	RequestsRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "exchange_requests_rejected_total",
		Help: "Requests dropped at the gateway for sequence or decode errors.",
	})

	ResponsesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "exchange_responses_dropped_total",
		Help: "Responses discarded because the client had disconnected.",
	})

	UpdatesPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "exchange_updates_published_total",
		Help: "Incremental market data datagrams sent.",
	})

	TradesPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "exchange_trades_published_total",
		Help: "Trade updates on the incremental stream.",
	})

	SnapshotCycles = promauto.NewCounter(prometheus.CounterOpts{
		Name: "exchange_snapshot_cycles_total",
		Help: "Completed snapshot publications.",
	})

	DatagramSendErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "exchange_datagram_send_errors_total",
		Help: "UDP send failures on either multicast stream.",
	})

	TapeRecords = promauto.NewCounter(prometheus.CounterOpts{
		Name: "exchange_tape_records_total",
		Help: "Trades committed to the tape (Kafka + journal).",
	})

	TapeErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "exchange_tape_errors_total",
		Help: "Tape publish or journal write failures.",
	})

	FirehoseDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "exchange_firehose_dropped_total",
		Help: "Book deltas dropped by the lossy firehose.",
	})

	WSClientsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "exchange_ws_clients_dropped_total",
		Help: "Websocket subscribers dropped for falling behind.",
	})

	ConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "exchange_connections_active",
		Help: "Live order-entry TCP connections.",
	})

	RequestRingDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "exchange_request_ring_depth",
		Help: "Occupancy of the engine request ring, sampled by the ops loop.",
	})

	ResponseRingDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "exchange_response_ring_depth",
		Help: "Occupancy of the response ring, sampled by the ops loop.",
	})

	UpdateRingDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "exchange_update_ring_depth",
		Help: "Occupancy of the market update ring, sampled by the ops loop.",
	})

	PublishDelay = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "exchange_publish_delay_seconds",
		Help:    "Time from datagram stamp to UDP write.",
		Buckets: prometheus.ExponentialBuckets(1e-6, 4, 12),
	})
)
