package stats

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// StatsProvider is the metrics surface the chat server reports into.
type StatsProvider interface {
	ConnectionOpened()
	ConnectionClosed()
	MessageSent()
	ReceiptTransition(status string)
	RoomJoined()
	PushFailed()
}

// Collector implements StatsProvider on a prometheus registry.
type Collector struct {
	activeConnections  prometheus.Gauge
	messagesTotal      prometheus.Counter
	receiptTransitions *prometheus.CounterVec
	roomJoins          prometheus.Counter
	pushFailures       prometheus.Counter
}

func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		activeConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chatserver_active_connections",
			Help: "Number of currently open client connections.",
		}),
		messagesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chatserver_messages_total",
			Help: "Total messages accepted for delivery.",
		}),
		receiptTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chatserver_receipt_transitions_total",
			Help: "Receipt status transitions by target status.",
		}, []string{"status"}),
		roomJoins: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chatserver_room_joins_total",
			Help: "Total successful room joins.",
		}),
		pushFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chatserver_push_failures_total",
			Help: "Live pushes dropped because the client send queue was full.",
		}),
	}

	reg.MustRegister(
		c.activeConnections,
		c.messagesTotal,
		c.receiptTransitions,
		c.roomJoins,
		c.pushFailures,
	)

	return c
}

func (c *Collector) ConnectionOpened() {
	c.activeConnections.Inc()
}

func (c *Collector) ConnectionClosed() {
	c.activeConnections.Dec()
}

func (c *Collector) MessageSent() {
	c.messagesTotal.Inc()
}

func (c *Collector) ReceiptTransition(status string) {
	c.receiptTransitions.WithLabelValues(status).Inc()
}

func (c *Collector) RoomJoined() {
	c.roomJoins.Inc()
}

func (c *Collector) PushFailed() {
	c.pushFailures.Inc()
}

// Handler returns the scrape handler for the given gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// NopProvider discards all metrics.
type NopProvider struct{}

func (NopProvider) ConnectionOpened()               {}
func (NopProvider) ConnectionClosed()               {}
func (NopProvider) MessageSent()                    {}
func (NopProvider) ReceiptTransition(status string) {}
func (NopProvider) RoomJoined()                     {}
func (NopProvider) PushFailed()                     {}
