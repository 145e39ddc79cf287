package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dmitrymomot/eventbridge/core/consumer"
	"github.com/dmitrymomot/eventbridge/core/event"
	"github.com/dmitrymomot/eventbridge/core/ingress"
	"github.com/dmitrymomot/eventbridge/core/queue"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "eventbridge"

// IngressSource reports webhook request outcomes.
type IngressSource interface {
	Stats() ingress.Stats
}

// ConsumerSource reports consumer counters.
type ConsumerSource interface {
	Stats() consumer.Stats
}

// DispatchSource reports handler registry counters.
type DispatchSource interface {
	Stats() event.RegistryStats
}

// MemorySource reports in-process queue depth.
type MemorySource interface {
	Stats() queue.MemoryStats
}

// Collector exports component counters as Prometheus metrics. Values are read
// on every scrape, so components keep plain atomics and no Prometheus types.
type Collector struct {
	ingress  IngressSource
	consumer ConsumerSource
	dispatch DispatchSource
	memory   MemorySource

	requests      *prometheus.Desc
	deliveries    *prometheus.Desc
	inFlight      *prometheus.Desc
	slots         *prometheus.Desc
	consumerState *prometheus.Desc
	dispatched    *prometheus.Desc
	unmatched     *prometheus.Desc
	invocations   *prometheus.Desc
	failures      *prometheus.Desc
	handlers      *prometheus.Desc
	queueDepth    *prometheus.Desc
	queueCapacity *prometheus.Desc
	queueOps      *prometheus.Desc
}

// Option attaches a source to the Collector.
type Option func(*Collector)

// WithIngress exports webhook request outcomes.
func WithIngress(s IngressSource) Option {
	return func(c *Collector) { c.ingress = s }
}

// WithConsumer exports consumer counters and state.
func WithConsumer(s ConsumerSource) Option {
	return func(c *Collector) { c.consumer = s }
}

// WithDispatch exports handler registry counters.
func WithDispatch(s DispatchSource) Option {
	return func(c *Collector) { c.dispatch = s }
}

// WithMemoryBackend exports in-process queue depth.
func WithMemoryBackend(s MemorySource) Option {
	return func(c *Collector) { c.memory = s }
}

// NewCollector creates a Collector. An empty namespace falls back to DefaultNamespace.
func NewCollector(namespace string, opts ...Option) *Collector {
	if namespace == "" {
		namespace = DefaultNamespace
	}

	name := func(subsystem, metric string) string {
		return prometheus.BuildFQName(namespace, subsystem, metric)
	}

	c := &Collector{
		requests: prometheus.NewDesc(name("ingress", "requests_total"),
			"Webhook requests by outcome.", []string{"outcome"}, nil),
		deliveries: prometheus.NewDesc(name("consumer", "deliveries_total"),
			"Consumed deliveries by outcome.", []string{"outcome"}, nil),
		inFlight: prometheus.NewDesc(name("consumer", "in_flight"),
			"Deliveries currently being handled.", nil, nil),
		slots: prometheus.NewDesc(name("consumer", "slots"),
			"Concurrent handler slots.", nil, nil),
		consumerState: prometheus.NewDesc(name("consumer", "state"),
			"Consumer lifecycle state, 1 for the current state.", []string{"state"}, nil),
		dispatched: prometheus.NewDesc(name("dispatch", "messages_total"),
			"Messages dispatched by the handler registry.", nil, nil),
		unmatched: prometheus.NewDesc(name("dispatch", "unmatched_total"),
			"Dispatched messages with no registered handler.", nil, nil),
		invocations: prometheus.NewDesc(name("dispatch", "handler_invocations_total"),
			"Handler invocations.", nil, nil),
		failures: prometheus.NewDesc(name("dispatch", "handler_failures_total"),
			"Handler invocations that returned an error or panicked.", nil, nil),
		handlers: prometheus.NewDesc(name("dispatch", "handlers"),
			"Registered handlers.", nil, nil),
		queueDepth: prometheus.NewDesc(name("queue", "depth"),
			"Messages waiting in the in-process queue.", nil, nil),
		queueCapacity: prometheus.NewDesc(name("queue", "capacity"),
			"Capacity of the in-process queue.", nil, nil),
		queueOps: prometheus.NewDesc(name("queue", "operations_total"),
			"In-process queue operations.", []string{"op"}, nil),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.requests, c.deliveries, c.inFlight, c.slots, c.consumerState,
		c.dispatched, c.unmatched, c.invocations, c.failures, c.handlers,
		c.queueDepth, c.queueCapacity, c.queueOps,
	} {
		ch <- d
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	counter := func(d *prometheus.Desc, v int64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v), labels...)
	}
	gauge := func(d *prometheus.Desc, v float64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v, labels...)
	}

	if c.ingress != nil {
		s := c.ingress.Stats()
		counter(c.requests, s.Accepted, "accepted")
		counter(c.requests, s.Handshakes, "handshake")
		counter(c.requests, s.RejectedAuth, "unauthorized")
		counter(c.requests, s.RejectedInvalid, "invalid")
		counter(c.requests, s.PublishFailures, "publish_failed")
	}

	if c.consumer != nil {
		s := c.consumer.Stats()
		counter(c.deliveries, s.Received, "received")
		counter(c.deliveries, s.Succeeded, "succeeded")
		counter(c.deliveries, s.Failed, "failed")
		counter(c.deliveries, s.Retried, "retried")
		counter(c.deliveries, s.DeadLettered, "dead_lettered")
		gauge(c.inFlight, float64(s.InFlight))
		gauge(c.slots, float64(s.Capacity))
		for _, st := range []consumer.State{consumer.StateIdle, consumer.StateRunning, consumer.StateDraining, consumer.StateStopped} {
			v := 0.0
			if st == s.State {
				v = 1
			}
			gauge(c.consumerState, v, st.String())
		}
	}

	if c.dispatch != nil {
		s := c.dispatch.Stats()
		counter(c.dispatched, s.Dispatched)
		counter(c.unmatched, s.Unmatched)
		counter(c.invocations, s.Invoked)
		counter(c.failures, s.Failed)
		gauge(c.handlers, float64(s.Handlers))
	}

	if c.memory != nil {
		s := c.memory.Stats()
		gauge(c.queueDepth, float64(s.Depth))
		gauge(c.queueCapacity, float64(s.Capacity))
		counter(c.queueOps, s.Published, "publish")
		counter(c.queueOps, s.Requeued, "requeue")
		counter(c.queueOps, s.Dropped, "drop")
	}
}
