package etp3

import (
	"github.com/prometheus/client_golang/prometheus"
)

// ClientCollector exports a client's connection counters to Prometheus.
type ClientCollector struct {
	client *Client

	commandsTotal *prometheus.Desc
	errorsTotal   *prometheus.Desc
	bytesRead     *prometheus.Desc
	bytesWritten  *prometheus.Desc
}

// NewClientCollector builds a collector for one client. The instance name
// is attached as a constant label.
func NewClientCollector(c *Client) *ClientCollector {
	labels := prometheus.Labels{
		"instance": c.instance,
		"trace_id": c.traceID,
	}
	return &ClientCollector{
		client: c,
		commandsTotal: prometheus.NewDesc(
			"etp3_commands_total",
			"Total number of commands sent on the connection",
			nil, labels,
		),
		errorsTotal: prometheus.NewDesc(
			"etp3_errors_total",
			"Total number of transport errors on the connection",
			nil, labels,
		),
		bytesRead: prometheus.NewDesc(
			"etp3_read_bytes_total",
			"Total bytes received on the connection",
			nil, labels,
		),
		bytesWritten: prometheus.NewDesc(
			"etp3_written_bytes_total",
			"Total bytes sent on the connection",
			nil, labels,
		),
	}
}

// Describe implements prometheus.Collector.
func (cc *ClientCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- cc.commandsTotal
	ch <- cc.errorsTotal
	ch <- cc.bytesRead
	ch <- cc.bytesWritten
}

// Collect implements prometheus.Collector.
func (cc *ClientCollector) Collect(ch chan<- prometheus.Metric) {
	s := cc.client.Stats()
	ch <- prometheus.MustNewConstMetric(
		cc.commandsTotal, prometheus.CounterValue, float64(s.Commands.Load()))
	ch <- prometheus.MustNewConstMetric(
		cc.errorsTotal, prometheus.CounterValue, float64(s.Errors.Load()))
	ch <- prometheus.MustNewConstMetric(
		cc.bytesRead, prometheus.CounterValue, float64(s.BytesRead.Load()))
	ch <- prometheus.MustNewConstMetric(
		cc.bytesWritten, prometheus.CounterValue, float64(s.BytesWritten.Load()))
}
