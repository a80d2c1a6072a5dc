package faststart

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	desc struct {
		Files, InputBytes, OutputBytes, Seconds *prometheus.Desc
	}
	mu                      sync.Mutex
	files                   map[string]uint64
	inputBytes, outputBytes uint64
	seconds                 float64
	registry                *prometheus.Registry
}

func NewMetrics() *Metrics {
	m := &Metrics{files: make(map[string]uint64)}
	m.desc.Files = prometheus.NewDesc("faststart_files_total", "Files processed by outcome", []string{"outcome"}, nil)
	m.desc.InputBytes = prometheus.NewDesc("faststart_input_bytes_total", "Bytes of processed input files", nil, nil)
	m.desc.OutputBytes = prometheus.NewDesc("faststart_output_bytes_total", "Bytes written to rewritten files", nil, nil)
	m.desc.Seconds = prometheus.NewDesc("faststart_seconds_total", "Time spent processing files", nil, nil)
	m.registry = prometheus.NewRegistry()
	m.registry.MustRegister(m)
	return m
}

func (m *Metrics) Observe(res *Result) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[res.Status.Outcome.String()]++
	m.inputBytes += uint64(res.InputLength)
	m.outputBytes += uint64(res.Status.OutputLength)
	m.seconds += res.Duration.Seconds()
}

func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	ch <- m.desc.Files
	ch <- m.desc.InputBytes
	ch <- m.desc.OutputBytes
	ch <- m.desc.Seconds
}

func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for outcome, n := range m.files {
		ch <- prometheus.MustNewConstMetric(m.desc.Files, prometheus.CounterValue, float64(n), outcome)
	}
	ch <- prometheus.MustNewConstMetric(m.desc.InputBytes, prometheus.CounterValue, float64(m.inputBytes))
	ch <- prometheus.MustNewConstMetric(m.desc.OutputBytes, prometheus.CounterValue, float64(m.outputBytes))
	ch <- prometheus.MustNewConstMetric(m.desc.Seconds, prometheus.CounterValue, m.seconds)
}

// WriteTextfile exports the metrics in the node_exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
