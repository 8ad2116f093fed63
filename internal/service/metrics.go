package service

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts partial failures the service absorbs instead of returning.
type Metrics struct {
	orphanedBlobs      prometheus.Counter
	blobDeleteFailures prometheus.Counter
}

// NewMetrics creates the service counters and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		orphanedBlobs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "docstore_orphaned_blobs_total",
			Help: "Blobs stored whose metadata record could not be appended.",
		}),
		blobDeleteFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "docstore_blob_delete_failures_total",
			Help: "Blob deletions that failed while the record was still removed.",
		}),
	}
	for _, c := range []prometheus.Collector{m.orphanedBlobs, m.blobDeleteFailures} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) orphaned() {
	if m != nil {
		m.orphanedBlobs.Inc()
	}
}

func (m *Metrics) deleteFailed() {
	if m != nil {
		m.blobDeleteFailures.Inc()
	}
}
