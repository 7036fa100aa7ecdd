package metrics

import "time"

func (m *Metrics) ObserveQuestion(status string, duration time.Duration) {
	if status == "" {
		status = "unknown"
	}
	m.questionsTotal.WithLabelValues(m.service, status).Inc()
	m.questionDuration.WithLabelValues(m.service, status).Observe(duration.Seconds())
}

func (m *Metrics) ObserveRetrieval(fused, context int) {
	m.fusedCandidates.WithLabelValues(m.service).Observe(float64(fused))
	m.contextChunks.WithLabelValues(m.service).Observe(float64(context))
	if context == 0 {
		m.noContextTotal.WithLabelValues(m.service).Inc()
	}
}

func (m *Metrics) ObserveContractViolation(operation string) {
	if operation == "" {
		operation = "unknown"
	}
	m.contractViolations.WithLabelValues(m.service, operation).Inc()
}

func (m *Metrics) ObserveIndexBatch(status string) {
	m.indexBatchesTotal.WithLabelValues(m.service, status).Inc()
}

func (m *Metrics) ObserveItemRetry() {
	m.indexItemRetries.WithLabelValues(m.service).Inc()
}
