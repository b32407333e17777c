package service

import (
	"errors"

	"todo_backend/internal/domain"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeOK      = "ok"
	outcomeInvalid = "invalid"
	outcomeError   = "error"
)

var (
	mutations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "todo_mutations_total",
			Help: "Todo mutations by operation and outcome",
		},
		[]string{"op", "outcome"},
	)
	reorderSkipped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "todo_reorder_skipped_total",
			Help: "Reorder entries skipped because the todo no longer exists",
		},
	)
)

func init() {
	prometheus.MustRegister(mutations)
	prometheus.MustRegister(reorderSkipped)
}

func outcomeFor(err error) string {
	if errors.Is(err, domain.ErrValidation) {
		return outcomeInvalid
	}
	return outcomeError
}
