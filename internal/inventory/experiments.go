package inventory

import (
	"hash/fnv"

	"github.com/nordkit/commerce-core/internal/domain"
)

// Assigner deterministically picks a reservation strategy for a given
// reservation key, so repeated reservations under the same key (e.g. a
// retried request) always land on the same strategy. There is no
// experiments service in this deployment, so the split is a fixed
// percentage rollout rather than a dynamically configured experiment.
type Assigner struct {
	// OptimisticPercent is the share (0-100) of keys assigned to the
	// optimistic strategy; the remainder use pessimistic.
	OptimisticPercent int
}

func NewAssigner(optimisticPercent int) *Assigner {
	if optimisticPercent < 0 {
		optimisticPercent = 0
	}
	if optimisticPercent > 100 {
		optimisticPercent = 100
	}
	return &Assigner{OptimisticPercent: optimisticPercent}
}

// Assign hashes key with FNV-1a and buckets it modulo 100 against
// OptimisticPercent, so the same key always resolves to the same strategy.
func (a *Assigner) Assign(key string) domain.ReservationStrategy {
	h := fnv.New32a()
	h.Write([]byte(key))
	bucket := int(h.Sum32() % 100)
	if bucket < a.OptimisticPercent {
		return domain.StrategyOptimistic
	}
	return domain.StrategyPessimistic
}
