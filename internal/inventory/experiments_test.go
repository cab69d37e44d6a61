package inventory

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nordkit/commerce-core/internal/domain"
)

func TestAssignerIsDeterministic(t *testing.T) {
	a := NewAssigner(50)
	key := "customer-42"
	first := a.Assign(key)
	for i := 0; i < 100; i++ {
		require.Equal(t, first, a.Assign(key), "same key must always resolve to the same strategy")
	}
}

func TestAssignerAllOptimistic(t *testing.T) {
	a := NewAssigner(100)
	for _, key := range []string{"a", "b", "c", "customer-99"} {
		require.Equal(t, domain.StrategyOptimistic, a.Assign(key))
	}
}

func TestAssignerAllPessimistic(t *testing.T) {
	a := NewAssigner(0)
	for _, key := range []string{"a", "b", "c", "customer-99"} {
		require.Equal(t, domain.StrategyPessimistic, a.Assign(key))
	}
}

func TestAssignerClampsOutOfRangePercent(t *testing.T) {
	require.Equal(t, 100, NewAssigner(150).OptimisticPercent)
	require.Equal(t, 0, NewAssigner(-10).OptimisticPercent)
}
