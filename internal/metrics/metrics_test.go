package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestObserversAreSafeBeforeInit(t *testing.T) {
	// Must not panic when Init has not run.
	ObservePage("structured", "ok")
	ObserveFallback()
	ObserveInserted("academic", 3)
	IncActiveHarvesters()
	DecActiveHarvesters()
	ObserveFetchRetry()
	ObserveUpsert("institution")
}

func TestCountersAccumulate(t *testing.T) {
	Init()

	before := testutil.ToFloat64(extractFallbacksTotal)
	ObserveFallback()
	ObserveFallback()
	require.Equal(t, before+2, testutil.ToFloat64(extractFallbacksTotal))

	ObserveInserted("academic", 5)
	require.Equal(t, float64(5),
		testutil.ToFloat64(noticesInsertedTotal.WithLabelValues("academic")))
}
