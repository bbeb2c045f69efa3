package binding

import (
	"errors"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/cinelist/watchlist/internal/envelope"
)

func TestRegisterMetrics(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()

	require.NoError(t, RegisterMetrics(reg))
	require.NoError(t, RegisterMetrics(reg), "registering twice should be harmless")

	observeResult(operationOpen, resultReplayed)
	metricPassthrough.Inc()

	count, err := testutil.GatherAndCount(reg, "watchlist_envelope_operations_total", "watchlist_envelope_passthrough_total")
	require.NoError(t, err)
	require.GreaterOrEqual(t, count, 2)
}

func TestObserve_LabelsByErrorClass(t *testing.T) {
	tests := []struct {
		err    error
		result string
	}{
		{nil, "success"},
		{fmt.Errorf("wrapped: %w", envelope.ErrConfig), "config_error"},
		{fmt.Errorf("wrapped: %w", envelope.ErrCrypto), "crypto_error"},
		{fmt.Errorf("wrapped: %w", envelope.ErrEncoding), "encoding_error"},
		{errors.New("something else"), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.result, func(t *testing.T) {
			counter := metricOperations.WithLabelValues(operationOpen, tt.result)
			before := testutil.ToFloat64(counter)

			observe(operationOpen, tt.err)

			require.Equal(t, before+1, testutil.ToFloat64(counter))
		})
	}
}
