package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simaogato/tokendrop-backend/internal/domain"
)

func TestMetrics_RunLifecycle(t *testing.T) {
	m := New("test")
	run := domain.NewBatchRun(2, domain.DefaultBatchPolicy(), nil)
	op := domain.TransferOperation{ID: uuid.New()}

	m.RunStarted(run)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsInFlight))

	m.OperationFinished(domain.Success(op, domain.Receipt{}, nil), 100*time.Millisecond)
	m.AttemptRetried(domain.KindTransient)
	m.OperationFinished(domain.Failure(op, domain.NewTransferError(domain.KindReverted, errors.New("x")), nil), time.Second)

	run.Status = domain.RunStatusCompletedWithErrors
	run.StartedAt = time.Now().Add(-time.Minute)
	run.EndedAt = time.Now()
	m.RunFinished(run)

	assert.Equal(t, 0.0, testutil.ToFloat64(m.RunsInFlight))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TransfersFinished.WithLabelValues("success", "")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TransfersFinished.WithLabelValues("failure", "REVERTED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RetryAttempts.WithLabelValues("TRANSIENT")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsFinished.WithLabelValues("COMPLETED_WITH_ERRORS")))
}

func TestMetrics_ValidationFinished(t *testing.T) {
	m := New("")

	m.ValidationFinished(domain.ValidationSummary{Total: 6, Valid: 3, InvalidAddress: 1, InvalidAmount: 1, Duplicates: 1})

	assert.Equal(t, 3.0, testutil.ToFloat64(m.RowsClassified.WithLabelValues("VALID")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RowsClassified.WithLabelValues("DUPLICATE")))
}

func TestMetrics_Handler(t *testing.T) {
	m := New("test")
	m.RPCHandled("/tokendrop.v1.AirdropService/GetRun", "OK")
	server := httptest.NewServer(m.Handler())
	defer server.Close()

	resp, err := http.Get(server.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `test_rpc_requests_total{code="OK",method="/tokendrop.v1.AirdropService/GetRun"} 1`)

	health, err := http.Get(server.URL + "/health")
	require.NoError(t, err)
	health.Body.Close()
	assert.Equal(t, http.StatusOK, health.StatusCode)
}
