package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveQuery(t *testing.T) {
	okBefore := testutil.ToFloat64(QueriesTotal.WithLabelValues("test_op", StatusOK))
	errBefore := testutil.ToFloat64(QueriesTotal.WithLabelValues("test_op", StatusError))

	ObserveQuery("test_op", time.Now(), 3, nil)
	ObserveQuery("test_op", time.Now(), 0, errors.New("boom"))
	ObserveQuery("test_op", time.Now(), 1, nil)

	assert.Equal(t, okBefore+2, testutil.ToFloat64(QueriesTotal.WithLabelValues("test_op", StatusOK)))
	assert.Equal(t, errBefore+1, testutil.ToFloat64(QueriesTotal.WithLabelValues("test_op", StatusError)))
}

func TestHandler(t *testing.T) {
	ExpensiveSignals.Inc()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "cattools_expensive_signals_total")
}
