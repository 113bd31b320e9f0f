package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordExtraction(t *testing.T) {
	before := testutil.ToFloat64(extractionsTotal.WithLabelValues("javascript", "module"))
	specsBefore := testutil.ToFloat64(specifiersTotal)

	RecordExtraction("javascript", "module", 3, 0.002)

	assert.Equal(t, before+1, testutil.ToFloat64(extractionsTotal.WithLabelValues("javascript", "module")))
	assert.Equal(t, specsBefore+3, testutil.ToFloat64(specifiersTotal))
}

func TestRecordCacheLookup(t *testing.T) {
	hits := testutil.ToFloat64(cacheLookupsTotal.WithLabelValues("hit"))
	misses := testutil.ToFloat64(cacheLookupsTotal.WithLabelValues("miss"))

	RecordCacheLookup(true)
	RecordCacheLookup(false)
	RecordCacheLookup(false)

	assert.Equal(t, hits+1, testutil.ToFloat64(cacheLookupsTotal.WithLabelValues("hit")))
	assert.Equal(t, misses+2, testutil.ToFloat64(cacheLookupsTotal.WithLabelValues("miss")))
}

func TestSetIndexedFiles(t *testing.T) {
	SetIndexedFiles(42)
	assert.Equal(t, float64(42), testutil.ToFloat64(indexedFiles))
}

func TestHandler(t *testing.T) {
	RecordParseFailure("typescript")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "depscan_extractor_parse_failures_total")
}
