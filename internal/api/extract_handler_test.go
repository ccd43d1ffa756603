package api_test

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devx/appads-extractor/internal/models"
)

func TestExtractMultipleHandlerSuccess(t *testing.T) {
	s := newTestServer(t)

	body, _ := json.Marshal(map[string]interface{}{
		"bundleIds":   []string{"com.example.app"},
		"searchTerms": []string{"111"},
	})
	req := httptest.NewRequest("POST", "/api/extract-multiple", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	s.ExtractMultipleHandler(rec, req)

	require.Equal(t, 200, rec.Code)
	var resp models.BatchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 1)
	assert.True(t, resp.Results[0].Success)
	require.NotNil(t, resp.Results[0].AppAdsTxt.SearchResults)
	assert.Equal(t, 1, resp.Results[0].AppAdsTxt.SearchResults.UnionCount)
}

func TestExtractMultipleHandlerRejectsEmptyBundleIds(t *testing.T) {
	s := newTestServer(t)

	body, _ := json.Marshal(map[string]interface{}{"bundleIds": []string{}})
	req := httptest.NewRequest("POST", "/api/extract-multiple", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	s.ExtractMultipleHandler(rec, req)

	assert.Equal(t, 400, rec.Code)
}

func TestExtractMultipleHandlerRejectsTooManyBundles(t *testing.T) {
	s := newTestServer(t)

	ids := make([]string, 11)
	for i := range ids {
		ids[i] = "com.example.app"
	}
	body, _ := json.Marshal(map[string]interface{}{"bundleIds": ids})
	req := httptest.NewRequest("POST", "/api/extract-multiple", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	s.ExtractMultipleHandler(rec, req)

	assert.Equal(t, 400, rec.Code)
}

func TestExtractMultipleHandlerRejectsMalformedSearchTerm(t *testing.T) {
	s := newTestServer(t)

	body := []byte(`{"bundleIds":["com.example.app"],"searchTerms":[{"bogus":"field"}]}`)
	req := httptest.NewRequest("POST", "/api/extract-multiple", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	s.ExtractMultipleHandler(rec, req)

	assert.Equal(t, 400, rec.Code)
}
