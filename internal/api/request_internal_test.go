package api

import (
	"bytes"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeExtractRequestParsesMixedTerms(t *testing.T) {
	body := []byte(`{"bundleIds":["com.example.app"],"searchTerms":["hello",{"domain":"example.com"}]}`)
	req := httptest.NewRequest("POST", "/", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	ids, query, err := decodeExtractRequest(rec, req, 1<<20, 10, 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"com.example.app"}, ids)
	require.Len(t, query.Terms, 2)
	assert.Equal(t, "hello", query.Terms[0].FreeText)
	assert.Equal(t, "example.com", query.Terms[1].Structured.Domain)
}

func TestDecodeExtractRequestRejectsTooManyTerms(t *testing.T) {
	body := []byte(`{"bundleIds":["a"],"searchTerms":["1","2","3"]}`)
	req := httptest.NewRequest("POST", "/", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	_, _, err := decodeExtractRequest(rec, req, 1<<20, 10, 2)
	assert.ErrorIs(t, err, errTooManyTerms)
}

func TestDecodeExtractRequestRejectsOversizedBody(t *testing.T) {
	body := bytes.Repeat([]byte("a"), 100)
	req := httptest.NewRequest("POST", "/", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	_, _, err := decodeExtractRequest(rec, req, 10, 10, 5)
	assert.ErrorIs(t, err, errBodyTooLarge)
}
