package httpx_test

import (
	"github.com/ariefcatur/takeaway-settlement/internal/events"
	"github.com/ariefcatur/takeaway-settlement/internal/httpx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRequestIDBecomesTraceID(t *testing.T) {
	r := httpx.NewRouter(zap.NewNop())
	r.Get("/trace", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, events.TraceID(r.Context()))
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/trace", nil)
	require.NoError(t, err)
	req.Header.Set("X-Request-Id", "req-abc-123")
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	assert.Equal(t, "req-abc-123", string(body))

	// generated ids are used when the caller sends none
	res2, err := http.Get(srv.URL + "/trace")
	require.NoError(t, err)
	defer res2.Body.Close()
	body, err = io.ReadAll(res2.Body)
	require.NoError(t, err)
	assert.NotEmpty(t, string(body))
}
