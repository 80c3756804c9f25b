package realtime

import (
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestValidChannel(t *testing.T) {
	for _, ch := range []string{"user/7/orders", "merchant/12/orders"} {
		assert.True(t, ValidChannel(ch), ch)
	}
	for _, ch := range []string{"", "user/0/orders", "user/abc/orders", "admin/1/orders", "user/7/orders/x", "merchant/12"} {
		assert.False(t, ValidChannel(ch), ch)
	}
}

func TestServeRejectsBeforeUpgrade(t *testing.T) {
	b := &Bridge{Log: zap.NewNop(), Allow: func(*http.Request, string) bool { return false }}
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)

	err := b.Serve(httptest.NewRecorder(), req, "admin/1/orders")
	assert.ErrorIs(t, err, ErrBadChannel)

	err = b.Serve(httptest.NewRecorder(), req, "user/1/orders")
	assert.ErrorIs(t, err, ErrForbidden)
}
