package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"github.com/ariefcatur/takeaway-settlement/internal/ledger"
	"github.com/ariefcatur/takeaway-settlement/internal/orders"
	"github.com/ariefcatur/takeaway-settlement/internal/payment"
	"github.com/ariefcatur/takeaway-settlement/internal/realtime"
	"github.com/ariefcatur/takeaway-settlement/internal/settlement"
	"go.uber.org/zap"
	"net/http"
	"strconv"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) (int, string) {
	switch {
	case payment.IsGatewayError(err):
		return http.StatusBadGateway, "PAYMENT_GATEWAY_ERROR"
	case orders.IsInvalidTransition(err):
		return http.StatusConflict, "INVALID_TRANSITION"
	case orders.IsInvalidState(err):
		return http.StatusConflict, "INVALID_ORDER_STATE"
	case errors.Is(err, ledger.ErrInsufficientBalance):
		return http.StatusConflict, "INSUFFICIENT_BALANCE"
	case errors.Is(err, ledger.ErrDuplicateEntry):
		return http.StatusConflict, "DUPLICATE_SETTLEMENT"
	case errors.Is(err, orders.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, orders.ErrForbidden), errors.Is(err, realtime.ErrForbidden), errors.Is(err, errForbiddenRole):
		return http.StatusForbidden, "FORBIDDEN"
	case errors.Is(err, errUnauthenticated):
		return http.StatusUnauthorized, "UNAUTHENTICATED"
	case errors.Is(err, orders.ErrInvalidInput),
		errors.Is(err, errBadRequest),
		errors.Is(err, settlement.ErrInvalidRate),
		errors.Is(err, settlement.ErrNegativeMoney),
		errors.Is(err, ledger.ErrNegativeAmount),
		errors.Is(err, payment.ErrUnknownGateway),
		errors.Is(err, payment.ErrMissingOrderNo),
		errors.Is(err, realtime.ErrBadChannel):
		return http.StatusBadRequest, "INVALID_INPUT"
	}
	return http.StatusInternalServerError, "INTERNAL"
}

func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code, kind := statusFor(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		a.Log.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		msg = "internal error"
	}
	writeJSON(w, code, errorBody{Error: msg, Code: kind})
}

var errBadRequest = errors.New("bad request")

func decodeErr() error { return fmt.Errorf("%w: malformed body", errBadRequest) }

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: invalid json", errBadRequest)
	}
	return nil
}

func parseID(v string) (int64, error) {
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid id %q", errBadRequest, v)
	}
	return id, nil
}

func queryInt(r *http.Request, key string) int {
	n, _ := strconv.Atoi(r.URL.Query().Get(key))
	return n
}

func listFilter(r *http.Request) orders.ListFilter {
	return orders.ListFilter{
		Status: orders.Status(r.URL.Query().Get("status")),
		Limit:  queryInt(r, "limit"),
		Offset: queryInt(r, "offset"),
	}.Normalize()
}
