package httpx

import (
	"encoding/json"
	"github.com/go-chi/chi/v5"
	"io"
	"net/http"
	"net/url"
	"strings"
)

type createPaymentReq struct {
	OrderID int64 `json:"orderId"`
}

func (a *API) createPayment(w http.ResponseWriter, r *http.Request) {
	var req createPaymentReq
	if err := decode(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	o, err := a.Orders.Get(r.Context(), req.OrderID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if err := a.authorizeView(r.Context(), mustActor(r), o.UserID, o.StorefrontID); err != nil {
		a.writeError(w, r, err)
		return
	}
	art, err := a.Payments.CreatePayment(r.Context(), o.ID, chi.URLParam(r, "gateway"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, art)
}

func (a *API) queryPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	o, err := a.Orders.ByNumber(ctx, chi.URLParam(r, "orderNo"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if err := a.authorizeView(ctx, mustActor(r), o.UserID, o.StorefrontID); err != nil {
		a.writeError(w, r, err)
		return
	}
	res, err := a.Payments.QueryPayment(ctx, o.OrderNo, chi.URLParam(r, "gateway"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// paymentNotify accepts a vendor callback. Only the order number is read from the body;
// the outcome is always re-queried from the gateway.
func (a *API) paymentNotify(w http.ResponseWriter, r *http.Request) {
	orderNo, txID, err := callbackFields(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	queued, res, err := a.Callbacks.Accept(r.Context(), chi.URLParam(r, "gateway"), orderNo, txID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if queued {
		writeJSON(w, http.StatusAccepted, map[string]any{"code": "SUCCESS", "queued": true})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"code": "SUCCESS", "result": res})
}

// callbackFields reads out_trade_no and the vendor transaction id from a form or JSON body.
func callbackFields(r *http.Request) (orderNo, txID string, err error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 64<<10))
	if err != nil {
		return "", "", err
	}
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var m map[string]any
		if err := json.Unmarshal(body, &m); err != nil {
			return "", "", decodeErr()
		}
		return str(m["out_trade_no"]), firstNonEmpty(str(m["trade_no"]), str(m["transaction_id"])), nil
	}
	vals, err := url.ParseQuery(string(body))
	if err != nil {
		return "", "", decodeErr()
	}
	return vals.Get("out_trade_no"), firstNonEmpty(vals.Get("trade_no"), vals.Get("transaction_id")), nil
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func firstNonEmpty(vs ...string) string {
	for _, v := range vs {
		if v != "" {
			return v
		}
	}
	return ""
}
