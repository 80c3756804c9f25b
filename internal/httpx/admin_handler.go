package httpx

import (
	"github.com/ariefcatur/takeaway-settlement/internal/orders"
	"github.com/ariefcatur/takeaway-settlement/internal/settlement"
	"github.com/ariefcatur/takeaway-settlement/internal/stats"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"net/http"
)

func (a *API) platformStatistics(w http.ResponseWriter, r *http.Request) {
	agg, err := a.Stats.Get(r.Context(), stats.Platform())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, agg)
}

func (a *API) storefrontStatistics(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	agg, err := a.Stats.Get(r.Context(), stats.Scope{StorefrontID: id})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, agg)
}

type platformRateReq struct {
	Rate *decimal.Decimal `json:"rate"`
}

func (a *API) setPlatformRate(w http.ResponseWriter, r *http.Request) {
	var req platformRateReq
	if err := decode(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	if req.Rate == nil {
		a.writeError(w, r, orders.ErrInvalidInput)
		return
	}
	if err := a.Rates.SetDefault(r.Context(), *req.Rate); err != nil {
		a.writeError(w, r, err)
		return
	}
	a.Log.Info("default platform rate updated", zap.String("rate", req.Rate.String()),
		zap.Int64("admin_id", mustActor(r).UserID))
	writeJSON(w, http.StatusOK, map[string]any{
		"rate":        req.Rate.String(),
		"ratePercent": settlement.Percent(*req.Rate).StringFixed(2),
	})
}

type storefrontPatchReq struct {
	PlatformRate      *decimal.Decimal `json:"platformRate"`
	ClearPlatformRate bool             `json:"clearPlatformRate"`
	DeliveryFee       *decimal.Decimal `json:"deliveryFee"`
}

func (a *API) patchStorefront(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	var req storefrontPatchReq
	if err := decode(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	if req.PlatformRate != nil {
		if err := settlement.ValidateRate(*req.PlatformRate); err != nil {
			a.writeError(w, r, err)
			return
		}
	}
	if req.DeliveryFee != nil && req.DeliveryFee.IsNegative() {
		a.writeError(w, r, settlement.ErrNegativeMoney)
		return
	}
	sf, err := a.Storefronts.PatchStorefront(r.Context(), id, orders.StorefrontPatch{
		PlatformRate:      req.PlatformRate,
		ClearPlatformRate: req.ClearPlatformRate,
		DeliveryFee:       req.DeliveryFee,
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	out := map[string]any{
		"id":          sf.ID,
		"name":        sf.Name,
		"deliveryFee": money(sf.DeliveryFee),
		"balance":     money(sf.Balance),
	}
	if sf.PlatformRate.Valid {
		out["platformRate"] = sf.PlatformRate.Decimal.String()
	}
	writeJSON(w, http.StatusOK, out)
}
