package httpx

import (
	"github.com/ariefcatur/takeaway-settlement/internal/orders"
	"github.com/ariefcatur/takeaway-settlement/internal/stats"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"net/http"
)

func (a *API) merchantOrders(w http.ResponseWriter, r *http.Request) {
	os, err := a.Orders.ListForMerchant(r.Context(), mustActor(r).UserID, listFilter(r))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOrders(os))
}

func (a *API) merchantAction(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	action, ok := orders.ParseAction(chi.URLParam(r, "action"))
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "unknown action", Code: "NOT_FOUND"})
		return
	}
	o, err := a.Orders.ApplyMerchantTransition(r.Context(), mustActor(r).UserID, id, action)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOrder(o))
}

func (a *API) ownStorefront(r *http.Request) (*orders.Storefront, error) {
	return a.Storefronts.StorefrontByOwner(r.Context(), mustActor(r).UserID)
}

func (a *API) merchantStatistics(w http.ResponseWriter, r *http.Request) {
	sf, err := a.ownStorefront(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	agg, err := a.Stats.Get(r.Context(), stats.Scope{StorefrontID: sf.ID})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, agg)
}

func (a *API) merchantBalance(w http.ResponseWriter, r *http.Request) {
	sf, err := a.ownStorefront(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	b, err := a.Ledger.Balance(r.Context(), sf.ID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"restaurantId": sf.ID, "balance": money(b)})
}

type withdrawReq struct {
	Amount decimal.Decimal `json:"amount"`
}

func (a *API) merchantWithdraw(w http.ResponseWriter, r *http.Request) {
	var req withdrawReq
	if err := decode(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	sf, err := a.ownStorefront(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	left, err := a.Ledger.Withdraw(r.Context(), sf.ID, req.Amount)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"restaurantId": sf.ID, "withdrawn": money(req.Amount), "balance": money(left)})
}

func (a *API) merchantLedger(w http.ResponseWriter, r *http.Request) {
	sf, err := a.ownStorefront(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	es, err := a.Ledger.History(r.Context(), sf.ID, queryInt(r, "limit"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewEntries(es))
}
