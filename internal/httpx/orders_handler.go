package httpx

import (
	"context"
	"github.com/ariefcatur/takeaway-settlement/internal/orders"
	"github.com/ariefcatur/takeaway-settlement/internal/redisx"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"net/http"
)

func (a *API) placeOrder(w http.ResponseWriter, r *http.Request) {
	var in orders.PlaceOrderInput
	if err := decode(r, &in); err != nil {
		a.writeError(w, r, err)
		return
	}
	in.UserID = mustActor(r).UserID
	o, err := a.Orders.PlaceOrder(r.Context(), in)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, viewOrder(o))
}

func (a *API) listMyOrders(w http.ResponseWriter, r *http.Request) {
	os, err := a.Orders.ListForCustomer(r.Context(), mustActor(r).UserID, listFilter(r))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOrders(os))
}

// authorizeView lets customers see their own orders, merchants their storefront's, admins all.
func (a *API) authorizeView(ctx context.Context, actor orders.Actor, userID, storefrontID int64) error {
	switch actor.Role {
	case orders.RoleAdmin:
		return nil
	case orders.RoleCustomer:
		if userID == actor.UserID {
			return nil
		}
	case orders.RoleMerchant:
		sf, err := a.Storefronts.StorefrontByOwner(ctx, actor.UserID)
		if err != nil {
			return err
		}
		if sf.ID == storefrontID {
			return nil
		}
	}
	return orders.ErrForbidden
}

func (a *API) getOrder(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	o, err := a.Orders.Get(r.Context(), id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if err := a.authorizeView(r.Context(), mustActor(r), o.UserID, o.StorefrontID); err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOrder(o))
}

// getOrderStatus answers from the cache first and refills it from the database on a miss.
func (a *API) getOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	ctx := r.Context()

	if a.StatusCache != nil {
		cs, ok, err := a.StatusCache.GetStatus(ctx, id)
		if err != nil {
			a.Log.Warn("status cache read failed", zap.Int64("order_id", id), zap.Error(err))
		}
		if ok {
			if err := a.authorizeView(ctx, mustActor(r), cs.UserID, cs.StorefrontID); err != nil {
				a.writeError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, statusView(cs))
			return
		}
	}

	o, err := a.Orders.Get(ctx, id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if err := a.authorizeView(ctx, mustActor(r), o.UserID, o.StorefrontID); err != nil {
		a.writeError(w, r, err)
		return
	}
	if a.StatusCache != nil {
		a.StatusCache.SetStatus(ctx, o)
	}
	writeJSON(w, http.StatusOK, statusView(redisx.CachedFrom(o)))
}

func statusView(cs redisx.CachedStatus) map[string]any {
	return map[string]any{
		"orderId":     cs.OrderID,
		"orderNo":     cs.OrderNo,
		"status":      cs.Status,
		"statusLabel": orders.Label(cs.Status),
		"updatedAt":   cs.UpdatedAt,
	}
}

func (a *API) cancelOrder(w http.ResponseWriter, r *http.Request) {
	a.cancelAs(w, r, mustActor(r))
}

// adminCancel cancels on behalf of the platform; only PENDING orders accept it.
func (a *API) adminCancel(w http.ResponseWriter, r *http.Request) {
	a.cancelAs(w, r, orders.SystemActor)
}

func (a *API) cancelAs(w http.ResponseWriter, r *http.Request, actor orders.Actor) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	o, err := a.Orders.CancelOrder(r.Context(), actor, id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOrder(o))
}

func (a *API) confirmReceipt(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	o, err := a.Orders.CustomerConfirmReceipt(r.Context(), mustActor(r).UserID, id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOrder(o))
}
