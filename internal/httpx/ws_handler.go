package httpx

import (
	"github.com/ariefcatur/takeaway-settlement/internal/notify"
	"github.com/ariefcatur/takeaway-settlement/internal/orders"
	"net/http"
)

// websocket streams ?channel= to the caller once AllowChannel approves it.
func (a *API) websocket(w http.ResponseWriter, r *http.Request) {
	if err := a.Bridge.Serve(w, r, r.URL.Query().Get("channel")); err != nil {
		a.writeError(w, r, err)
	}
}

// AllowChannel lets a customer read only their own channel and a merchant only their storefront's.
func (a *API) AllowChannel(r *http.Request, channel string) bool {
	actor, ok := actorFrom(r.Context())
	if !ok {
		return false
	}
	switch actor.Role {
	case orders.RoleCustomer:
		return channel == notify.UserChannel(actor.UserID)
	case orders.RoleMerchant:
		sf, err := a.Storefronts.StorefrontByOwner(r.Context(), actor.UserID)
		return err == nil && channel == notify.MerchantChannel(sf.ID)
	}
	return false
}
