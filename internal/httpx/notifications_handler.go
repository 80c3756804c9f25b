package httpx

import (
	"github.com/go-chi/chi/v5"
	"net/http"
)

func (a *API) listNotifications(w http.ResponseWriter, r *http.Request) {
	unread := r.URL.Query().Get("unread") == "true"
	ns, err := a.Inbox.List(r.Context(), mustActor(r).UserID, unread)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ns)
}

func (a *API) unreadCount(w http.ResponseWriter, r *http.Request) {
	n, err := a.Inbox.UnreadCount(r.Context(), mustActor(r).UserID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"count": n})
}

func (a *API) markRead(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if err := a.Inbox.MarkRead(r.Context(), mustActor(r).UserID, id); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) markAllRead(w http.ResponseWriter, r *http.Request) {
	if err := a.Inbox.MarkAllRead(r.Context(), mustActor(r).UserID); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) deleteNotification(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if err := a.Inbox.Delete(r.Context(), mustActor(r).UserID, id); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) deleteAllNotifications(w http.ResponseWriter, r *http.Request) {
	if err := a.Inbox.DeleteAll(r.Context(), mustActor(r).UserID); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
