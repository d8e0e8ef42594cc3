package handlers

import (
	"net/http"
	"strings"

	"github.com/BenFidge/bookgrid/services/calendar-service/internal/contacts"
)

// ContactSearch proxies the portal CRM contact search for the booking
// form's typeahead. The route is authenticated; the gateway injects
// X-Portal-Id from the caller's token.
func (h *BookingHandler) ContactSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.contacts == nil {
		http.Error(w, "contact search is not configured", http.StatusServiceUnavailable)
		return
	}

	portalID := strings.TrimSpace(r.Header.Get("X-Portal-Id"))
	if portalID == "" {
		portalID = strings.TrimSpace(r.URL.Query().Get("portal_id"))
	}
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if portalID == "" || query == "" {
		http.Error(w, "portal_id and q are required", http.StatusBadRequest)
		return
	}

	found, err := h.contacts.Search(r.Context(), portalID, query)
	if err != nil {
		h.logger.Warn("contact search failed", "err", err)
		http.Error(w, "contact search failed", http.StatusBadGateway)
		return
	}
	if found == nil {
		found = []contacts.Contact{}
	}
	writeJSON(w, http.StatusOK, found)
}
