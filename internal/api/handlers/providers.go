package handlers

import "net/http"

type ProviderHandler struct {
	providers Providers
}

func NewProviderHandler(p Providers) *ProviderHandler {
	return &ProviderHandler{providers: p}
}

// List reports every known provider and the usable ones in preference order.
func (h *ProviderHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"providers": h.providers.Descriptors(),
		"available": h.providers.AvailableProviders(""),
	})
}
