package api

import (
	"net/http"

	"github.com/Resinat/Prism/internal/service"
)

// HandleClassifyRoute returns a handler for GET /api/v1/routes/classify?path=.
func HandleClassifyRoute(cp *service.ControlPlaneService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, err := cp.ClassifyRoute(r.URL.Query().Get("path"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, result)
	}
}
