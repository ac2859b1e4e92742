package api

import (
	"net/http"

	"github.com/Resinat/Prism/internal/service"
	"github.com/Resinat/Prism/internal/transform"
)

// HandleOptimizeImage returns a handler for POST /api/v1/images/optimize.
func HandleOptimizeImage(cp *service.ControlPlaneService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req transform.Request
		if !decodeBodyOrWriteInvalid(w, r, &req) {
			return
		}
		result, err := cp.OptimizeImage(r.Context(), req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, result)
	}
}

type batchOptimizeRequest struct {
	Requests []transform.Request `json:"requests"`
}

type batchOptimizeResponse struct {
	Results []*transform.Result `json:"results"`
}

// HandleOptimizeImageBatch returns a handler for POST /api/v1/images/optimize:batch.
func HandleOptimizeImageBatch(cp *service.ControlPlaneService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req batchOptimizeRequest
		if !decodeBodyOrWriteInvalid(w, r, &req) {
			return
		}
		results, err := cp.OptimizeImages(r.Context(), req.Requests)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, batchOptimizeResponse{Results: results})
	}
}

// HandleImageStats returns a handler for GET /api/v1/images/stats.
func HandleImageStats(cp *service.ControlPlaneService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, cp.ImageStats())
	}
}

// HandlePurgeImages returns a handler for POST /api/v1/images/actions/purge.
// ?expired_only=true drops only expired entries.
func HandlePurgeImages(cp *service.ControlPlaneService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		expiredOnly, ok := parseBoolQueryOrWriteInvalid(w, r, "expired_only")
		if !ok {
			return
		}
		WriteJSON(w, http.StatusOK, cp.PurgeImages(expiredOnly != nil && *expiredOnly))
	}
}
