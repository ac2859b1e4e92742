package api

import (
	"net/http"

	"github.com/Resinat/Prism/internal/delivery"
	"github.com/Resinat/Prism/internal/service"
	"github.com/Resinat/Prism/internal/transform"
)

// HandleDeliveryStats returns a handler for GET /api/v1/delivery/stats.
func HandleDeliveryStats(cp *service.ControlPlaneService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, cp.DeliveryStats())
	}
}

// HandleDeliveryURL returns a handler for GET /api/v1/delivery/url.
//
// Query: path (required), w, h, q, f, fit, dpr, blur, bri, avif, webp,
// connection, endpoint.
func HandleDeliveryURL(cp *service.ControlPlaneService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		req := service.DeliveryURLRequest{
			Path:     q.Get("path"),
			Endpoint: q.Get("endpoint"),
			Options: transform.Options{
				Format: q.Get("f"),
				Fit:    q.Get("fit"),
			},
			Capabilities: delivery.Capabilities{ConnectionClass: q.Get("connection")},
		}

		ints := []struct {
			key string
			dst *int
		}{
			{"w", &req.Options.Width},
			{"h", &req.Options.Height},
			{"q", &req.Options.Quality},
			{"blur", &req.Options.Blur},
			{"bri", &req.Options.Brightness},
		}
		for _, p := range ints {
			v, err := ParseIntQuery(r, p.key)
			if err != nil {
				writeInvalidArgument(w, err.Error())
				return
			}
			*p.dst = v
		}
		dpr, err := ParseFloatQuery(r, "dpr")
		if err != nil {
			writeInvalidArgument(w, err.Error())
			return
		}
		req.Options.DPR = dpr

		avif, ok := parseBoolQueryOrWriteInvalid(w, r, "avif")
		if !ok {
			return
		}
		webp, ok := parseBoolQueryOrWriteInvalid(w, r, "webp")
		if !ok {
			return
		}
		req.Capabilities.AVIF = avif != nil && *avif
		req.Capabilities.WebP = webp != nil && *webp

		url, err := cp.DeliveryURL(req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]string{"url": url})
	}
}

type probeRequest struct {
	Path string `json:"path"`
}

// HandleProbeEndpoints returns a handler for POST /api/v1/delivery/actions/probe.
// The body is optional: {"path": "/favicon.ico"}.
func HandleProbeEndpoints(cp *service.ControlPlaneService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req probeRequest
		if r.ContentLength != 0 {
			if !decodeBodyOrWriteInvalid(w, r, &req) {
				return
			}
		}
		stats, err := cp.ProbeEndpoints(r.Context(), req.Path)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, stats)
	}
}
