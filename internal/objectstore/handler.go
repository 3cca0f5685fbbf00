package objectstore

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// Handler serves the dataset read API:
//
//	GET /api/datasets?bucket=...&key=...&type=json|csv[&nocache=1]
//
// Responses carry X-Cache: HIT|MISS and the payload content type.
type Handler struct {
	gateway *Gateway
}

// NewHandler creates the dataset read handler.
func NewHandler(gateway *Gateway) *Handler {
	return &Handler{gateway: gateway}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	bucket := q.Get("bucket")
	key := q.Get("key")
	if bucket == "" || key == "" {
		writeError(w, http.StatusBadRequest, "bucket and key are required")
		return
	}

	format, err := ParseFormat(q.Get("type"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "type must be json or csv")
		return
	}

	useCache := q.Get("nocache") == ""

	payload, contentType, cached, err := h.gateway.Fetch(r.Context(), bucket, key, format, useCache)
	if err != nil {
		zap.L().Error("objectstore: dataset fetch failed",
			zap.String("bucket", bucket),
			zap.String("key", key),
			zap.String("type", string(format)),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "dataset fetch failed")
		return
	}

	w.Header().Set("Content-Type", contentType)
	if cached {
		w.Header().Set("X-Cache", "HIT")
	} else {
		w.Header().Set("X-Cache", "MISS")
	}
	_, _ = w.Write(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
