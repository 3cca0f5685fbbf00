package recommend

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// Handler serves POST /api/recommend.
type Handler struct {
	generator *Generator
}

// NewHandler creates a Handler.
func NewHandler(generator *Generator) *Handler {
	return &Handler{generator: generator}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var profile Profile
	if err := json.NewDecoder(r.Body).Decode(&profile); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := profile.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rec, err := h.generator.Generate(r.Context(), profile)
	if err != nil {
		zap.L().Error("recommend: generation failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "recommendation generation failed")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(rec); err != nil {
		zap.L().Warn("recommend: write response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
