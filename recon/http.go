package recon

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/recon/rules"
	"github.com/hazyhaar/recon/shield"
)

// NewHandler serves stored runs and the rule set as read-only JSON:
//
//	GET /healthz
//	GET /rules
//	GET /runs?limit=N
//	GET /runs/{id}
//	GET /runs/{id}/findings
//	GET /runs/{id}/extractions
func NewHandler(st *Store, rs *rules.RuleSet, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &apiHandler{st: st, rs: rs}

	r := chi.NewRouter()
	for _, mw := range shield.DefaultStack(logger) {
		r.Use(mw)
	}
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/rules", h.listRules)
	r.Route("/runs", func(r chi.Router) {
		r.Get("/", h.listRuns)
		r.Get("/{id}", h.getRun)
		r.Get("/{id}/findings", h.findings)
		r.Get("/{id}/extractions", h.extractions)
	})
	return r
}

type apiHandler struct {
	st *Store
	rs *rules.RuleSet
}

func (h *apiHandler) listRules(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, RuleInfos(h.rs))
}

func (h *apiHandler) listRuns(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	runs, err := h.st.ListRuns(r.Context(), limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if runs == nil {
		runs = []*StoredRun{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (h *apiHandler) getRun(w http.ResponseWriter, r *http.Request) {
	run, err := lookupRun(r.Context(), h.st, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (h *apiHandler) findings(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := lookupRun(r.Context(), h.st, id); err != nil {
		h.fail(w, r, err)
		return
	}
	findings, err := h.st.Findings(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if findings == nil {
		findings = []Finding{}
	}
	writeJSON(w, http.StatusOK, findings)
}

func (h *apiHandler) extractions(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := lookupRun(r.Context(), h.st, id); err != nil {
		h.fail(w, r, err)
		return
	}
	ext, err := h.st.Extractions(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ext)
}

func (h *apiHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, ErrRunNotFound) {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	shield.GetLogger(r.Context()).Error("recon: api", "error", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
