package api

import (
	"errors"
	"net/http"

	"github.com/confsys/sitecfg/pkg/contextkeys"
	"github.com/confsys/sitecfg/pkg/httputil"
	"github.com/confsys/sitecfg/pkg/observability"
	"github.com/confsys/sitecfg/pkg/schema"
)

// parseCategory resolves the {category} path variable, writing a 404 for
// anything outside the closed category set.
func (s *Server) parseCategory(w http.ResponseWriter, r *http.Request) (schema.Category, bool) {
	raw, ok := httputil.ParsePathStringOrError(w, r, "category")
	if !ok {
		return "", false
	}
	category, err := schema.ParseCategory(raw)
	if err != nil {
		httputil.WriteNotFoundError(w, err.Error())
		return "", false
	}
	return category, true
}

// getAllConfig handles GET /config
func (s *Server) getAllConfig(w http.ResponseWriter, r *http.Request) {
	docs, err := s.resolver.GetAll(r.Context())
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, docs)
}

// getConfig handles GET /config/{category}. The nocache query parameter
// forces a store read.
func (s *Server) getConfig(w http.ResponseWriter, r *http.Request) {
	category, ok := s.parseCategory(w, r)
	if !ok {
		return
	}
	useCache := !httputil.ParseQueryBool(r, "nocache", false)
	doc, err := s.resolver.GetConfig(r.Context(), category, useCache)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, doc)
}

type writeConfigResponse struct {
	Category schema.Category `json:"category"`
	Version  int64           `json:"version"`
}

// putConfig handles PUT /config/{category}
func (s *Server) putConfig(w http.ResponseWriter, r *http.Request) {
	category, ok := s.parseCategory(w, r)
	if !ok {
		return
	}
	var values schema.Values
	if !httputil.ParseJSONOrError(w, r, &values) {
		return
	}
	version, err := s.resolver.Apply(r.Context(), category, values, actorFrom(r))
	if err != nil {
		var verr *schema.ValidationError
		if errors.As(err, &verr) {
			details := make(map[string]string, len(verr.Fields))
			for _, f := range verr.Fields {
				details[f.Field] = f.Message
			}
			httputil.WriteDetailedError(w, http.StatusUnprocessableEntity, err, details)
			return
		}
		httputil.WriteServiceUnavailable(w, err.Error())
		return
	}
	httputil.WriteSuccess(w, writeConfigResponse{Category: category, Version: version})
}

// resetConfig handles DELETE /config/{category}. The row is restored to
// schema defaults rather than removed; the version still advances.
func (s *Server) resetConfig(w http.ResponseWriter, r *http.Request) {
	category, ok := s.parseCategory(w, r)
	if !ok {
		return
	}
	version, err := s.resolver.Reset(r.Context(), category, actorFrom(r))
	if err != nil {
		httputil.WriteServiceUnavailable(w, err.Error())
		return
	}
	httputil.WriteSuccess(w, writeConfigResponse{Category: category, Version: version})
}

// getAuditRecords handles GET /admin/audit with optional category and
// limit query parameters.
func (s *Server) getAuditRecords(w http.ResponseWriter, r *http.Request) {
	var category *schema.Category
	if raw := httputil.ParseQueryString(r, "category", ""); raw != "" {
		parsed, err := schema.ParseCategory(raw)
		if err != nil {
			httputil.WriteBadRequest(w, err.Error())
			return
		}
		category = &parsed
	}
	limit, err := httputil.ParseQueryInt(r, "limit", 0)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	records, err := s.resolver.RecentAuditRecords(r.Context(), category, limit)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, records)
}

// invalidateCache handles POST /admin/cache/invalidate. Without a
// category parameter every entry is dropped.
func (s *Server) invalidateCache(w http.ResponseWriter, r *http.Request) {
	if raw := httputil.ParseQueryString(r, "category", ""); raw != "" {
		category, err := schema.ParseCategory(raw)
		if err != nil {
			httputil.WriteBadRequest(w, err.Error())
			return
		}
		if err := s.resolver.InvalidateCategory(r.Context(), category); err != nil {
			httputil.WriteServiceUnavailable(w, err.Error())
			return
		}
		httputil.WriteSuccess(w, map[string]string{"invalidated": category.String()})
		return
	}
	if err := s.resolver.InvalidateAll(r.Context()); err != nil {
		httputil.WriteServiceUnavailable(w, err.Error())
		return
	}
	httputil.WriteSuccess(w, map[string]string{"invalidated": "all"})
}

// warmCache handles POST /admin/cache/warm
func (s *Server) warmCache(w http.ResponseWriter, r *http.Request) {
	if err := s.resolver.WarmCache(r.Context()); err != nil {
		httputil.WriteServiceUnavailable(w, err.Error())
		return
	}
	httputil.WriteSuccess(w, map[string]string{"status": "warmed"})
}

// getVersions handles GET /admin/versions
func (s *Server) getVersions(w http.ResponseWriter, r *http.Request) {
	httputil.WriteSuccess(w, s.tracker.Versions())
}

// getHealth handles GET /health. Only a fully unavailable report maps to
// 503; degraded dependencies still serve traffic.
func (s *Server) getHealth(w http.ResponseWriter, r *http.Request) {
	report := s.resolver.CheckHealth(r.Context())
	status := http.StatusOK
	if report.Status == observability.StatusUnavailable {
		status = http.StatusServiceUnavailable
	}
	httputil.WriteJSON(w, status, report)
}

// actorFrom extracts the acting identity from the request, defaulting to
// the system actor for unattributed writes. The logging middleware stashes
// the X-Actor header into the context; the header read covers handlers
// exercised without the middleware stack.
func actorFrom(r *http.Request) string {
	if actor := contextkeys.GetActor(r.Context()); actor != "" {
		return actor
	}
	if actor := r.Header.Get("X-Actor"); actor != "" {
		return actor
	}
	return "system"
}
