package api

import (
	"context"
	"net/http"
	"time"

	"scoreline/core"
	"scoreline/service"
)

const healthCheckTimeout = 2 * time.Second

func (a *API) healthCheck(w http.ResponseWriter, r *http.Request) {
	status, code := "Available", http.StatusOK
	if a.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()
		if err := a.health.HealthCheck(ctx); err != nil {
			a.requestLogger(r).Warnw("Health check failed", "error", err)
			status, code = "Unavailable", http.StatusServiceUnavailable
		}
	}
	writeJSON(w, code, map[string]string{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
	})
}

func (a *API) notFound(w http.ResponseWriter, r *http.Request) {
	a.writeError(w, r, http.StatusNotFound, "requested path does not exist", nil)
}

func (a *API) methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	a.writeError(w, r, http.StatusMethodNotAllowed, "method not allowed", nil)
}

func (a *API) listMatches(w http.ResponseWriter, r *http.Request) {
	params, err := ParsePaginationParams(r, defaultPageLimit, maxPageLimit)
	if err != nil {
		a.writeValidationError(w, r, err.Error())
		return
	}
	matches, total, err := a.matches.List(r.Context(), params.Limit, params.CalculateOffset())
	if err != nil {
		a.handleServiceError(w, r, err)
		return
	}
	if matches == nil {
		matches = []*core.Match{}
	}
	writeJSON(w, http.StatusOK, NewPaginationResponse(matches, total, params.Page, params.Limit))
}

func (a *API) createMatch(w http.ResponseWriter, r *http.Request) {
	var in service.CreateMatchInput
	if err := a.decodeJSONBody(w, r, &in); err != nil {
		return
	}
	match, err := a.matches.Create(r.Context(), in)
	if err != nil {
		a.handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, match)
}

func (a *API) getMatch(w http.ResponseWriter, r *http.Request) {
	id, err := matchIDParam(r)
	if err != nil {
		a.writeValidationError(w, r, err.Error())
		return
	}
	match, err := a.matches.Get(r.Context(), id)
	if err != nil {
		a.handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, match)
}

func (a *API) updateScore(w http.ResponseWriter, r *http.Request) {
	id, err := matchIDParam(r)
	if err != nil {
		a.writeValidationError(w, r, err.Error())
		return
	}
	var in service.UpdateScoreInput
	if err := a.decodeJSONBody(w, r, &in); err != nil {
		return
	}
	match, err := a.matches.UpdateScore(r.Context(), id, in)
	if err != nil {
		a.handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, match)
}

func (a *API) listCommentary(w http.ResponseWriter, r *http.Request) {
	id, err := matchIDParam(r)
	if err != nil {
		a.writeValidationError(w, r, err.Error())
		return
	}
	params, err := ParsePaginationParams(r, defaultPageLimit, maxPageLimit)
	if err != nil {
		a.writeValidationError(w, r, err.Error())
		return
	}
	entries, total, err := a.commentary.List(r.Context(), id, params.Limit, params.CalculateOffset())
	if err != nil {
		a.handleServiceError(w, r, err)
		return
	}
	if entries == nil {
		entries = []*core.Commentary{}
	}
	writeJSON(w, http.StatusOK, NewPaginationResponse(entries, total, params.Page, params.Limit))
}

func (a *API) createCommentary(w http.ResponseWriter, r *http.Request) {
	id, err := matchIDParam(r)
	if err != nil {
		a.writeValidationError(w, r, err.Error())
		return
	}
	var in service.CreateCommentaryInput
	if err := a.decodeJSONBody(w, r, &in); err != nil {
		return
	}
	entry, err := a.commentary.Create(r.Context(), id, in)
	if err != nil {
		a.handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}
