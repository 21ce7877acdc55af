/*
handlers.go - HTTP API handlers for the production ledger

PURPOSE:

	Exposes ledger.Service via REST API. Handles HTTP request/response and
	JSON serialization; every rule lives in the service.

ENDPOINTS:

	Reference data:
	  GET    /api/clients                      List clients (?active=true)
	  POST   /api/clients                      Create client
	  PUT    /api/clients/{id}                 Rename / (de)activate client
	  DELETE /api/clients/{id}                 Delete unused client
	  GET    /api/clients/{id}/projects        Active projects of a client
	  POST   /api/projects                     Create project
	  PUT    /api/projects/{id}                Rename / (de)activate project
	  DELETE /api/projects/{id}                Delete unused project
	  GET    /api/production-types             Type list in display order
	  POST   /api/production-types             Add type
	  PUT    /api/production-types/{name}      (De)activate type

	Productions:
	  POST   /api/productions                  Create
	  GET    /api/productions/{id}             Get (with edit-lock state)
	  PUT    /api/productions/{id}             Update
	  DELETE /api/productions/{id}             Delete
	  POST   /api/productions/{id}/duplicate   Copy, dated today
	  GET    /api/clients/{id}/productions     Client history

	Periods:
	  GET    /api/clients/{id}/periods         Periods (?status=open)
	  GET    /api/periods/{id}                 Period
	  GET    /api/periods/{id}/productions     Members
	  GET    /api/periods/{id}/report          Members + per-type totals
	  GET    /api/periods/{id}/export.csv      CSV download
	  POST   /api/periods/{id}/close           Close (cascade)
	  POST   /api/periods/{id}/reopen          Reopen (cascade)
	  POST   /api/periods/{id}/recalculate     Recompute stored total

ERROR HANDLING:

	Production mutations always answer with ResultResponse
	{success, reason, errors[], production}. Other calls answer with the
	resource or an ErrorResponse. Status codes:
	- 401: Missing or invalid bearer token
	- 403: Role may not perform the call
	- 404: Resource not found
	- 409: Period closed, edit locked, already closed/open, in use
	- 422: Validation errors
	- 500: Persistence failures

SEE ALSO:
  - dto.go: Request/response data structures
  - auth.go: Bearer token middleware
  - server.go: Router setup and middleware
*/
package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/palmapsd/production-ledger/billing"
	"github.com/palmapsd/production-ledger/export"
	"github.com/palmapsd/production-ledger/ledger"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	svc *ledger.Service
	log zerolog.Logger
}

// NewHandler creates a new handler over the ledger service.
func NewHandler(svc *ledger.Service, log zerolog.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// CLIENT HANDLERS
// =============================================================================

// ListClients returns all clients, or only active ones with ?active=true.
func (h *Handler) ListClients(w http.ResponseWriter, r *http.Request) {
	list := h.svc.ListClients
	if r.URL.Query().Get("active") == "true" {
		list = h.svc.ActiveClients
	}
	clients, err := list(r.Context())
	if err != nil {
		h.fail(w, r, "Failed to list clients", err)
		return
	}
	dtos := make([]ClientDTO, len(clients))
	for i, c := range clients {
		dtos[i] = toClientDTO(c)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateClient(w http.ResponseWriter, r *http.Request) {
	var req ClientRequest
	if !decode(w, r, &req) {
		return
	}
	c, err := h.svc.CreateClient(r.Context(), actor(r), req.Name)
	if err != nil {
		h.fail(w, r, "Failed to create client", err)
		return
	}
	writeJSON(w, http.StatusCreated, toClientDTO(c))
}

func (h *Handler) UpdateClient(w http.ResponseWriter, r *http.Request) {
	var req ClientRequest
	if !decode(w, r, &req) {
		return
	}
	active := req.Active == nil || *req.Active
	c, err := h.svc.UpdateClient(r.Context(), actor(r), billing.ClientID(chi.URLParam(r, "id")), req.Name, active)
	if err != nil {
		h.fail(w, r, "Failed to update client", err)
		return
	}
	writeJSON(w, http.StatusOK, toClientDTO(c))
}

func (h *Handler) DeleteClient(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteClient(r.Context(), actor(r), billing.ClientID(chi.URLParam(r, "id"))); err != nil {
		h.fail(w, r, "Failed to delete client", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// PROJECT HANDLERS
// =============================================================================

func (h *Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.svc.ProjectsByClient(r.Context(), billing.ClientID(chi.URLParam(r, "id")))
	if err != nil {
		h.fail(w, r, "Failed to list projects", err)
		return
	}
	dtos := make([]ProjectDTO, len(projects))
	for i, p := range projects {
		dtos[i] = toProjectDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateProject(w http.ResponseWriter, r *http.Request) {
	var req ProjectRequest
	if !decode(w, r, &req) {
		return
	}
	p, err := h.svc.CreateProject(r.Context(), actor(r), billing.ClientID(req.ClientID), req.Name)
	if err != nil {
		h.fail(w, r, "Failed to create project", err)
		return
	}
	writeJSON(w, http.StatusCreated, toProjectDTO(p))
}

func (h *Handler) UpdateProject(w http.ResponseWriter, r *http.Request) {
	var req ProjectRequest
	if !decode(w, r, &req) {
		return
	}
	active := req.Active == nil || *req.Active
	p, err := h.svc.UpdateProject(r.Context(), actor(r), billing.ProjectID(chi.URLParam(r, "id")), req.Name, active)
	if err != nil {
		h.fail(w, r, "Failed to update project", err)
		return
	}
	writeJSON(w, http.StatusOK, toProjectDTO(p))
}

func (h *Handler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteProject(r.Context(), actor(r), billing.ProjectID(chi.URLParam(r, "id"))); err != nil {
		h.fail(w, r, "Failed to delete project", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// PRODUCTION TYPE HANDLERS
// =============================================================================

func (h *Handler) ListProductionTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.svc.ProductionTypes(r.Context())
	if err != nil {
		h.fail(w, r, "Failed to list production types", err)
		return
	}
	dtos := make([]ProductionTypeDTO, len(types))
	for i, t := range types {
		dtos[i] = toTypeDTO(t)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateProductionType(w http.ResponseWriter, r *http.Request) {
	var req ProductionTypeRequest
	if !decode(w, r, &req) {
		return
	}
	t, err := h.svc.CreateProductionType(r.Context(), actor(r), req.Name)
	if err != nil {
		h.fail(w, r, "Failed to create production type", err)
		return
	}
	writeJSON(w, http.StatusCreated, toTypeDTO(t))
}

func (h *Handler) UpdateProductionType(w http.ResponseWriter, r *http.Request) {
	var req ProductionTypeRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Active == nil {
		writeError(w, http.StatusUnprocessableEntity, "Field ativo is required", nil)
		return
	}
	name := billing.ProductionType(chi.URLParam(r, "name"))
	t, err := h.svc.SetProductionTypeActive(r.Context(), actor(r), name, *req.Active)
	if err != nil {
		h.fail(w, r, "Failed to update production type", err)
		return
	}
	writeJSON(w, http.StatusOK, toTypeDTO(t))
}

// =============================================================================
// PRODUCTION HANDLERS
// =============================================================================

func (h *Handler) CreateProduction(w http.ResponseWriter, r *http.Request) {
	var req ProductionRequest
	if !decode(w, r, &req) {
		return
	}
	p, err := h.svc.CreateProduction(r.Context(), actor(r), req.Form())
	h.writeResult(w, r, http.StatusCreated, p, err)
}

func (h *Handler) GetProduction(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.GetProduction(r.Context(), billing.ProductionID(chi.URLParam(r, "id")))
	if err != nil {
		h.fail(w, r, "Failed to get production", err)
		return
	}
	writeJSON(w, http.StatusOK, h.toProductionDTO(p))
}

func (h *Handler) UpdateProduction(w http.ResponseWriter, r *http.Request) {
	var req ProductionRequest
	if !decode(w, r, &req) {
		return
	}
	id := billing.ProductionID(chi.URLParam(r, "id"))
	p, err := h.svc.UpdateProduction(r.Context(), actor(r), id, req.Form())
	h.writeResult(w, r, http.StatusOK, p, err)
}

func (h *Handler) DeleteProduction(w http.ResponseWriter, r *http.Request) {
	id := billing.ProductionID(chi.URLParam(r, "id"))
	err := h.svc.DeleteProduction(r.Context(), actor(r), id)
	h.writeResult(w, r, http.StatusOK, billing.Production{}, err)
}

func (h *Handler) DuplicateProduction(w http.ResponseWriter, r *http.Request) {
	id := billing.ProductionID(chi.URLParam(r, "id"))
	p, err := h.svc.DuplicateProduction(r.Context(), actor(r), id)
	h.writeResult(w, r, http.StatusCreated, p, err)
}

func (h *Handler) ListClientProductions(w http.ResponseWriter, r *http.Request) {
	ps, err := h.svc.ProductionsByClient(r.Context(), billing.ClientID(chi.URLParam(r, "id")))
	if err != nil {
		h.fail(w, r, "Failed to list productions", err)
		return
	}
	writeJSON(w, http.StatusOK, h.toProductionDTOs(ps))
}

// =============================================================================
// PERIOD HANDLERS
// =============================================================================

// ListClientPeriods returns a client's periods, newest first.
// ?status=open restricts to open periods.
func (h *Handler) ListClientPeriods(w http.ResponseWriter, r *http.Request) {
	clientID := billing.ClientID(chi.URLParam(r, "id"))
	list := h.svc.PeriodsByClient
	if r.URL.Query().Get("status") == "open" {
		list = h.svc.OpenPeriodsByClient
	}
	periods, err := list(r.Context(), clientID)
	if err != nil {
		h.fail(w, r, "Failed to list periods", err)
		return
	}
	dtos := make([]PeriodDTO, len(periods))
	for i, p := range periods {
		dtos[i] = toPeriodDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetPeriod(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.GetPeriod(r.Context(), billing.PeriodID(chi.URLParam(r, "id")))
	if err != nil {
		h.fail(w, r, "Failed to get period", err)
		return
	}
	writeJSON(w, http.StatusOK, toPeriodDTO(p))
}

func (h *Handler) ListPeriodProductions(w http.ResponseWriter, r *http.Request) {
	ps, err := h.svc.ProductionsByPeriod(r.Context(), billing.PeriodID(chi.URLParam(r, "id")))
	if err != nil {
		h.fail(w, r, "Failed to list productions", err)
		return
	}
	writeJSON(w, http.StatusOK, h.toProductionDTOs(ps))
}

func (h *Handler) GetPeriodReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.PeriodReport(r.Context(), billing.PeriodID(chi.URLParam(r, "id")))
	if err != nil {
		h.fail(w, r, "Failed to build report", err)
		return
	}
	writeJSON(w, http.StatusOK, PeriodReportDTO{
		Period:      toPeriodDTO(report.Period),
		ClientName:  report.ClientName,
		Productions: h.toProductionDTOs(report.Productions),
		ByType:      toTypeSummaryDTOs(report.ByType),
	})
}

// ExportPeriodCSV streams the period report as a CSV attachment.
func (h *Handler) ExportPeriodCSV(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.PeriodReport(r.Context(), billing.PeriodID(chi.URLParam(r, "id")))
	if err != nil {
		h.fail(w, r, "Failed to build report", err)
		return
	}

	var buf bytes.Buffer
	if err := export.WritePeriodCSV(&buf, report); err != nil {
		h.fail(w, r, "Failed to export report", err)
		return
	}
	name := export.FileName(report.ClientName, report.Period.Label)
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (h *Handler) ClosePeriod(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.ClosePeriod(r.Context(), actor(r), billing.PeriodID(chi.URLParam(r, "id")))
	h.writePeriodResult(w, r, p, err)
}

func (h *Handler) ReopenPeriod(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.ReopenPeriod(r.Context(), actor(r), billing.PeriodID(chi.URLParam(r, "id")))
	h.writePeriodResult(w, r, p, err)
}

func (h *Handler) RecalculatePeriod(w http.ResponseWriter, r *http.Request) {
	id := billing.PeriodID(chi.URLParam(r, "id"))
	total, err := h.svc.RecalculateTotal(r.Context(), id)
	if err != nil {
		h.fail(w, r, "Failed to recalculate period", err)
		return
	}
	writeJSON(w, http.StatusOK, RecalculateResponse{PeriodID: string(id), Total: money(total)})
}

// Summary returns the dashboard overview.
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	sum, err := h.svc.Summary(r.Context())
	if err != nil {
		h.fail(w, r, "Failed to build summary", err)
		return
	}
	writeJSON(w, http.StatusOK, toSummaryDTO(sum))
}

// =============================================================================
// HELPERS
// =============================================================================

func actor(r *http.Request) ledger.Actor {
	a, _ := ActorFrom(r.Context())
	return a
}

func (h *Handler) toProductionDTO(p billing.Production) ProductionDTO {
	reason := h.svc.EditLockReason(p)
	return ProductionDTO{
		ID:         string(p.ID),
		Date:       p.Date.String(),
		ClientID:   string(p.ClientID),
		ProjectID:  string(p.ProjectID),
		Type:       string(p.Type),
		Name:       p.Name,
		Quantity:   p.Quantity,
		UnitPrice:  money(p.UnitPrice),
		Total:      money(p.Total),
		PeriodID:   string(p.PeriodID),
		Status:     string(p.Status),
		Notes:      p.Notes,
		CanEdit:    reason == "",
		LockReason: string(reason),
		CreatedAt:  p.CreatedAt,
		UpdatedAt:  p.UpdatedAt,
	}
}

func (h *Handler) toProductionDTOs(ps []billing.Production) []ProductionDTO {
	out := make([]ProductionDTO, len(ps))
	for i, p := range ps {
		out[i] = h.toProductionDTO(p)
	}
	return out
}

// writeResult answers a production mutation with ResultResponse.
func (h *Handler) writeResult(w http.ResponseWriter, r *http.Request, okStatus int, p billing.Production, err error) {
	if err != nil {
		reason := billing.Classify(err)
		h.logFailure(r, reason, err)
		writeJSON(w, statusFor(reason), ResultResponse{
			Success: false,
			Reason:  string(reason),
			Errors:  billing.Messages(err),
		})
		return
	}
	resp := ResultResponse{Success: true}
	if p.ID != "" {
		dto := h.toProductionDTO(p)
		resp.Production = &dto
	}
	writeJSON(w, okStatus, resp)
}

// writePeriodResult answers a period transition with ResultResponse.
func (h *Handler) writePeriodResult(w http.ResponseWriter, r *http.Request, p billing.Period, err error) {
	if err != nil {
		reason := billing.Classify(err)
		h.logFailure(r, reason, err)
		writeJSON(w, statusFor(reason), ResultResponse{
			Success: false,
			Reason:  string(reason),
			Errors:  billing.Messages(err),
		})
		return
	}
	dto := toPeriodDTO(p)
	writeJSON(w, http.StatusOK, ResultResponse{Success: true, Period: &dto})
}

// fail answers a non-mutation call with ErrorResponse.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, message string, err error) {
	reason := billing.Classify(err)
	h.logFailure(r, reason, err)
	writeJSON(w, statusFor(reason), ErrorResponse{
		Error:   message,
		Reason:  string(reason),
		Details: billing.Messages(err),
	})
}

func (h *Handler) logFailure(r *http.Request, reason billing.FailureReason, err error) {
	log := hlog.FromRequest(r)
	if log.GetLevel() == zerolog.Disabled {
		log = &h.log
	}
	if reason == billing.ReasonPersistence {
		log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		return
	}
	log.Debug().Err(err).Str("reason", string(reason)).Msg("request rejected")
}

func statusFor(reason billing.FailureReason) int {
	switch reason {
	case billing.ReasonValidation:
		return http.StatusUnprocessableEntity
	case billing.ReasonNotFound:
		return http.StatusNotFound
	case billing.ReasonPeriodClosed, billing.ReasonEditLocked, billing.ReasonAlreadyClosed,
		billing.ReasonAlreadyOpen, billing.ReasonInUse:
		return http.StatusConflict
	case billing.ReasonForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var syntaxErr *json.SyntaxError
		msg := "Invalid request body"
		if errors.As(err, &syntaxErr) {
			msg = "Malformed JSON"
		}
		writeError(w, http.StatusBadRequest, msg, err)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = []string{err.Error()}
	}
	writeJSON(w, status, resp)
}
