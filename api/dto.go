/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:

	Defines the JSON structures for API communication. Field names follow the
	Portuguese vocabulary the front-end already uses (data, cliente_id,
	nome_producao, valor_unitario, ...), so the domain model can keep English
	names without breaking clients.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

MONEY:

	Amounts are returned as strings with two decimals ("450.00"). Requests
	accept either a JSON number or a decimal string.

VALIDATION:

	Validation is done in the billing package, not in DTOs. DTOs are pure
	data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - billing/validation.go: ProductionForm rules
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/palmapsd/production-ledger/billing"
	"github.com/palmapsd/production-ledger/ledger"
)

// =============================================================================
// REFERENCE DATA
// =============================================================================

type ClientDTO struct {
	ID        string    `json:"id"`
	Name      string    `json:"nome"`
	Active    bool      `json:"ativo"`
	CreatedAt time.Time `json:"created_at"`
}

type ClientRequest struct {
	Name   string `json:"nome"`
	Active *bool  `json:"ativo,omitempty"`
}

type ProjectDTO struct {
	ID       string `json:"id"`
	ClientID string `json:"cliente_id"`
	Name     string `json:"nome"`
	Active   bool   `json:"ativo"`
}

type ProjectRequest struct {
	ClientID string `json:"cliente_id"`
	Name     string `json:"nome"`
	Active   *bool  `json:"ativo,omitempty"`
}

type ProductionTypeDTO struct {
	Name     string `json:"nome"`
	Active   bool   `json:"ativo"`
	Position int    `json:"ordem"`
}

type ProductionTypeRequest struct {
	Name   string `json:"nome"`
	Active *bool  `json:"ativo,omitempty"`
}

// =============================================================================
// PRODUCTIONS
// =============================================================================

// ProductionDTO represents a production in API responses.
type ProductionDTO struct {
	ID         string    `json:"id"`
	Date       string    `json:"data"`
	ClientID   string    `json:"cliente_id"`
	ProjectID  string    `json:"projeto_id,omitempty"`
	Type       string    `json:"tipo"`
	Name       string    `json:"nome_producao"`
	Quantity   int       `json:"quantidade"`
	UnitPrice  string    `json:"valor_unitario"`
	Total      string    `json:"total"`
	PeriodID   string    `json:"periodo_id"`
	Status     string    `json:"status"`
	Notes      string    `json:"observacoes,omitempty"`
	CanEdit    bool      `json:"pode_editar"`
	LockReason string    `json:"motivo_bloqueio,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ProductionRequest is the body of create and update calls.
type ProductionRequest struct {
	Date      string          `json:"data"`
	ClientID  string          `json:"cliente_id"`
	ProjectID string          `json:"projeto_id"`
	Type      string          `json:"tipo"`
	Name      string          `json:"nome_producao"`
	Quantity  int             `json:"quantidade"`
	UnitPrice decimal.Decimal `json:"valor_unitario"`
	Notes     string          `json:"observacoes"`
}

// Form converts the request into the billing form.
func (r ProductionRequest) Form() billing.ProductionForm {
	return billing.ProductionForm{
		Date:      r.Date,
		ClientID:  billing.ClientID(r.ClientID),
		ProjectID: billing.ProjectID(r.ProjectID),
		Type:      billing.ProductionType(r.Type),
		Name:      r.Name,
		Quantity:  r.Quantity,
		UnitPrice: r.UnitPrice,
		Notes:     r.Notes,
	}
}

// ResultResponse is returned by every production mutation and by period
// close/reopen. Production or Period carries the record on success.
type ResultResponse struct {
	Success    bool           `json:"success"`
	Reason     string         `json:"reason,omitempty"`
	Errors     []string       `json:"errors,omitempty"`
	Production *ProductionDTO `json:"production,omitempty"`
	Period     *PeriodDTO     `json:"periodo,omitempty"`
}

// =============================================================================
// PERIODS
// =============================================================================

type PeriodDTO struct {
	ID        string    `json:"id"`
	ClientID  string    `json:"cliente_id"`
	Start     string    `json:"data_inicio"`
	End       string    `json:"data_fim"`
	Label     string    `json:"nome_periodo"`
	Status    string    `json:"status"`
	Total     string    `json:"total_periodo"`
	UpdatedAt time.Time `json:"updated_at"`
}

type TypeSummaryDTO struct {
	Type     string `json:"tipo"`
	Count    int    `json:"registros"`
	Quantity int    `json:"quantidade"`
	Total    string `json:"total"`
}

// PeriodReportDTO is the closing screen payload.
type PeriodReportDTO struct {
	Period      PeriodDTO        `json:"periodo"`
	ClientName  string           `json:"cliente_nome"`
	Productions []ProductionDTO  `json:"producoes"`
	ByType      []TypeSummaryDTO `json:"totais_por_tipo"`
}

// SummaryDTO is the dashboard payload.
type SummaryDTO struct {
	Today            string `json:"hoje"`
	CurrentPeriod    string `json:"periodo_atual"`
	ActiveClients    int    `json:"clientes_ativos"`
	Productions      int    `json:"total_producoes"`
	TodayProductions int    `json:"producoes_hoje"`
	TodayTotal       string `json:"valor_hoje"`
	OpenPeriods      int    `json:"periodos_abertos"`
	OpenTotal        string `json:"total_periodos_abertos"`
}

type RecalculateResponse struct {
	PeriodID string `json:"periodo_id"`
	Total    string `json:"total_periodo"`
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is returned by failed non-mutation calls.
type ErrorResponse struct {
	Error   string   `json:"error"`
	Reason  string   `json:"reason,omitempty"`
	Details []string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func money(d decimal.Decimal) string { return d.StringFixed(2) }

func toClientDTO(c billing.Client) ClientDTO {
	return ClientDTO{ID: string(c.ID), Name: c.Name, Active: c.Active, CreatedAt: c.CreatedAt}
}

func toProjectDTO(p billing.Project) ProjectDTO {
	return ProjectDTO{ID: string(p.ID), ClientID: string(p.ClientID), Name: p.Name, Active: p.Active}
}

func toTypeDTO(t billing.TypeDefinition) ProductionTypeDTO {
	return ProductionTypeDTO{Name: string(t.Name), Active: t.Active, Position: t.Position}
}

func toPeriodDTO(p billing.Period) PeriodDTO {
	return PeriodDTO{
		ID:        string(p.ID),
		ClientID:  string(p.ClientID),
		Start:     p.Start.String(),
		End:       p.End.String(),
		Label:     p.Label,
		Status:    string(p.Status),
		Total:     money(p.Total),
		UpdatedAt: p.UpdatedAt,
	}
}

func toTypeSummaryDTOs(ss []billing.TypeSummary) []TypeSummaryDTO {
	out := make([]TypeSummaryDTO, len(ss))
	for i, s := range ss {
		out[i] = TypeSummaryDTO{Type: string(s.Type), Count: s.Count, Quantity: s.Quantity, Total: money(s.Total)}
	}
	return out
}

func toSummaryDTO(s ledger.Summary) SummaryDTO {
	return SummaryDTO{
		Today:            s.Today.String(),
		CurrentPeriod:    s.CurrentPeriod.Label,
		ActiveClients:    s.ActiveClients,
		Productions:      s.Productions,
		TodayProductions: s.TodayProductions,
		TodayTotal:       money(s.TodayTotal),
		OpenPeriods:      s.OpenPeriods,
		OpenTotal:        money(s.OpenTotal),
	}
}
