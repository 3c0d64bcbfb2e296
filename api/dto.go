/*
dto.go - Data Transfer Objects for API responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the purchase domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Response wrappers

AMOUNTS:
  Money and weights are serialized as decimal strings so clients never see
  float rounding.

SEE ALSO:
  - handlers.go: Uses these types
  - purchase/types.go: Domain types
*/
package api

import (
	"time"

	"github.com/Prider/buy-rubber-sub000/purchase"
)

// =============================================================================
// TRANSACTIONS
// =============================================================================

// TransactionListResponse is the body of GET /api/purchases/transactions.
type TransactionListResponse struct {
	Transactions []TransactionDTO `json:"transactions"`
	Pagination   PaginationDTO    `json:"pagination"`
}

// TransactionDTO represents one grouped purchase.
type TransactionDTO struct {
	PurchaseNo      string          `json:"purchaseNo"`
	MemberID        string          `json:"memberId"`
	Owner           *OwnerDTO       `json:"owner"`
	Date            string          `json:"date"`
	CreatedAt       string          `json:"createdAt"`
	LineItems       []LineItemDTO   `json:"lineItems"`
	Adjustments     []AdjustmentDTO `json:"adjustments"`
	TotalAmount     string          `json:"totalAmount"`
	AdjustmentTotal string          `json:"adjustmentTotal"`
	NetAmount       string          `json:"netAmount"`
}

// LineItemDTO represents one purchase line.
type LineItemDTO struct {
	ID          string `json:"id"`
	Date        string `json:"date"`
	CreatedAt   string `json:"createdAt"`
	ProductType string `json:"productType"`
	GrossWeight string `json:"grossWeight"`
	NetWeight   string `json:"netWeight"`
	UnitPrice   string `json:"unitPrice"`
	Amount      string `json:"amount"`
	Notes       string `json:"notes,omitempty"`
}

// AdjustmentDTO represents one fee charged against a purchase.
type AdjustmentDTO struct {
	ID       string `json:"id"`
	Date     string `json:"date"`
	Category string `json:"category"`
	Amount   string `json:"amount"`
	Notes    string `json:"notes,omitempty"`
}

// OwnerDTO represents a member.
type OwnerDTO struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Code string `json:"code"`
}

// PaginationDTO describes the returned window.
type PaginationDTO struct {
	Page          int    `json:"page"`
	Limit         int    `json:"limit"`
	Total         int    `json:"total"`
	TotalPages    int    `json:"totalPages"`
	HasMore       bool   `json:"hasMore"`
	Warning       string `json:"warning,omitempty"`
	OriginalTotal int    `json:"originalTotal,omitempty"`
}

// =============================================================================
// ADMIN
// =============================================================================

// HealthResponse is the body of GET /api/health.
type HealthResponse struct {
	Status        string `json:"status"`
	SchemaVersion uint   `json:"schemaVersion"`
	Members       int    `json:"members"`
	Purchases     int    `json:"purchases"`
	Expenses      int    `json:"expenses"`
}

// BackupResponse is the body of POST /api/admin/backups.
type BackupResponse struct {
	RunID string `json:"runId"`
	Path  string `json:"path"`
}

// ScenarioDTO represents a demo data set.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest is the body of POST /api/scenarios/load.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERTERS
// =============================================================================

func toTransactionListResponse(res *purchase.Result) TransactionListResponse {
	txs := make([]TransactionDTO, len(res.Transactions))
	for i, tx := range res.Transactions {
		txs[i] = toTransactionDTO(tx)
	}
	return TransactionListResponse{
		Transactions: txs,
		Pagination:   toPaginationDTO(res.Pagination),
	}
}

func toTransactionDTO(tx purchase.Transaction) TransactionDTO {
	lines := make([]LineItemDTO, len(tx.LineItems))
	for i, l := range tx.LineItems {
		lines[i] = LineItemDTO{
			ID:          l.ID,
			Date:        formatTime(l.Date),
			CreatedAt:   formatTime(l.CreatedAt),
			ProductType: l.ProductType,
			GrossWeight: l.GrossWeight.String(),
			NetWeight:   l.NetWeight.String(),
			UnitPrice:   l.UnitPrice.String(),
			Amount:      l.Amount.StringFixed(2),
			Notes:       l.Notes,
		}
	}

	adjs := make([]AdjustmentDTO, len(tx.Adjustments))
	for i, a := range tx.Adjustments {
		adjs[i] = AdjustmentDTO{
			ID:       a.ID,
			Date:     formatTime(a.Date),
			Category: a.Category,
			Amount:   a.Amount.StringFixed(2),
			Notes:    a.Notes,
		}
	}

	dto := TransactionDTO{
		PurchaseNo:      tx.PurchaseNo,
		MemberID:        tx.MemberID,
		Date:            formatTime(tx.Date),
		CreatedAt:       formatTime(tx.CreatedAt),
		LineItems:       lines,
		Adjustments:     adjs,
		TotalAmount:     tx.TotalAmount.StringFixed(2),
		AdjustmentTotal: tx.AdjustmentTotal.StringFixed(2),
		NetAmount:       tx.NetAmount.StringFixed(2),
	}
	if tx.Owner != nil {
		dto.Owner = &OwnerDTO{ID: tx.Owner.ID, Name: tx.Owner.Name, Code: tx.Owner.Code}
	}
	return dto
}

func toPaginationDTO(p purchase.Pagination) PaginationDTO {
	return PaginationDTO{
		Page:          p.Page,
		Limit:         p.Limit,
		Total:         p.Total,
		TotalPages:    p.TotalPages,
		HasMore:       p.HasMore,
		Warning:       p.Warning,
		OriginalTotal: p.OriginalTotal,
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
