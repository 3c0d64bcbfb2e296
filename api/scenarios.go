/*
scenarios.go - Demo data loaders for testing and demonstrations

PURPOSE:
	Provides pre-built data sets that populate the ledger with realistic
	rubber purchases for demos and manual testing of the transaction list.

AVAILABLE SCENARIOS:

	cooperative-week:   A week of multi-line purchases with fees
	season-history:     Purchases spread over 200 days (default window demo)
	high-volume:        Several hundred purchases (pagination demo)
	shared-purchase-no: One purchase number reused by two members

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Create members
 3. Append purchases, one batch per purchase number
 4. Append fees, linked and unlinked

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "cooperative-week"}

NOTE:
	Scenarios reset the database. Only enable them in development.

SEE ALSO:
  - handlers.go: Other endpoints
  - store/sqlite/writes.go: Write helpers used here
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Prider/buy-rubber-sub000/purchase"
	"github.com/Prider/buy-rubber-sub000/store/sqlite"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "cooperative-week",
		Name:        "Cooperative Week",
		Description: "Three members, multi-line purchases with transport and weighing fees",
	},
	{
		ID:          "season-history",
		Name:        "Season History",
		Description: "Purchases over 200 days; only the last 90 show without a date range",
	},
	{
		ID:          "high-volume",
		Name:        "High Volume",
		Description: "Several hundred purchases across ten members for paging",
	},
	{
		ID:          "shared-purchase-no",
		Name:        "Shared Purchase Number",
		Description: "One purchase number recorded against two members",
	},
}

var demoMembers = []purchase.Owner{
	{ID: "mem-001", Name: "Somchai Rattanakul", Code: "M001"},
	{ID: "mem-002", Name: "Anong Srisuk", Code: "M002"},
	{ID: "mem-003", Name: "Prasert Kaewmanee", Code: "M003"},
	{ID: "mem-004", Name: "Malee Thongdee", Code: "M004"},
	{ID: "mem-005", Name: "Wichai Boonmee", Code: "M005"},
	{ID: "mem-006", Name: "Sunisa Chaiyaporn", Code: "M006"},
	{ID: "mem-007", Name: "Kittisak Phromma", Code: "M007"},
	{ID: "mem-008", Name: "Ratana Inthasorn", Code: "M008"},
	{ID: "mem-009", Name: "Surachai Nakprasert", Code: "M009"},
	{ID: "mem-010", Name: "Pornthip Saelim", Code: "M010"},
}

var productTypes = []string{"latex", "cup-lump", "rubber-sheet"}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	current := h.loadedScenario()
	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario resets the ledger and loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := LoadScenario(r.Context(), h.Store, req.ScenarioID, time.Now()); err != nil {
		if errors.Is(err, errUnknownScenario) {
			writeError(w, http.StatusBadRequest, "Unknown scenario: "+req.ScenarioID, nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
		return
	}

	h.setLoadedScenario(req.ScenarioID)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "scenario": req.ScenarioID})
}

// ResetDatabase clears all data.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.setLoadedScenario("")
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) loadedScenario() string {
	h.scenarioMu.RLock()
	defer h.scenarioMu.RUnlock()
	return h.currentScenario
}

func (h *Handler) setLoadedScenario(id string) {
	h.scenarioMu.Lock()
	defer h.scenarioMu.Unlock()
	h.currentScenario = id
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

var errUnknownScenario = errors.New("unknown scenario")

// LoadScenario resets store and seeds scenario id relative to now.
func LoadScenario(ctx context.Context, store *sqlite.Store, id string, now time.Time) error {
	var load func(context.Context, *sqlite.Store, time.Time) error
	switch id {
	case "cooperative-week":
		load = loadCooperativeWeek
	case "season-history":
		load = loadSeasonHistory
	case "high-volume":
		load = loadHighVolume
	case "shared-purchase-no":
		load = loadSharedPurchaseNo
	default:
		return errUnknownScenario
	}

	if err := store.Reset(ctx); err != nil {
		return err
	}
	return load(ctx, store, now)
}

func loadCooperativeWeek(ctx context.Context, store *sqlite.Store, now time.Time) error {
	members := demoMembers[:3]
	if err := saveMembers(ctx, store, members); err != nil {
		return err
	}

	seq := 0
	for day := 6; day >= 0; day-- {
		for _, m := range members {
			seq++
			if seq%4 == 0 {
				continue
			}
			at := now.AddDate(0, 0, -day).Add(time.Duration(seq) * time.Minute)
			no := purchaseNo(at, seq)
			if err := appendPurchase(ctx, store, no, m.ID, at, 1+seq%3, seq); err != nil {
				return err
			}
			if seq%3 == 0 {
				if err := appendFee(ctx, store, &no, at, "transport", 100); err != nil {
					return err
				}
			}
			if seq%5 == 0 {
				if err := appendFee(ctx, store, &no, at, "weighing", 20); err != nil {
					return err
				}
			}
		}
	}

	// Unlinked office expense; never appears in transactions.
	return appendFee(ctx, store, nil, now, "office", 350)
}

func loadSeasonHistory(ctx context.Context, store *sqlite.Store, now time.Time) error {
	members := demoMembers[:4]
	if err := saveMembers(ctx, store, members); err != nil {
		return err
	}

	seq := 0
	for day := 200; day >= 0; day -= 5 {
		seq++
		m := members[seq%len(members)]
		at := now.AddDate(0, 0, -day)
		if err := appendPurchase(ctx, store, purchaseNo(at, seq), m.ID, at, 1+seq%2, seq); err != nil {
			return err
		}
	}
	return nil
}

func loadHighVolume(ctx context.Context, store *sqlite.Store, now time.Time) error {
	if err := saveMembers(ctx, store, demoMembers); err != nil {
		return err
	}

	for seq := 1; seq <= 400; seq++ {
		m := demoMembers[seq%len(demoMembers)]
		at := now.Add(-time.Duration(seq) * 3 * time.Hour)
		if err := appendPurchase(ctx, store, purchaseNo(at, seq), m.ID, at, 1+seq%4, seq); err != nil {
			return err
		}
		if seq%7 == 0 {
			no := purchaseNo(at, seq)
			if err := appendFee(ctx, store, &no, at, "transport", 80); err != nil {
				return err
			}
		}
	}
	return nil
}

func loadSharedPurchaseNo(ctx context.Context, store *sqlite.Store, now time.Time) error {
	members := demoMembers[:2]
	if err := saveMembers(ctx, store, members); err != nil {
		return err
	}

	no := purchaseNo(now, 1)
	if err := appendPurchase(ctx, store, no, members[0].ID, now.Add(-time.Hour), 2, 1); err != nil {
		return err
	}
	if err := appendPurchase(ctx, store, no, members[1].ID, now.Add(-2*time.Hour), 1, 2); err != nil {
		return err
	}
	return appendFee(ctx, store, &no, now, "transport", 100)
}

// =============================================================================
// HELPERS
// =============================================================================

func saveMembers(ctx context.Context, store *sqlite.Store, members []purchase.Owner) error {
	for _, m := range members {
		if err := store.SaveMember(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

func purchaseNo(at time.Time, seq int) string {
	return fmt.Sprintf("PUR-%s-%04d", at.UTC().Format("20060102"), seq)
}

// appendPurchase writes one purchase of n weighed lots. Weights and prices
// vary with seed so totals differ between purchases.
func appendPurchase(ctx context.Context, store *sqlite.Store, no, memberID string, at time.Time, n, seed int) error {
	lines := make([]purchase.LineItem, n)
	for i := range lines {
		gross := decimal.NewFromInt(int64(40 + (seed*7+i*13)%60))
		net := gross.Mul(decimal.RequireFromString("0.95")).Round(1)
		price := decimal.NewFromInt(int64(48 + (seed+i)%12))
		lines[i] = purchase.LineItem{
			PurchaseNo:  no,
			MemberID:    memberID,
			Date:        at,
			CreatedAt:   at.Add(time.Duration(i) * time.Second),
			ProductType: productTypes[(seed+i)%len(productTypes)],
			GrossWeight: gross,
			NetWeight:   net,
			UnitPrice:   price,
			Amount:      net.Mul(price).Round(2),
		}
	}
	return store.AppendPurchases(ctx, lines)
}

func appendFee(ctx context.Context, store *sqlite.Store, no *string, at time.Time, category string, amount int64) error {
	return store.AppendExpense(ctx, purchase.Adjustment{
		PurchaseNo: no,
		Date:       at,
		Category:   category,
		Amount:     decimal.NewFromInt(amount),
	})
}
