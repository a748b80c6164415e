/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the store with realistic
	data for testing and demos. Each scenario creates the four demo
	accounts and drives one or more purchase requests through the
	pipeline to a characteristic state.

AVAILABLE SCENARIOS:

	fresh-request:    One request just submitted, awaiting level 1
	mid-approval:     Level 1 approved, awaiting level 2
	full-pipeline:    Fully approved request with a purchase order
	rejected-request: Request rejected at level 1

DEMO ACCOUNTS (password for all: password123):

	alice@saveapenny.dev  staff
	bob@saveapenny.dev    approver_level_1
	carol@saveapenny.dev  approver_level_2
	dana@saveapenny.dev   finance

HOW SCENARIOS WORK:
 1. Reset the store (clear all data)
 2. Register the demo accounts
 3. Submit requests as alice
 4. Apply decisions as bob/carol per scenario

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "full-pipeline"}

NOTE:

	Scenarios reset the store. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Shared handler context
  - procure/workflow.go: The pipeline being demonstrated
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/Nsarob/Save-a-penny/identity"
	"github.com/Nsarob/Save-a-penny/procure"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "fresh-request",
		Name:        "Fresh Request",
		Description: "Staff request just submitted, awaiting level 1 approval",
	},
	{
		ID:          "mid-approval",
		Name:        "Mid Approval",
		Description: "Level 1 approved, awaiting level 2 decision",
	},
	{
		ID:          "full-pipeline",
		Name:        "Full Pipeline",
		Description: "Request approved at both levels with a generated purchase order",
	},
	{
		ID:          "rejected-request",
		Name:        "Rejected Request",
		Description: "Request rejected at level 1 with a comment",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	if h.currentScenario == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	for _, s := range scenarios {
		if s.ID == h.currentScenario {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, ScenarioDTO{ID: h.currentScenario, Name: h.currentScenario})
}

// LoadScenario resets the store and loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if h.Resetter == nil {
		writeError(w, http.StatusNotImplemented, "Scenario loading is not available", nil)
		return
	}

	ctx := r.Context()
	if err := h.Resetter.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset store", err)
		return
	}
	h.currentScenario = ""

	var err error
	switch req.ScenarioID {
	case "fresh-request":
		err = h.loadFreshRequest(ctx)
	case "mid-approval":
		err = h.loadMidApproval(ctx)
	case "full-pipeline":
		err = h.loadFullPipeline(ctx)
	case "rejected-request":
		err = h.loadRejectedRequest(ctx)
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Unknown scenario: %s", req.ScenarioID), nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
		return
	}

	h.currentScenario = req.ScenarioID
	h.Log.Info().Str("scenario", req.ScenarioID).Msg("scenario loaded")
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

type demoAccounts struct {
	staff      procure.UserID
	approverL1 procure.UserID
	approverL2 procure.UserID
	finance    procure.UserID
}

const demoPassword = "password123"

func (h *Handler) seedAccounts(ctx context.Context) (demoAccounts, error) {
	var acc demoAccounts
	specs := []struct {
		out  *procure.UserID
		name string
		mail string
		role procure.Role
	}{
		{&acc.staff, "Alice Uwase", "alice@saveapenny.dev", procure.RoleStaff},
		{&acc.approverL1, "Bob Mugisha", "bob@saveapenny.dev", procure.RoleApproverL1},
		{&acc.approverL2, "Carol Keza", "carol@saveapenny.dev", procure.RoleApproverL2},
		{&acc.finance, "Dana Ishimwe", "dana@saveapenny.dev", procure.RoleFinance},
	}
	for _, s := range specs {
		u, err := h.Directory.Register(ctx, identity.Registration{
			Email:    s.mail,
			Name:     s.name,
			Password: demoPassword,
			Role:     string(s.role),
		})
		if err != nil {
			return acc, fmt.Errorf("seeding %s: %w", s.mail, err)
		}
		*s.out = u.ID
	}
	return acc, nil
}

func officeSupplies() []procure.RequestItem {
	return []procure.RequestItem{
		{Name: "Pens", Description: "Blue ballpoint, box of 50", Quantity: 10, UnitPrice: decimal.NewFromFloat(2.00)},
		{Name: "Notebooks", Description: "A5 ruled", Quantity: 20, UnitPrice: decimal.NewFromFloat(3.50)},
		{Name: "Printer paper", Description: "A4 80gsm, ream", Quantity: 5, UnitPrice: decimal.NewFromFloat(6.25)},
	}
}

func (h *Handler) loadFreshRequest(ctx context.Context) error {
	acc, err := h.seedAccounts(ctx)
	if err != nil {
		return err
	}
	_, err = h.Ledger.Submit(ctx, acc.staff, "Office supplies Q3", "Restock for the Kigali office", officeSupplies())
	return err
}

func (h *Handler) loadMidApproval(ctx context.Context) error {
	acc, err := h.seedAccounts(ctx)
	if err != nil {
		return err
	}
	req, err := h.Ledger.Submit(ctx, acc.staff, "Standing desks", "Two sit-stand desks for the design team", []procure.RequestItem{
		{Name: "Standing desk", Description: "Electric, 120x70cm", Quantity: 2, UnitPrice: decimal.NewFromFloat(420.00)},
	})
	if err != nil {
		return err
	}
	_, err = h.Workflow.Decide(ctx, req.ID, procure.Level1, acc.approverL1, procure.DecisionApproved, "within budget")
	return err
}

func (h *Handler) loadFullPipeline(ctx context.Context) error {
	acc, err := h.seedAccounts(ctx)
	if err != nil {
		return err
	}
	req, err := h.Ledger.Submit(ctx, acc.staff, "Office supplies Q3", "Restock for the Kigali office", officeSupplies())
	if err != nil {
		return err
	}
	_, err = h.Ledger.AttachProforma(ctx, req.ID, acc.staff, procure.Proforma{
		VendorName:    "Kigali Office Mart",
		VendorContact: "sales@kigaliofficemart.rw",
		InvoiceNumber: "PF-2031",
		Items:         officeSupplies(),
		TotalAmount:   procure.ItemsTotal(officeSupplies()),
		PaymentTerms:  "Net 30",
	})
	if err != nil {
		return err
	}
	if _, err := h.Workflow.Decide(ctx, req.ID, procure.Level1, acc.approverL1, procure.DecisionApproved, "within budget"); err != nil {
		return err
	}
	_, err = h.Workflow.Decide(ctx, req.ID, procure.Level2, acc.approverL2, procure.DecisionApproved, "vendor confirmed")
	return err
}

func (h *Handler) loadRejectedRequest(ctx context.Context) error {
	acc, err := h.seedAccounts(ctx)
	if err != nil {
		return err
	}
	req, err := h.Ledger.Submit(ctx, acc.staff, "Espresso machine", "For the break room", []procure.RequestItem{
		{Name: "Espresso machine", Description: "Commercial grade", Quantity: 1, UnitPrice: decimal.NewFromFloat(2300.00)},
	})
	if err != nil {
		return err
	}
	_, err = h.Workflow.Decide(ctx, req.ID, procure.Level1, acc.approverL1, procure.DecisionRejected, "over discretionary budget")
	return err
}
