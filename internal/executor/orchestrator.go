// Package executor fans an order set out across every linked account.
package executor

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"signal-bridge/internal/account"
	"signal-bridge/internal/events"
	"signal-bridge/internal/signal"
	"signal-bridge/internal/sizing"
	"signal-bridge/internal/strategy"
	"signal-bridge/pkg/db"
	"signal-bridge/pkg/exchange"
)

// Status classifies an ExecutionReport.
type Status string

const (
	StatusSuccess Status = "success"
	StatusPartial Status = "partial"
	StatusError   Status = "error"
)

// Result is the outcome for one account. OrderID is set iff Success.
type Result struct {
	AccountID   string  `json:"account_id"`
	AccountName string  `json:"account_name"`
	Success     bool    `json:"success"`
	OrderID     string  `json:"order_id,omitempty"`
	Error       string  `json:"error,omitempty"`
	Symbol      string  `json:"symbol"`
	Side        string  `json:"side"`
	Quantity    float64 `json:"quantity"`
}

// Report aggregates per-account results for one signal.
type Report struct {
	Status  Status   `json:"status"`
	Results []Result `json:"results"`
}

// CredentialSource resolves decrypted credentials per account.
type CredentialSource interface {
	Resolve(ctx context.Context, ownerID, accountID string) (*account.Credentials, error)
}

// VenueFactory builds a venue client bound to one credential pair.
type VenueFactory func(creds *account.Credentials) exchange.Venue

// Orchestrator places the bracket order set on every enabled account,
// strictly sequentially. One account's failure never aborts the rest, and
// nothing placed is ever rolled back: the venue offers no transaction to
// lean on, so partial outcomes are reported, not undone.
type Orchestrator struct {
	Creds    CredentialSource
	NewVenue VenueFactory
	Bus      *events.Bus

	// Heuristic waits so the venue registers an order before its dependent
	// stop/target arrives, and between accounts to respect per-key limits.
	OrderDelay   time.Duration
	AccountDelay time.Duration
}

// Execute processes each enabled account link in configured order and
// classifies the aggregate outcome. It returns an error only for
// system-level misuse; per-account failures land in the report.
func (o *Orchestrator) Execute(ctx context.Context, resolved *strategy.Resolved, sig *signal.Signal) (*Report, error) {
	if resolved == nil || len(resolved.Accounts) == 0 {
		return nil, errors.New("resolved strategy has no accounts")
	}

	side := exchange.SideBuy
	if resolved.Direction == signal.DirectionShort {
		side = exchange.SideSell
	}

	report := &Report{Results: make([]Result, 0, len(resolved.Accounts))}
	for i, link := range resolved.Accounts {
		if i > 0 {
			sleep(ctx, o.AccountDelay)
		}
		report.Results = append(report.Results, o.executeAccount(ctx, link, sig, side))
	}

	report.Status = classify(report.Results)
	if o.Bus != nil {
		o.Bus.Publish(events.EventExecutionCompleted, report)
	}
	return report, nil
}

func (o *Orchestrator) executeAccount(ctx context.Context, link db.AccountLink, sig *signal.Signal, side exchange.Side) Result {
	res := Result{
		AccountID: link.AccountID,
		Symbol:    sig.Symbol,
		Side:      string(side),
	}

	creds, err := o.Creds.Resolve(ctx, sig.OwnerID, link.AccountID)
	if err != nil {
		log.Printf("account %s: credential lookup failed: %v", link.AccountID, err)
		res.Error = account.ErrNotFound.Error()
		return res
	}
	res.AccountName = creds.Name

	qty, err := sizing.Quantity(link.RiskBudget, sig.EntryPrice, sig.StopPrice)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.Quantity = qty

	venue := o.NewVenue(creds)

	// Entry order. Failure here aborts the account: without an entry there
	// is nothing for the stop or target to protect.
	entry, err := venue.PlaceOrder(ctx, exchange.OrderRequest{
		Symbol:      sig.Symbol,
		Side:        side,
		Type:        exchange.OrderTypeLimit,
		Qty:         qty,
		Price:       sig.EntryPrice,
		TimeInForce: exchange.TIFGTC,
		ClientID:    uuid.NewString(),
	})
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.Success = true
	res.OrderID = entry.OrderID
	if o.Bus != nil {
		o.Bus.Publish(events.EventOrderPlaced, res)
	}

	// Protective stop: reduce-only, opposite side, triggered at the stop
	// price. The entry is already live, so a failure here downgrades to a
	// warning rather than failing the account.
	sleep(ctx, o.OrderDelay)
	if _, err := venue.PlaceOrder(ctx, exchange.OrderRequest{
		Symbol:       sig.Symbol,
		Side:         side.Opposite(),
		Type:         exchange.OrderTypeMarket,
		Qty:          qty,
		TriggerPrice: sig.StopPrice,
		ReduceOnly:   true,
		ClientID:     uuid.NewString(),
	}); err != nil {
		log.Printf("account %s: stop order failed (entry %s stands unprotected): %v", link.AccountID, entry.OrderID, err)
	}

	if sig.TakeProfitPrice > 0 {
		sleep(ctx, o.OrderDelay)
		if _, err := venue.PlaceOrder(ctx, exchange.OrderRequest{
			Symbol:      sig.Symbol,
			Side:        side.Opposite(),
			Type:        exchange.OrderTypeLimit,
			Qty:         qty,
			Price:       sig.TakeProfitPrice,
			ReduceOnly:  true,
			TimeInForce: exchange.TIFGTC,
			ClientID:    uuid.NewString(),
		}); err != nil {
			log.Printf("account %s: take-profit order failed: %v", link.AccountID, err)
		}
	}

	return res
}

func classify(results []Result) Status {
	succeeded := 0
	for _, r := range results {
		if r.Success {
			succeeded++
		}
	}
	switch succeeded {
	case len(results):
		return StatusSuccess
	case 0:
		return StatusError
	default:
		return StatusPartial
	}
}

// sleep waits without outliving the request context.
func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
