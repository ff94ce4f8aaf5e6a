package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"signal-bridge/internal/audit"
	"signal-bridge/internal/events"
	"signal-bridge/internal/executor"
	"signal-bridge/internal/signal"
	"signal-bridge/internal/strategy"
)

// handleWebhook is the signal entrypoint: parse, resolve, execute, audit.
// HTTP failure is reserved for malformed or unaddressable requests; once a
// signal reaches execution the webhook acknowledges with 200 even when
// every account failed.
func (s *Server) handleWebhook(c *gin.Context) {
	ctx := c.Request.Context()
	ownerID := c.Param("ownerId")

	exists, err := s.DB.Queries().UserExists(ctx, ownerID)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	if !exists {
		respondError(c, http.StatusNotFound, "UNKNOWN_OWNER", "unknown owner")
		return
	}

	body, err := c.GetRawData()
	if err != nil {
		respondError(c, http.StatusBadRequest, "UNREADABLE_BODY", err.Error())
		return
	}

	sig, err := signal.Parse(ownerID, body)
	if err != nil {
		s.Audit.Record(ctx, audit.Entry{
			OwnerID: ownerID,
			Status:  "error",
			Message: err.Error(),
			Payload: body,
		})
		respondError(c, http.StatusBadRequest, "INVALID_SIGNAL", err.Error())
		return
	}

	resolved, err := s.Resolver.Resolve(ctx, ownerID, sig.StrategyName, sig.Action)
	if err != nil {
		s.Audit.Record(ctx, audit.Entry{
			OwnerID: ownerID,
			Symbol:  sig.Symbol,
			Action:  sig.Action,
			Status:  "error",
			Message: err.Error(),
			Payload: body,
		})
		switch {
		case errors.Is(err, strategy.ErrNotFound):
			respondError(c, http.StatusNotFound, "STRATEGY_NOT_FOUND", err.Error())
		case errors.Is(err, strategy.ErrBadAction):
			respondError(c, http.StatusBadRequest, "BAD_ACTION", err.Error())
		case errors.Is(err, strategy.ErrDirectionMismatch):
			respondError(c, http.StatusBadRequest, "DIRECTION_MISMATCH", err.Error())
		case errors.Is(err, strategy.ErrNoAccounts):
			// Configuration state, not a malformed request: acknowledge.
			c.JSON(http.StatusOK, gin.H{
				"status":  executor.StatusError,
				"results": []executor.Result{},
				"message": err.Error(),
			})
		default:
			respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		}
		return
	}

	if s.Bus != nil {
		s.Bus.Publish(events.EventSignalReceived, gin.H{
			"owner_id": ownerID,
			"strategy": sig.StrategyName,
			"symbol":   sig.Symbol,
			"action":   sig.Action,
		})
	}

	report, err := s.Orchestrator.Execute(ctx, resolved, sig)
	if err != nil {
		s.Audit.Record(ctx, audit.Entry{
			OwnerID:    ownerID,
			StrategyID: resolved.Strategy.ID,
			Symbol:     sig.Symbol,
			Action:     sig.Action,
			Status:     "error",
			Message:    err.Error(),
			Payload:    body,
		})
		respondError(c, http.StatusInternalServerError, "EXECUTION_ERROR", err.Error())
		return
	}

	succeeded := 0
	for _, r := range report.Results {
		if r.Success {
			succeeded++
		}
	}
	s.Audit.Record(ctx, audit.Entry{
		OwnerID:    ownerID,
		StrategyID: resolved.Strategy.ID,
		Symbol:     sig.Symbol,
		Action:     sig.Action,
		Status:     string(report.Status),
		Message:    fmt.Sprintf("%d/%d accounts succeeded", succeeded, len(report.Results)),
		Payload:    body,
		Results:    report.Results,
	})

	c.JSON(http.StatusOK, report)
}

// webhookUsage documents the expected payload; diagnostic, no side effects.
func (s *Server) webhookUsage(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"method": "POST",
		"path":   "/webhook/" + c.Param("ownerId"),
		"body": gin.H{
			"strategy": "strategy name (required, exact match)",
			"symbol":   "instrument symbol, e.g. BTCUSDT (required)",
			"action":   "direction token containing buy/long or sell/short (required)",
			"entry":    "entry price (required, number or numeric string)",
			"sl":       "stop-loss price (required)",
			"tp":       "take-profit price (optional)",
		},
		"response": "execution report with per-account results; 200 acknowledges receipt even when all accounts fail",
	})
}
