package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"signal-bridge/pkg/db"
)

type accountLinkRequest struct {
	AccountID  string  `json:"account_id" binding:"required"`
	Enabled    bool    `json:"enabled"`
	RiskBudget float64 `json:"risk_budget" binding:"required"`
}

type createStrategyRequest struct {
	Name      string               `json:"name" binding:"required"`
	Direction string               `json:"direction"`
	Enabled   bool                 `json:"enabled"`
	Accounts  []accountLinkRequest `json:"accounts"`
}

type createAccountRequest struct {
	Name      string `json:"name" binding:"required"`
	APIKey    string `json:"api_key" binding:"required"`
	APISecret string `json:"api_secret" binding:"required"`
	Testnet   bool   `json:"testnet"`
}

// listStrategies returns the current user's strategies with account links.
func (s *Server) listStrategies(c *gin.Context) {
	userID := CurrentUserID(c)
	if userID == "" {
		respondError(c, http.StatusUnauthorized, "UNAUTHENTICATED", "unauthorized")
		return
	}

	strategies, err := s.DB.Queries().ListStrategiesByOwner(c.Request.Context(), userID)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "DB_ERROR", err.Error())
		return
	}

	out := make([]gin.H, 0, len(strategies))
	for _, st := range strategies {
		links := make([]gin.H, 0, len(st.Links))
		for _, l := range st.Links {
			links = append(links, gin.H{
				"account_id":  l.AccountID,
				"enabled":     l.Enabled,
				"risk_budget": l.RiskBudget,
			})
		}
		out = append(out, gin.H{
			"id":        st.ID,
			"name":      st.Name,
			"direction": st.Direction,
			"enabled":   st.Enabled,
			"accounts":  links,
		})
	}
	c.JSON(http.StatusOK, out)
}

// createStrategy creates a strategy bound to the current user.
func (s *Server) createStrategy(c *gin.Context) {
	userID := CurrentUserID(c)
	if userID == "" {
		respondError(c, http.StatusUnauthorized, "UNAUTHENTICATED", "unauthorized")
		return
	}
	var req createStrategyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_PAYLOAD", err.Error())
		return
	}
	direction := req.Direction
	switch direction {
	case "":
		direction = "both"
	case "long", "short", "both":
	default:
		respondError(c, http.StatusBadRequest, "INVALID_DIRECTION", "direction must be long, short or both")
		return
	}

	ctx := c.Request.Context()

	// Every linked account must belong to the caller.
	for _, l := range req.Accounts {
		if _, err := s.DB.Queries().GetAccountByID(ctx, userID, l.AccountID); err != nil {
			if errors.Is(err, db.ErrNotFound) {
				respondError(c, http.StatusBadRequest, "INVALID_ACCOUNT", "invalid account for current user")
			} else {
				respondError(c, http.StatusInternalServerError, "DB_ERROR", err.Error())
			}
			return
		}
		if l.RiskBudget <= 0 {
			respondError(c, http.StatusBadRequest, "INVALID_RISK_BUDGET", "risk_budget must be positive")
			return
		}
	}

	st := db.Strategy{
		ID:        uuid.NewString(),
		UserID:    userID,
		Name:      req.Name,
		Direction: direction,
		Enabled:   req.Enabled,
	}
	for _, l := range req.Accounts {
		st.Links = append(st.Links, db.AccountLink{
			StrategyID: st.ID,
			AccountID:  l.AccountID,
			Enabled:    l.Enabled,
			RiskBudget: l.RiskBudget,
		})
	}
	if err := s.DB.Queries().CreateStrategy(ctx, st); err != nil {
		respondError(c, http.StatusInternalServerError, "DB_ERROR", err.Error())
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": st.ID, "name": st.Name})
}

// updateStrategy toggles enabled/direction on one strategy.
func (s *Server) updateStrategy(c *gin.Context) {
	userID := CurrentUserID(c)
	if userID == "" {
		respondError(c, http.StatusUnauthorized, "UNAUTHENTICATED", "unauthorized")
		return
	}
	var req struct {
		Enabled   bool   `json:"enabled"`
		Direction string `json:"direction" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_PAYLOAD", err.Error())
		return
	}
	switch req.Direction {
	case "long", "short", "both":
	default:
		respondError(c, http.StatusBadRequest, "INVALID_DIRECTION", "direction must be long, short or both")
		return
	}

	err := s.DB.Queries().UpdateStrategy(c.Request.Context(), userID, c.Param("id"), req.Enabled, req.Direction)
	if errors.Is(err, db.ErrNotFound) {
		respondError(c, http.StatusNotFound, "STRATEGY_NOT_FOUND", "strategy not found")
		return
	}
	if err != nil {
		respondError(c, http.StatusInternalServerError, "DB_ERROR", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": c.Param("id")})
}

// listAccounts returns the user's accounts without credential material.
func (s *Server) listAccounts(c *gin.Context) {
	userID := CurrentUserID(c)
	if userID == "" {
		respondError(c, http.StatusUnauthorized, "UNAUTHENTICATED", "unauthorized")
		return
	}

	accounts, err := s.DB.Queries().ListAccountsByUser(c.Request.Context(), userID)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "DB_ERROR", err.Error())
		return
	}

	out := make([]gin.H, 0, len(accounts))
	for _, a := range accounts {
		// Ciphertext stays server-side; nothing derived from the key pair
		// leaves this handler.
		out = append(out, gin.H{
			"id":         a.ID,
			"name":       a.Name,
			"testnet":    a.Testnet,
			"is_active":  a.IsActive,
			"created_at": a.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, out)
}

// createAccount stores a credential pair, encrypted before insert.
func (s *Server) createAccount(c *gin.Context) {
	userID := CurrentUserID(c)
	if userID == "" {
		respondError(c, http.StatusUnauthorized, "UNAUTHENTICATED", "unauthorized")
		return
	}
	var req createAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_PAYLOAD", err.Error())
		return
	}
	if s.KeyManager == nil {
		respondError(c, http.StatusInternalServerError, "CONFIG_ERROR", "encryption key not configured")
		return
	}

	encKey, err := s.KeyManager.Encrypt(req.APIKey)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ENCRYPTION_ERROR", err.Error())
		return
	}
	encSecret, err := s.KeyManager.Encrypt(req.APISecret)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ENCRYPTION_ERROR", err.Error())
		return
	}

	acct := db.Account{
		ID:        uuid.NewString(),
		UserID:    userID,
		Name:      req.Name,
		APIKey:    encKey,
		APISecret: encSecret,
		Testnet:   req.Testnet,
	}
	if err := s.DB.Queries().CreateAccount(c.Request.Context(), acct); err != nil {
		respondError(c, http.StatusInternalServerError, "DB_ERROR", err.Error())
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": acct.ID, "name": acct.Name})
}

// deactivateAccount soft-deletes a credential pair.
func (s *Server) deactivateAccount(c *gin.Context) {
	userID := CurrentUserID(c)
	if userID == "" {
		respondError(c, http.StatusUnauthorized, "UNAUTHENTICATED", "unauthorized")
		return
	}
	err := s.DB.Queries().DeactivateAccount(c.Request.Context(), userID, c.Param("id"))
	if errors.Is(err, db.ErrNotFound) {
		respondError(c, http.StatusNotFound, "ACCOUNT_NOT_FOUND", "account not found")
		return
	}
	if err != nil {
		respondError(c, http.StatusInternalServerError, "DB_ERROR", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": c.Param("id"), "is_active": false})
}

// listAudits returns recent audit records for the current user.
func (s *Server) listAudits(c *gin.Context) {
	userID := CurrentUserID(c)
	if userID == "" {
		respondError(c, http.StatusUnauthorized, "UNAUTHENTICATED", "unauthorized")
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	records, err := s.DB.Queries().ListAuditsByUser(c.Request.Context(), userID, limit)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "DB_ERROR", err.Error())
		return
	}

	out := make([]gin.H, 0, len(records))
	for _, r := range records {
		out = append(out, gin.H{
			"id":          r.ID,
			"strategy_id": r.StrategyID,
			"symbol":      r.Symbol,
			"action":      r.Action,
			"status":      r.Status,
			"message":     r.Message,
			"payload":     r.Payload,
			"results":     r.Results,
			"created_at":  r.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, out)
}
