// Package signal models the inbound trading-signal notification.
package signal

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrMissingField = errors.New("missing required field")

// Direction is the classified intent of a free-text action token.
type Direction string

const (
	DirectionLong         Direction = "long"
	DirectionShort        Direction = "short"
	DirectionUnrecognized Direction = "unrecognized"
)

// Signal is one parsed webhook notification. It lives for a single
// invocation; nothing retains it afterwards except the audit payload.
type Signal struct {
	OwnerID         string
	StrategyName    string
	Symbol          string
	Action          string
	EntryPrice      float64
	StopPrice       float64
	TakeProfitPrice float64 // 0 when absent
	Raw             []byte  // original body, kept verbatim for the audit trail
}

// looseNumber accepts JSON numbers and numeric strings; alert senders are
// not consistent about which they emit.
type looseNumber float64

func (n *looseNumber) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*n = 0
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("not a number: %q", s)
	}
	*n = looseNumber(f)
	return nil
}

type payload struct {
	Strategy string      `json:"strategy"`
	Symbol   string      `json:"symbol"`
	Action   string      `json:"action"`
	Entry    looseNumber `json:"entry"`
	SL       looseNumber `json:"sl"`
	TP       looseNumber `json:"tp"`
}

// Parse validates a webhook body into a Signal. strategy, symbol, action,
// entry and sl are required; tp is optional.
func Parse(ownerID string, body []byte) (*Signal, error) {
	var p payload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("invalid JSON payload: %w", err)
	}

	switch {
	case strings.TrimSpace(p.Strategy) == "":
		return nil, fmt.Errorf("%w: strategy", ErrMissingField)
	case strings.TrimSpace(p.Symbol) == "":
		return nil, fmt.Errorf("%w: symbol", ErrMissingField)
	case strings.TrimSpace(p.Action) == "":
		return nil, fmt.Errorf("%w: action", ErrMissingField)
	case p.Entry == 0:
		return nil, fmt.Errorf("%w: entry", ErrMissingField)
	case p.SL == 0:
		return nil, fmt.Errorf("%w: sl", ErrMissingField)
	}

	return &Signal{
		OwnerID:         ownerID,
		StrategyName:    strings.TrimSpace(p.Strategy),
		Symbol:          strings.ToUpper(strings.TrimSpace(p.Symbol)),
		Action:          p.Action,
		EntryPrice:      float64(p.Entry),
		StopPrice:       float64(p.SL),
		TakeProfitPrice: float64(p.TP),
		Raw:             body,
	}, nil
}

// ClassifyAction maps a free-text action token onto a direction by
// case-insensitive substring match. Long tokens are checked first: an
// action containing both (e.g. "close short, buy") classifies long.
func ClassifyAction(action string) Direction {
	a := strings.ToLower(action)
	if strings.Contains(a, "buy") || strings.Contains(a, "long") {
		return DirectionLong
	}
	if strings.Contains(a, "sell") || strings.Contains(a, "short") {
		return DirectionShort
	}
	return DirectionUnrecognized
}
