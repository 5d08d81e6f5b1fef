package strategy

import "strings"

// parseSignal lower-cases the plaintext body and matches "buy" or "sell"
// in that order; a body containing both resolves to buy.
func parseSignal(body string) (Action, bool) {
	lower := strings.ToLower(strings.TrimSpace(body))
	if lower == "" {
		return "", false
	}
	if strings.Contains(lower, "buy") {
		return ActionBuy, true
	}
	if strings.Contains(lower, "sell") {
		return ActionSell, true
	}
	return "", false
}
