// Package risk gates swap proposals against static heuristics and
// user-authored policy rules.
package risk

import (
	"fmt"
	"strings"
)

// Rule is one user-authored swap policy. Zero values mean "not set" for the
// numeric bounds. Rules combine with logical AND: every rule in the list
// must pass for a swap to proceed.
type Rule struct {
	MinSwapAmount  float64 `json:"min_swap_amount,omitempty"` // quote-currency units
	MaxSwapAmount  float64 `json:"max_swap_amount,omitempty"` // quote-currency units
	AvoidMemeCoins bool    `json:"avoid_meme_coins,omitempty"`
	AvoidNewCoins  bool    `json:"avoid_new_coins,omitempty"`
}

// Summary renders the rule for transcript echoes and list views.
func (r Rule) Summary() string {
	parts := make([]string, 0, 4)
	if r.MinSwapAmount > 0 {
		parts = append(parts, fmt.Sprintf("Min swap $%g", r.MinSwapAmount))
	}
	if r.MaxSwapAmount > 0 {
		parts = append(parts, fmt.Sprintf("Max swap $%g", r.MaxSwapAmount))
	}
	if r.AvoidMemeCoins {
		parts = append(parts, "Avoid meme coins")
	}
	if r.AvoidNewCoins {
		parts = append(parts, "Avoid new coins")
	}
	return strings.Join(parts, ", ")
}

// Empty reports whether the rule constrains nothing.
func (r Rule) Empty() bool {
	return r.MinSwapAmount <= 0 && r.MaxSwapAmount <= 0 && !r.AvoidMemeCoins && !r.AvoidNewCoins
}
