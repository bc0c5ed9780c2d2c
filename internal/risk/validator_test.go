package risk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-token-agent/internal/config"
	"solana-token-agent/internal/token"
)

const testMint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestValidator() *Validator {
	return NewValidator(ValidatorConfig{
		Risk: config.DefaultRiskConfig(),
		Now:  func() time.Time { return testNow },
	})
}

func oldToken() *token.Token {
	return &token.Token{
		Symbol:      "TEST",
		Name:        "Test Token",
		Address:     testMint,
		Decimals:    6,
		DailyVolume: 1_000_000,
		CreatedAt:   testNow.Add(-30 * 24 * time.Hour),
	}
}

func TestValidateAcceptsCleanProposal(t *testing.T) {
	v := newTestValidator()

	res := v.Validate(0.5e9, token.NativeMint, testMint, oldToken(), nil)

	assert.True(t, res.IsValid)
	assert.Empty(t, res.Errors)
}

func TestValidateRejectsNonPositiveAmount(t *testing.T) {
	v := newTestValidator()

	for _, amount := range []float64{0, -1} {
		res := v.Validate(amount, token.NativeMint, testMint, oldToken(), nil)
		assert.False(t, res.IsValid)
		assert.Contains(t, res.Errors, "Invalid swap amount")
	}
}

func TestValidateRejectsMissingMints(t *testing.T) {
	v := newTestValidator()

	res := v.Validate(1e9, "", testMint, oldToken(), nil)
	assert.Contains(t, res.Errors, "Missing token addresses")

	res = v.Validate(1e9, token.NativeMint, "", oldToken(), nil)
	assert.Contains(t, res.Errors, "Missing token addresses")
}

func TestValidateRejectsSelfSwap(t *testing.T) {
	v := newTestValidator()

	res := v.Validate(1e9, testMint, testMint, oldToken(), nil)

	assert.False(t, res.IsValid)
	assert.Contains(t, res.Errors, "Cannot swap token for itself")
}

func TestValidateLargeSwapNeedsConfirmation(t *testing.T) {
	v := newTestValidator()

	res := v.Validate(11e9, token.NativeMint, testMint, oldToken(), nil)

	assert.False(t, res.IsValid)
	assert.Contains(t, res.Errors, "Large swap detected - please confirm you want to swap more than 10 SOL")

	// Exactly the cap is still fine.
	res = v.Validate(10e9, token.NativeMint, testMint, oldToken(), nil)
	assert.True(t, res.IsValid)
}

func TestValidateLargeSwapCheckOnlyAppliesToSOLInput(t *testing.T) {
	v := newTestValidator()

	// Token-denominated input: SOL amount is treated as zero, so the cap
	// never triggers regardless of magnitude.
	otherMint := "So11111111111111111111111111111111111111113"
	res := v.Validate(1e12, otherMint, testMint, oldToken(), nil)

	assert.True(t, res.IsValid)
}

func TestValidateMinimumRule(t *testing.T) {
	v := newTestValidator()
	rules := []Rule{{MinSwapAmount: 50}}

	// 0.1 SOL at $100/SOL is $10, below the $50 minimum.
	res := v.Validate(0.1e9, token.NativeMint, testMint, oldToken(), rules)

	require.False(t, res.IsValid)
	assert.Contains(t, res.Errors, "Swap amount ($10.00) is below minimum rule ($50)")
}

func TestValidateMaximumRule(t *testing.T) {
	v := newTestValidator()
	rules := []Rule{{MaxSwapAmount: 5}}

	// 0.1 SOL at $100/SOL is $10, over the $5 maximum.
	res := v.Validate(0.1e9, token.NativeMint, testMint, oldToken(), rules)

	require.False(t, res.IsValid)
	assert.Contains(t, res.Errors, "Swap amount ($10.00) exceeds maximum rule ($5)")
}

func TestValidateMemeRule(t *testing.T) {
	v := newTestValidator()
	tok := oldToken()
	tok.Tags = []string{"meme"}

	res := v.Validate(1e9, token.NativeMint, testMint, tok, []Rule{{AvoidMemeCoins: true}})

	assert.False(t, res.IsValid)
	assert.Contains(t, res.Errors, "Token is a meme coin, which violates your rules")

	// Without the tag the rule passes.
	res = v.Validate(1e9, token.NativeMint, testMint, oldToken(), []Rule{{AvoidMemeCoins: true}})
	assert.True(t, res.IsValid)
}

func TestValidateNewCoinRule(t *testing.T) {
	v := newTestValidator()
	tok := oldToken()
	tok.CreatedAt = testNow.Add(-2 * 24 * time.Hour)

	res := v.Validate(1e9, token.NativeMint, testMint, tok, []Rule{{AvoidNewCoins: true}})

	assert.False(t, res.IsValid)
	assert.Contains(t, res.Errors, "Token is less than 7 days old, which violates your rules")
}

func TestValidateErrorOrdering(t *testing.T) {
	v := newTestValidator()
	tok := oldToken()
	tok.Tags = []string{"meme"}

	res := v.Validate(-1, "", "", tok, []Rule{{AvoidMemeCoins: true}})

	require.False(t, res.IsValid)
	// Structural errors first, in declaration order, then rule errors.
	assert.Equal(t, []string{
		"Invalid swap amount",
		"Missing token addresses",
		"Token is a meme coin, which violates your rules",
	}, res.Errors)
}

func TestValidateRulesCombineWithAND(t *testing.T) {
	v := newTestValidator()
	rules := []Rule{
		{MinSwapAmount: 5},
		{MaxSwapAmount: 8},
	}

	// $10: passes the first rule, fails the second.
	res := v.Validate(0.1e9, token.NativeMint, testMint, oldToken(), rules)

	require.False(t, res.IsValid)
	assert.Len(t, res.Errors, 1)
}
