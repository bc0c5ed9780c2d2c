package risk

import (
	"fmt"
	"time"

	"solana-token-agent/internal/config"
	"solana-token-agent/internal/token"
)

// Validation is the outcome of hard validation. Any error makes the proposal
// invalid; errors are surfaced verbatim to the user and never retried.
type Validation struct {
	IsValid bool
	Errors  []string
}

// Validator runs hard validation and advisory simulation for swap proposals.
// Deterministic given its inputs: the only time dependence is the new-coin
// check, which reads the injected clock.
type Validator struct {
	cfg config.RiskConfig
	now func() time.Time
}

// ValidatorConfig holds configuration for the validator.
type ValidatorConfig struct {
	Risk config.RiskConfig
	Now  func() time.Time // defaults to time.Now
}

func NewValidator(cfg ValidatorConfig) *Validator {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Validator{cfg: cfg.Risk, now: cfg.Now}
}

// Validate checks a swap proposal against structural invariants and user
// rules. amount is in the input asset's base units. Rule thresholds are
// quote-currency units computed at the fixed SOLQuoteUSD conversion.
func (v *Validator) Validate(amount float64, inputMint, outputMint string, tok *token.Token, rules []Rule) Validation {
	var errs []string

	if amount <= 0 {
		errs = append(errs, "Invalid swap amount")
	}
	if inputMint == "" || outputMint == "" {
		errs = append(errs, "Missing token addresses")
	}
	if inputMint != "" && inputMint == outputMint {
		errs = append(errs, "Cannot swap token for itself")
	}

	solAmount := 0.0
	if inputMint == token.NativeMint {
		solAmount = amount / 1e9
	}
	if solAmount > v.cfg.MaxSwapSOL {
		errs = append(errs, fmt.Sprintf("Large swap detected - please confirm you want to swap more than %g SOL", v.cfg.MaxSwapSOL))
	}

	usdAmount := solAmount * v.cfg.SOLQuoteUSD
	for _, rule := range rules {
		if rule.MinSwapAmount > 0 && usdAmount < rule.MinSwapAmount {
			errs = append(errs, fmt.Sprintf("Swap amount ($%.2f) is below minimum rule ($%g)", usdAmount, rule.MinSwapAmount))
		}
		if rule.MaxSwapAmount > 0 && usdAmount > rule.MaxSwapAmount {
			errs = append(errs, fmt.Sprintf("Swap amount ($%.2f) exceeds maximum rule ($%g)", usdAmount, rule.MaxSwapAmount))
		}
		if rule.AvoidMemeCoins && tok.HasTag("meme") {
			errs = append(errs, "Token is a meme coin, which violates your rules")
		}
		if rule.AvoidNewCoins && tok.Age(v.now()) < v.cfg.NewTokenAge {
			errs = append(errs, fmt.Sprintf("Token is less than %d days old, which violates your rules", int(v.cfg.NewTokenAge.Hours()/24)))
		}
	}

	return Validation{IsValid: len(errs) == 0, Errors: errs}
}
