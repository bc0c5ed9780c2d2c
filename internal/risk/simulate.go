package risk

import (
	"fmt"

	"solana-token-agent/internal/token"
)

// Assessment is the advisory risk score for a proposed swap. Score is
// clamped to [0, 100]; warnings appear in evaluation order, which is part of
// the contract.
type Assessment struct {
	Score    int
	Warnings []string
}

const maxScore = 100

// Simulate scores a proposed swap without touching the chain. amountSOL is
// in whole SOL. Evaluation order: static blacklist, price-impact estimate,
// liquidity estimate, pool routing, then each user rule's checks.
//
// The price-impact and liquidity figures are synthetic stand-ins, not market
// data: impact is pessimistic above 0.5 SOL, and liquidity is pessimistic
// for tokens younger than the new-token age.
func (v *Validator) Simulate(amountSOL float64, tok *token.Token, rules []Rule) Assessment {
	var (
		score    int
		warnings []string
	)

	hit := func(points int, warning string) {
		score += points
		warnings = append(warnings, warning)
	}

	for _, mint := range v.cfg.BlacklistedMints {
		if mint == tok.Address {
			hit(40, "This token is blacklisted.")
			break
		}
	}

	priceImpact := 3.0
	if amountSOL > 0.5 {
		priceImpact = 7.0
	}
	if priceImpact > v.cfg.PriceImpactThreshold {
		hit(20, fmt.Sprintf("Price impact is too high (%g%% > %g%%).", priceImpact, v.cfg.PriceImpactThreshold))
	}

	liquidity := 20000.0
	if tok.Age(v.now()) < v.cfg.NewTokenAge {
		liquidity = 5000.0
	}
	if liquidity < v.cfg.LiquidityFloor {
		hit(20, fmt.Sprintf("Liquidity looks suspicious ($%g < $%g).", liquidity, v.cfg.LiquidityFloor))
	}

	if tok.HasTag("meme") && len(v.cfg.SuspectPools) > 0 {
		hit(20, fmt.Sprintf("Route goes through a suspect pool (%s).", v.cfg.SuspectPools[0]))
	}

	usdAmount := amountSOL * v.cfg.SOLQuoteUSD
	for _, rule := range rules {
		if rule.MinSwapAmount > 0 && usdAmount < rule.MinSwapAmount {
			hit(20, fmt.Sprintf("Swap amount ($%g) is below rule minimum ($%g).", usdAmount, rule.MinSwapAmount))
		}
		if rule.MaxSwapAmount > 0 && usdAmount > rule.MaxSwapAmount {
			hit(20, fmt.Sprintf("Swap amount ($%g) exceeds rule limit ($%g).", usdAmount, rule.MaxSwapAmount))
		}
		if rule.AvoidMemeCoins && tok.HasTag("meme") {
			hit(20, "Token is a meme coin, against your rules.")
		}
		if rule.AvoidNewCoins && tok.Age(v.now()) < v.cfg.NewTokenAge {
			hit(20, "Token is too new, against your rules.")
		}
	}

	if score > maxScore {
		score = maxScore
	}
	return Assessment{Score: score, Warnings: warnings}
}
