package strategy

import "github.com/swingdesk/swingbot/pkg/types"

// DefaultParams returns the baseline parameter set.
func DefaultParams() types.StrategyParams {
	return types.StrategyParams{
		RSIPeriod: 14,
		RSIEntry:  30,
		RSIExit:   70,
		EMAFast:   20,
		EMASlow:   50,
		ATRPeriod: 14,
		SLMult:    2.0,
		TPMult:    3.0,
	}
}

// catalog is the fixed, ordered set of bandit arms. Built once at
// process start; arm index into this slice identifies a parameter set
// everywhere (signals, positions, the outcome ledger).
var catalog = buildCatalog()

func buildCatalog() []types.StrategyParams {
	base := DefaultParams()
	arms := make([]types.StrategyParams, 0, 8)

	// Arm 0: baseline.
	arms = append(arms, base)

	// Arm 1: sensitive RSI.
	p := base
	p.RSIPeriod = 10
	p.RSIEntry = 35
	arms = append(arms, p)

	// Arm 2: conservative RSI.
	p = base
	p.RSIPeriod = 21
	p.RSIEntry = 25
	arms = append(arms, p)

	// Arm 3: wider stops, trend following.
	p = base
	p.SLMult = 3.0
	p.TPMult = 5.0
	arms = append(arms, p)

	// Arm 4: tight scalp.
	p = base
	p.SLMult = 1.5
	p.TPMult = 2.0
	arms = append(arms, p)

	// Arm 5: slow trend (golden cross).
	p = base
	p.EMAFast = 50
	p.EMASlow = 200
	arms = append(arms, p)

	// Arm 6: quick EMA pair.
	p = base
	p.EMAFast = 9
	p.EMASlow = 21
	arms = append(arms, p)

	// Arm 7: deep oversold with a wide stop.
	p = base
	p.RSIEntry = 20
	p.SLMult = 4.0
	arms = append(arms, p)

	return arms
}

// Catalog returns a copy of the arm catalog.
func Catalog() []types.StrategyParams {
	out := make([]types.StrategyParams, len(catalog))
	copy(out, catalog)
	return out
}

// NumArms returns the catalog size.
func NumArms() int {
	return len(catalog)
}

// Arm returns the parameter set at the given index, falling back to
// the baseline for out-of-range indexes.
func Arm(index int) types.StrategyParams {
	if index >= 0 && index < len(catalog) {
		return catalog[index]
	}
	return DefaultParams()
}
