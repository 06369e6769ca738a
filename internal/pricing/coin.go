package pricing

import (
	"math"
)

// CoinValue is the rupee value of one loyalty coin. The signup bonus of
// 13 coins redeems exactly ₹1000, so the per-coin value is the exact
// quotient rather than a rounded constant; rounding happens once, at
// redemption.
const CoinValue = 1000.0 / 13.0

// CoinPricing is the coin-denominated view of a rupee price for a
// wallet balance: how many coins would cover the price, how many the
// wallet can actually contribute, and what remains payable in cash.
type CoinPricing struct {
	CoinsNeeded    int64   `json:"coinsNeeded"`
	CoinsUsed      int64   `json:"coinsUsed"`
	Discount       float64 `json:"discount"`
	EffectivePrice float64 `json:"effectivePrice"`
}

// CoinsNeededForPrice returns the minimum whole coins covering a rupee
// price. Non-positive or non-finite prices need zero coins.
func CoinsNeededForPrice(priceRupees float64) int64 {
	if priceRupees <= 0 || math.IsNaN(priceRupees) || math.IsInf(priceRupees, 0) {
		return 0
	}
	return int64(math.Ceil(priceRupees / CoinValue))
}

// ComputeCoinPricing applies a coin wallet to a rupee price. Negative
// wallet balances are clamped to zero and never more coins are used
// than the price needs, so the discount never overshoots; the effective
// price never goes below zero. Degenerate prices (zero, negative,
// non-finite) yield an all-zero result rather than NaN.
func ComputeCoinPricing(priceRupees float64, walletCoins int64) CoinPricing {
	needed := CoinsNeededForPrice(priceRupees)
	if needed == 0 {
		return CoinPricing{}
	}

	used := walletCoins
	if used < 0 {
		used = 0
	}
	if used > needed {
		used = needed
	}

	discount := math.Round(float64(used) * CoinValue)
	return CoinPricing{
		CoinsNeeded:    needed,
		CoinsUsed:      used,
		Discount:       discount,
		EffectivePrice: math.Max(0, math.Round(priceRupees-discount)),
	}
}
