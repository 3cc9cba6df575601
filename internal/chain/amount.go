// Package chain provides request pacing, retry and amount helpers shared by
// the explorer clients and the tracker.
package chain

import (
	"github.com/shopspring/decimal"
)

// SatoshisPerBTC is the number of satoshis in one bitcoin.
const SatoshisPerBTC = 100_000_000

// btcExponent is the decimal exponent of a satoshi relative to a bitcoin.
const btcExponent = -8

// SatoshisToBTC converts a satoshi amount to an exact BTC decimal.
func SatoshisToBTC(sats int64) decimal.Decimal {
	return decimal.New(sats, btcExponent)
}

// FormatBTC renders satoshis as a fixed 8-decimal BTC string, e.g. "0.00012000".
func FormatBTC(sats int64) string {
	return SatoshisToBTC(sats).StringFixed(8)
}

// FormatSignedBTC renders a delta with an explicit sign, e.g. "+0.00000500 BTC".
func FormatSignedBTC(sats int64) string {
	switch {
	case sats > 0:
		return "+" + FormatBTC(sats) + " BTC"
	case sats < 0:
		return FormatBTC(sats) + " BTC"
	default:
		return "0 BTC"
	}
}
