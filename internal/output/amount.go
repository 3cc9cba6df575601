package output

import (
	"time"

	"github.com/dustin/go-humanize"

	"github.com/mrz1836/vigil/internal/chain"
)

const (
	ansiGreen = "\x1b[32m"
	ansiRed   = "\x1b[31m"
	ansiReset = "\x1b[0m"
)

// Sats formats a satoshi amount with thousands separators.
func Sats(sats int64) string {
	return humanize.Comma(sats) + " sat"
}

// SignedSats formats a delta with an explicit sign, colored when color is set.
func SignedSats(sats int64, color bool) string {
	s := humanize.Comma(sats) + " sat"
	if sats > 0 {
		s = "+" + s
	}
	return paint(s, sats, color)
}

// BTC formats a satoshi amount as BTC with eight decimals.
func BTC(sats int64) string {
	return chain.FormatBTC(sats) + " BTC"
}

// SignedBTC formats a delta as BTC with an explicit sign, colored when color is set.
func SignedBTC(sats int64, color bool) string {
	return paint(chain.FormatSignedBTC(sats), sats, color)
}

// Ago formats a unix timestamp relative to now, like "3 minutes ago".
func Ago(ts int64, now time.Time) string {
	if ts == 0 {
		return "never"
	}
	return humanize.RelTime(time.Unix(ts, 0), now, "ago", "from now")
}

func paint(s string, sign int64, color bool) string {
	switch {
	case !color || sign == 0:
		return s
	case sign > 0:
		return ansiGreen + s + ansiReset
	default:
		return ansiRed + s + ansiReset
	}
}
