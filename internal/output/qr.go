package output

import (
	"io"
	"net/url"

	"github.com/mdp/qrterminal/v3"
	"rsc.io/qr"
)

// QRConfig configures QR code rendering.
type QRConfig struct {
	Level      qr.Level
	QuietZone  int
	HalfBlocks bool
}

// DefaultQRConfig returns low error correction and half-height blocks.
func DefaultQRConfig() QRConfig {
	return QRConfig{
		Level:      qr.L,
		QuietZone:  1,
		HalfBlocks: true,
	}
}

// BitcoinURI builds a BIP21 payment URI for address, with an optional label.
func BitcoinURI(address, label string) string {
	uri := "bitcoin:" + address
	if label != "" {
		uri += "?label=" + url.QueryEscape(label)
	}
	return uri
}

// RenderQR draws data as a QR code when w is a terminal and reports whether it drew.
func RenderQR(w io.Writer, data string, cfg QRConfig) bool {
	if !IsTerminal(w) {
		return false
	}

	qrterminal.GenerateWithConfig(data, qrterminal.Config{
		Level:          cfg.Level,
		Writer:         w,
		QuietZone:      cfg.QuietZone,
		HalfBlocks:     cfg.HalfBlocks,
		BlackChar:      qrterminal.BLACK_BLACK,
		WhiteChar:      qrterminal.WHITE_WHITE,
		WhiteBlackChar: qrterminal.WHITE_BLACK,
		BlackWhiteChar: qrterminal.BLACK_WHITE,
	})
	return true
}

// QRSize returns the module count of the code for data, or an error if data does not fit.
func QRSize(data string, level qr.Level) (int, error) {
	code, err := qr.Encode(data, level)
	if err != nil {
		return 0, err
	}
	return code.Size, nil
}
