package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"rsc.io/qr"
)

func TestDefaultQRConfig(t *testing.T) {
	t.Parallel()
	cfg := DefaultQRConfig()

	assert.Equal(t, qr.L, cfg.Level)
	assert.Equal(t, 1, cfg.QuietZone)
	assert.True(t, cfg.HalfBlocks)
}

func TestRenderQRSkipsNonTerminal(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer

	assert.False(t, RenderQR(&buf, BitcoinURI("bc1qcr8te4kr609gcawutmrza0j4xv80jy8z306fyu", ""), DefaultQRConfig()))
	assert.Empty(t, buf.String())
}

func TestBitcoinURI(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "bitcoin:bc1qtest", BitcoinURI("bc1qtest", ""))
	assert.Equal(t, "bitcoin:bc1qtest?label=vigil+m%2F0%2F3", BitcoinURI("bc1qtest", "vigil m/0/3"))
}

func TestQRSize(t *testing.T) {
	t.Parallel()
	size, err := QRSize(BitcoinURI("bc1qcr8te4kr609gcawutmrza0j4xv80jy8z306fyu", ""), qr.L)
	require.NoError(t, err)
	assert.Positive(t, size)
}
