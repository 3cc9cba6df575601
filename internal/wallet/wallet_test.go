package wallet_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/vigil/internal/wallet"
)

func TestBranch(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "external", wallet.External.String())
	assert.Equal(t, "internal", wallet.Internal.String())
	assert.Equal(t, "branch-7", wallet.Branch(7).String())
	assert.Equal(t, []wallet.Branch{wallet.External, wallet.Internal}, wallet.Branches())
}

func TestParseBranch(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]wallet.Branch{
		"external": wallet.External,
		"Receive":  wallet.External,
		"0":        wallet.External,
		"internal": wallet.Internal,
		" change ": wallet.Internal,
		"1":        wallet.Internal,
	} {
		got, err := wallet.ParseBranch(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := wallet.ParseBranch("savings")
	require.ErrorIs(t, err, wallet.ErrUnknownBranch)
}

func TestPathRoundTrip(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "m/0/12", wallet.Path(wallet.External, 12))

	branch, index, err := wallet.ParsePath("m/1/49")
	require.NoError(t, err)
	assert.Equal(t, wallet.Internal, branch)
	assert.Equal(t, uint32(49), index)

	for _, bad := range []string{"", "m/0", "x/0/1", "m/a/1", "m/0/-1", "m/0/1/2"} {
		_, _, err := wallet.ParsePath(bad)
		require.ErrorIs(t, err, wallet.ErrInvalidPath, bad)
	}
}
