package wallet

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"

	vigilerr "github.com/mrz1836/vigil/pkg/errors"
)

// ScriptType is the output script an account key's addresses pay to.
type ScriptType int

// Script types, selected by the extended key's version bytes.
const (
	P2PKH      ScriptType = iota // xpub: legacy 1...
	P2SHP2WPKH                   // ypub: nested segwit 3...
	P2WPKH                       // zpub: native segwit bc1q...
)

// String returns the script type name.
func (s ScriptType) String() string {
	switch s {
	case P2PKH:
		return "p2pkh"
	case P2SHP2WPKH:
		return "p2sh-p2wpkh"
	case P2WPKH:
		return "p2wpkh"
	default:
		return "unknown"
	}
}

// SLIP-0132 public version bytes.
//
//nolint:gochecknoglobals // Fixed serialization constants
var (
	versionXpub = []byte{0x04, 0x88, 0xb2, 0x1e}
	versionYpub = []byte{0x04, 0x9d, 0x7c, 0xb2}
	versionZpub = []byte{0x04, 0xb2, 0x47, 0x46}

	versionXprv = []byte{0x04, 0x88, 0xad, 0xe4}
	versionYprv = []byte{0x04, 0x9d, 0x78, 0x78}
	versionZprv = []byte{0x04, 0xb2, 0x43, 0x0c}
)

// Deriver derives addresses below a parsed account-level extended public key.
// Branch keys are derived once and reused.
type Deriver struct {
	key      *hdkeychain.ExtendedKey
	script   ScriptType
	net      *chaincfg.Params
	branches map[Branch]*hdkeychain.ExtendedKey
}

// NewDeriver parses an account-level xpub, ypub or zpub. Private keys are rejected.
func NewDeriver(encoded string) (*Deriver, error) {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return nil, invalidXpub(encoded, fmt.Errorf("%w: empty key", ErrUnsupportedVersion))
	}

	key, err := hdkeychain.NewKeyFromString(encoded)
	if err != nil {
		return nil, invalidXpub(encoded, err)
	}

	if key.IsPrivate() || isPrivateVersion(key.Version()) {
		return nil, invalidXpub(encoded, ErrPrivateKey)
	}

	script, err := scriptTypeFor(key.Version())
	if err != nil {
		return nil, invalidXpub(encoded, err)
	}

	return &Deriver{
		key:      key,
		script:   script,
		net:      &chaincfg.MainNetParams,
		branches: make(map[Branch]*hdkeychain.ExtendedKey, 2),
	}, nil
}

// ScriptType returns the address type this key derives.
func (d *Deriver) ScriptType() ScriptType {
	return d.script
}

// Derive returns the address at m/<branch>/<index>.
func (d *Deriver) Derive(branch Branch, index uint32) (DerivedAddress, error) {
	branchKey, err := d.branchKey(branch)
	if err != nil {
		return DerivedAddress{}, err
	}

	child, err := branchKey.Derive(index)
	if err != nil {
		return DerivedAddress{}, fmt.Errorf("failed to derive %s: %w", Path(branch, index), err)
	}

	pub, err := child.ECPubKey()
	if err != nil {
		return DerivedAddress{}, fmt.Errorf("failed to read public key at %s: %w", Path(branch, index), err)
	}

	addr, err := d.encode(btcutil.Hash160(pub.SerializeCompressed()))
	if err != nil {
		return DerivedAddress{}, fmt.Errorf("failed to encode address at %s: %w", Path(branch, index), err)
	}

	return DerivedAddress{Path: Path(branch, index), Address: addr}, nil
}

// DeriveRange returns count addresses on branch starting at index 0, in derivation order.
func (d *Deriver) DeriveRange(branch Branch, count int) ([]DerivedAddress, error) {
	out := make([]DerivedAddress, 0, count)
	for i := 0; i < count; i++ {
		addr, err := d.Derive(branch, uint32(i)) //nolint:gosec // count is validated config
		if err != nil {
			return nil, err
		}
		out = append(out, addr)
	}
	return out, nil
}

func (d *Deriver) branchKey(branch Branch) (*hdkeychain.ExtendedKey, error) {
	if k, ok := d.branches[branch]; ok {
		return k, nil
	}
	k, err := d.key.Derive(uint32(branch))
	if err != nil {
		return nil, fmt.Errorf("failed to derive branch %s: %w", branch, err)
	}
	d.branches[branch] = k
	return k, nil
}

func (d *Deriver) encode(pubKeyHash []byte) (string, error) {
	switch d.script {
	case P2WPKH:
		addr, err := btcutil.NewAddressWitnessPubKeyHash(pubKeyHash, d.net)
		if err != nil {
			return "", err
		}
		return addr.EncodeAddress(), nil
	case P2SHP2WPKH:
		redeem := append([]byte{0x00, 0x14}, pubKeyHash...)
		addr, err := btcutil.NewAddressScriptHash(redeem, d.net)
		if err != nil {
			return "", err
		}
		return addr.EncodeAddress(), nil
	default:
		addr, err := btcutil.NewAddressPubKeyHash(pubKeyHash, d.net)
		if err != nil {
			return "", err
		}
		return addr.EncodeAddress(), nil
	}
}

func scriptTypeFor(version []byte) (ScriptType, error) {
	switch {
	case bytes.Equal(version, versionZpub):
		return P2WPKH, nil
	case bytes.Equal(version, versionYpub):
		return P2SHP2WPKH, nil
	case bytes.Equal(version, versionXpub):
		return P2PKH, nil
	default:
		return 0, fmt.Errorf("%w: %x", ErrUnsupportedVersion, version)
	}
}

func isPrivateVersion(version []byte) bool {
	return bytes.Equal(version, versionXprv) ||
		bytes.Equal(version, versionYprv) ||
		bytes.Equal(version, versionZprv)
}

func invalidXpub(encoded string, cause error) error {
	return vigilerr.WithCause(
		vigilerr.WithDetails(vigilerr.ErrInvalidXpub, map[string]string{"key": Redact(encoded)}),
		cause,
	)
}

// Redact shortens an extended key for logs and error details, e.g. "zpub6rFR...AGutZYs".
func Redact(encoded string) string {
	if len(encoded) <= 16 {
		return encoded
	}
	return encoded[:8] + "..." + encoded[len(encoded)-7:]
}
