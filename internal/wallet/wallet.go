// Package wallet parses account-level extended public keys and derives
// the receive and change addresses a watch-only tracker scans.
package wallet

import (
	"fmt"
	"strconv"
	"strings"
)

// Branch identifies one of the two derivation sub-sequences below an account key.
type Branch uint32

// Derivation branches.
const (
	External Branch = 0 // payment addresses
	Internal Branch = 1 // change addresses
)

// String returns the branch name used in storage keys and CLI arguments.
func (b Branch) String() string {
	switch b {
	case External:
		return "external"
	case Internal:
		return "internal"
	default:
		return "branch-" + strconv.FormatUint(uint64(b), 10)
	}
}

// Branches lists the branches in scan order.
func Branches() []Branch {
	return []Branch{External, Internal}
}

// ParseBranch parses "external" / "internal" (or "receive" / "change").
func ParseBranch(s string) (Branch, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "external", "receive", "0":
		return External, nil
	case "internal", "change", "1":
		return Internal, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownBranch, s)
	}
}

// DerivedAddress is one address derived from the account key.
type DerivedAddress struct {
	Path    string `json:"path"`
	Address string `json:"address"`
}

// Path formats the relative derivation path for a branch and index, e.g. "m/0/12".
func Path(branch Branch, index uint32) string {
	return fmt.Sprintf("m/%d/%d", uint32(branch), index)
}

// ParsePath parses a relative path produced by Path.
func ParsePath(path string) (Branch, uint32, error) {
	parts := strings.Split(path, "/")
	if len(parts) != 3 || parts[0] != "m" {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}

	branch, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
	index, err := strconv.ParseUint(parts[2], 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}

	return Branch(branch), uint32(index), nil
}
