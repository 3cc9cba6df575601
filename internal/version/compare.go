package version

import (
	"strconv"
	"strings"
)

// CompareVersions returns 1 if v1 > v2, -1 if v1 < v2 and 0 if equal.
// Development builds and commit hashes sort before every release.
func CompareVersions(v1, v2 string) int {
	dev1, dev2 := isDev(v1), isDev(v2)
	switch {
	case dev1 && dev2:
		return 0
	case dev1:
		return -1
	case dev2:
		return 1
	}

	p1, p2 := parseVersion(v1), parseVersion(v2)
	for i := 0; i < 3; i++ {
		if p1[i] != p2[i] {
			if p1[i] > p2[i] {
				return 1
			}
			return -1
		}
	}
	return 0
}

// IsNewerVersion reports whether latest is newer than current.
func IsNewerVersion(current, latest string) bool {
	return CompareVersions(latest, current) > 0
}

// NormalizeVersion strips whitespace, "v" prefixes and pre-release or build suffixes.
func NormalizeVersion(v string) string {
	v = strings.TrimLeft(strings.TrimSpace(v), "v")
	if idx := strings.IndexAny(v, "-+"); idx != -1 {
		v = v[:idx]
	}
	return v
}

// parseVersion returns major, minor and patch; missing or malformed parts are 0.
func parseVersion(v string) [3]int {
	var out [3]int
	for i, part := range strings.SplitN(NormalizeVersion(v), ".", 3) {
		n, err := strconv.Atoi(part)
		if err == nil {
			out[i] = n
		}
	}
	return out
}

func isDev(v string) bool {
	v = strings.TrimPrefix(strings.TrimSpace(v), "v")
	return v == "" || v == "dev" || isCommitHash(v)
}

// isCommitHash reports whether s looks like a 7 to 40 character hex SHA with at least one letter.
func isCommitHash(s string) bool {
	s = strings.TrimSuffix(s, "-dirty")
	if len(s) < 7 || len(s) > 40 {
		return false
	}

	hasLetter := false
	for _, c := range strings.ToLower(s) {
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
			hasLetter = true
		default:
			return false
		}
	}
	return hasLetter
}
