package ipclass

import (
	"regexp"
	"strconv"
	"strings"
)

type Family string

const (
	FamilyIPv4 Family = "ipv4"
	FamilyIPv6 Family = "ipv6"
)

type Scope string

const (
	ScopePrivate Scope = "private"
	ScopePublic  Scope = "public"
	// ScopeUnknown is used for IPv6 literals, which are recorded but not
	// classified as private/public.
	ScopeUnknown Scope = "unknown"
)

// Observation is one address literal extracted from a candidate line.
type Observation struct {
	Literal string `json:"literal"`
	Family  Family `json:"family"`
	Scope   Scope  `json:"scope"`
}

var (
	ipv4Pattern = regexp.MustCompile(`([0-9]{1,3}(?:\.[0-9]{1,3}){3})`)
	ipv6Pattern = regexp.MustCompile(`([0-9a-fA-F]{1,4}(?::[0-9a-fA-F]{1,4}){7})`)
)

// Classify extracts the first IPv4-looking and the first IPv6-looking token
// from a candidate line. Both families may be present in one line, so the
// result holds zero, one, or two observations. IPv6 literals are lowercased;
// IPv4 literals are kept as-is.
//
// Pure string matching, no network access.
func Classify(line string) []Observation {
	var out []Observation

	if m := ipv4Pattern.FindString(line); m != "" && validOctets(m) {
		out = append(out, Observation{
			Literal: m,
			Family:  FamilyIPv4,
			Scope:   ipv4Scope(m),
		})
	}

	if m := ipv6Pattern.FindString(line); m != "" {
		out = append(out, Observation{
			Literal: strings.ToLower(m),
			Family:  FamilyIPv6,
			Scope:   ScopeUnknown,
		})
	}

	return out
}

// Normalize returns the set-key form of an address literal: lowercased for
// IPv6, unchanged for IPv4.
func Normalize(literal string) string {
	if strings.Contains(literal, ":") {
		return strings.ToLower(literal)
	}
	return literal
}

func validOctets(literal string) bool {
	for _, part := range strings.Split(literal, ".") {
		n, err := strconv.Atoi(part)
		if err != nil || n > 255 {
			return false
		}
	}
	return true
}

func ipv4Scope(literal string) Scope {
	parts := strings.Split(literal, ".")
	first, _ := strconv.Atoi(parts[0])
	second, _ := strconv.Atoi(parts[1])

	switch {
	case first == 10:
		return ScopePrivate
	case first == 172 && second >= 16 && second <= 31:
		return ScopePrivate
	case first == 192 && second == 168:
		return ScopePrivate
	case first == 169 && second == 254:
		// Link-local.
		return ScopePrivate
	default:
		return ScopePublic
	}
}
