package rtm

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Requirement reference grammar:
//
//	ref   := local | cross
//	local := "REQ-" CATEGORY "-" DIGITS
//	cross := OWNER "/" REPO ":" local
//
// Every component that follows a reference goes through ParseRef so local
// and cross-repo identifiers are never confused.

var (
	localRefPattern = regexp.MustCompile(`^REQ-[A-Za-z]+-[0-9]+$`)
	crossRefPattern = regexp.MustCompile(`^([^/:\s]+)/([^/:\s]+):(REQ-[A-Za-z]+-[0-9]+)$`)
)

// Ref is a parsed requirement reference. Repo is empty for local refs and
// "owner/repo" for cross-repository refs.
type Ref struct {
	ReqID string
	Repo  string
}

// IsLocal reports whether the reference resolves inside the local store.
func (r Ref) IsLocal() bool {
	return r.Repo == ""
}

// String returns the canonical reference form.
func (r Ref) String() string {
	if r.Repo == "" {
		return r.ReqID
	}
	return r.Repo + ":" + r.ReqID
}

// ParseRef parses a requirement reference string.
func ParseRef(s string) (Ref, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Ref{}, fmt.Errorf("empty requirement reference")
	}
	if localRefPattern.MatchString(s) {
		return Ref{ReqID: s}, nil
	}
	if m := crossRefPattern.FindStringSubmatch(s); m != nil {
		return Ref{ReqID: m[3], Repo: m[1] + "/" + m[2]}, nil
	}
	return Ref{}, fmt.Errorf("invalid requirement reference %q", s)
}

// IsLocalRef reports whether s matches the local reference grammar.
func IsLocalRef(s string) bool {
	return localRefPattern.MatchString(strings.TrimSpace(s))
}

// ParseRefList parses a delimited reference list cell into a set.
// Pipe is the canonical separator; commas, semicolons, and whitespace are
// tolerated. Empty elements are dropped and duplicates collapse.
func ParseRefList(s string) map[string]struct{} {
	out := make(map[string]struct{})
	if strings.TrimSpace(s) == "" {
		return out
	}
	fields := strings.FieldsFunc(s, func(r rune) bool {
		switch r {
		case '|', ',', ';', ' ', '\t', '\n':
			return true
		}
		return false
	})
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out[f] = struct{}{}
		}
	}
	return out
}

// FormatRefList encodes a reference set as the canonical on-disk cell:
// elements sorted ascending, pipe-joined. Empty set encodes as "".
func FormatRefList(refs map[string]struct{}) string {
	return strings.Join(sortedKeys(refs), "|")
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
