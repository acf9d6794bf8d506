package logdispatch

import (
	"regexp"
	"strings"
)

// MatchKind selects the rule a Group uses to claim loggers by name, via
// Engine.MapLoggersToGroup (§4.3, §4.4, §6).
type MatchKind uint8

const (
	// MatchNone means the group has no match rule; it never claims a
	// logger via remapping. The default group, every group not given a
	// rule via Engine.MapLoggersToGroup, and a group whose regex failed to
	// compile have this kind.
	MatchNone MatchKind = iota
	MatchPrefix
	MatchSuffix
	MatchContains
	MatchRegex
)

// nameMatcher evaluates a single group's match rule against a logger name.
type nameMatcher struct {
	kind    MatchKind
	pattern string
	re      *regexp.Regexp // only set if kind == MatchRegex and compilation succeeded
}

// matches reports whether name is claimed by this rule.
func (m nameMatcher) matches(name string) bool {
	switch m.kind {
	case MatchPrefix:
		return strings.HasPrefix(name, m.pattern)
	case MatchSuffix:
		return strings.HasSuffix(name, m.pattern)
	case MatchContains:
		return strings.Contains(name, m.pattern)
	case MatchRegex:
		return m.re != nil && m.re.MatchString(name)
	default:
		return false
	}
}

// newNameMatcher compiles the rule, reporting a non-nil error only when
// kind is MatchRegex and the pattern fails to compile. Per §4.4/§8: an
// invalid regex is reported via the fault channel but must not abort — the
// caller falls back to MatchNone for that group, and other rules keep
// working.
func newNameMatcher(kind MatchKind, pattern string) (nameMatcher, error) {
	m := nameMatcher{kind: kind, pattern: pattern}
	if kind == MatchRegex {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nameMatcher{kind: MatchNone}, err
		}
		m.re = re
	}
	return m, nil
}
