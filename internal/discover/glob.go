package discover

import "strings"

// tokenKind discriminates the compiled pattern elements
type tokenKind int

const (
	tokenLiteral tokenKind = iota
	tokenStar
	tokenQuestion
)

type token struct {
	kind    tokenKind
	literal string
}

// Pattern is a compiled symbol selector: literal segments interleaved with
// wildcard markers. Compiling once keeps the matching logic in one place
// instead of ad-hoc string checks at every call site.
type Pattern struct {
	raw    string
	tokens []token
}

// IsWildcard reports whether a selector contains wildcard characters
func IsWildcard(selector string) bool {
	return strings.ContainsAny(selector, "*?")
}

// Compile parses a selector into a Pattern. Matching is case-insensitive;
// symbols are canonically uppercase.
func Compile(selector string) *Pattern {
	upper := strings.ToUpper(selector)
	var tokens []token
	var literal strings.Builder

	flush := func() {
		if literal.Len() > 0 {
			tokens = append(tokens, token{kind: tokenLiteral, literal: literal.String()})
			literal.Reset()
		}
	}

	for _, r := range upper {
		switch r {
		case '*':
			flush()
			// consecutive stars collapse to one
			if len(tokens) == 0 || tokens[len(tokens)-1].kind != tokenStar {
				tokens = append(tokens, token{kind: tokenStar})
			}
		case '?':
			flush()
			tokens = append(tokens, token{kind: tokenQuestion})
		default:
			literal.WriteRune(r)
		}
	}
	flush()

	return &Pattern{raw: upper, tokens: tokens}
}

// String returns the uppercased selector the pattern was compiled from
func (p *Pattern) String() string {
	return p.raw
}

// Match reports whether name matches the pattern in full
func (p *Pattern) Match(name string) bool {
	return matchTokens(p.tokens, strings.ToUpper(name))
}

func matchTokens(tokens []token, name string) bool {
	if len(tokens) == 0 {
		return name == ""
	}
	switch t := tokens[0]; t.kind {
	case tokenLiteral:
		if !strings.HasPrefix(name, t.literal) {
			return false
		}
		return matchTokens(tokens[1:], name[len(t.literal):])
	case tokenQuestion:
		if name == "" {
			return false
		}
		return matchTokens(tokens[1:], name[1:])
	default: // tokenStar
		for i := 0; i <= len(name); i++ {
			if matchTokens(tokens[1:], name[i:]) {
				return true
			}
		}
		return false
	}
}

// MatchAny filters names down to those matching the pattern, preserving order
func (p *Pattern) MatchAny(names []string) []string {
	var matched []string
	for _, name := range names {
		if p.Match(name) {
			matched = append(matched, name)
		}
	}
	return matched
}
