package rewrite

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/leapstack-labs/portsql/pkg/token"
)

// applyCompatibility replaces the dialect's compatibility token sequences.
func (r *Rewriter) applyCompatibility(_ context.Context, toks []token.Token) []token.Token {
	for k, pattern := range r.compat {
		if len(pattern) == 0 {
			continue
		}
		replace := r.d.CompatRules()[k].Replace
		for i := 0; i < len(toks); i++ {
			end, ok := matchAt(toks, i, pattern)
			if !ok {
				continue
			}
			repl := token.Scan(replace)
			toks = splice(toks, i, end, repl)
			i += len(repl) - 1
		}
	}
	return toks
}

// matchAt matches pattern against toks starting at i, skipping trivia between
// tokens. It returns the index of the last matched token.
func matchAt(toks []token.Token, i int, pattern []token.Token) (int, bool) {
	if toks[i].Type.IsTrivia() {
		return 0, false
	}
	j := i
	for k, p := range pattern {
		if k > 0 {
			j = nextSig(toks, j)
			if j < 0 {
				return 0, false
			}
		}
		if !sameToken(toks[j], p) {
			return 0, false
		}
	}
	return j, true
}

func sameToken(t, p token.Token) bool {
	if p.Type == token.STRING && p.Literal == "''" && t.Type == token.SENTINEL {
		return true
	}
	if t.Type != p.Type {
		return false
	}
	if t.Type == token.WORD {
		return strings.EqualFold(t.Literal, p.Literal)
	}
	return t.Literal == p.Literal
}

// RegisterIncompatibility adds a regular expression replacement applied to
// the query once when the backend rejects it.
func (r *Rewriter) RegisterIncompatibility(pattern, replacement string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return fmt.Errorf("invalid incompatibility pattern %q: %w", pattern, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.incompat = append(r.incompat, incompatibility{pattern: re, replacement: replacement})
	return nil
}

// ApplyIncompatibilities runs every registered replacement whose pattern
// matches query outside string literals. It reports whether any replacement
// was made.
func (r *Rewriter) ApplyIncompatibilities(query string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := false
	for _, inc := range r.incompat {
		var ok bool
		query, ok = replaceOutsideLiterals(inc.pattern, query, inc.replacement)
		matched = matched || ok
	}
	return query, matched
}

// replaceOutsideLiterals is ReplaceAllString that leaves matches starting
// inside a quoted string untouched.
func replaceOutsideLiterals(re *regexp.Regexp, query, replacement string) (string, bool) {
	matches := re.FindAllStringSubmatchIndex(query, -1)
	if len(matches) == 0 {
		return query, false
	}
	spans := token.LiteralSpans(token.Scan(query))

	var b []byte
	last := 0
	replaced := false
	for _, m := range matches {
		if insideAny(spans, m[0]) {
			continue
		}
		b = append(b, query[last:m[0]]...)
		b = re.ExpandString(b, replacement, query, m)
		last = m[1]
		replaced = true
	}
	if !replaced {
		return query, false
	}
	b = append(b, query[last:]...)
	return string(b), true
}

func insideAny(spans []token.Span, offset int) bool {
	for _, s := range spans {
		if s.Contains(offset) {
			return true
		}
	}
	return false
}
