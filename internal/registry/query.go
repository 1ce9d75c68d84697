package registry

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/spherical/pdf-fidelity/internal/domain"
)

// Query is a parsed boolean tag expression. Grammar:
//
//	expr   = term { OR term }
//	term   = factor { [AND] factor }
//	factor = NOT factor | "(" expr ")" | tag
//
// Keywords are case-insensitive; "!" is accepted for NOT. Juxtaposed factors
// are joined with AND. Tags are matched exactly after normalization.
type Query interface {
	// Select returns the subset of ids in universe matching the query. The
	// index maps every tag to the ids carrying it.
	Select(index Index, universe IDSet) IDSet
	String() string
}

// IDSet is a set of document ids
type IDSet map[string]struct{}

// Index maps a normalized tag to the documents that carry it
type Index map[string]IDSet

// NewIndex builds the tag index of docs
func NewIndex(docs []domain.Document) Index {
	idx := make(Index)
	for _, d := range docs {
		for tag := range d.Tags {
			if idx[tag] == nil {
				idx[tag] = make(IDSet)
			}
			idx[tag][d.ID] = struct{}{}
		}
	}
	return idx
}

func intersect(a, b IDSet) IDSet {
	if len(b) < len(a) {
		a, b = b, a
	}
	out := make(IDSet, len(a))
	for id := range a {
		if _, ok := b[id]; ok {
			out[id] = struct{}{}
		}
	}
	return out
}

func union(a, b IDSet) IDSet {
	out := make(IDSet, len(a)+len(b))
	for id := range a {
		out[id] = struct{}{}
	}
	for id := range b {
		out[id] = struct{}{}
	}
	return out
}

func difference(a, b IDSet) IDSet {
	out := make(IDSet, len(a))
	for id := range a {
		if _, ok := b[id]; !ok {
			out[id] = struct{}{}
		}
	}
	return out
}

type allQuery struct{}

func (allQuery) Select(_ Index, universe IDSet) IDSet { return union(universe, nil) }
func (allQuery) String() string                       { return "*" }

type tagQuery struct{ tag string }

func (q tagQuery) Select(index Index, universe IDSet) IDSet {
	return intersect(index[q.tag], universe)
}
func (q tagQuery) String() string { return q.tag }

type notQuery struct{ inner Query }

func (q notQuery) Select(index Index, universe IDSet) IDSet {
	return difference(universe, q.inner.Select(index, universe))
}
func (q notQuery) String() string { return "NOT " + q.inner.String() }

type andQuery struct{ left, right Query }

func (q andQuery) Select(index Index, universe IDSet) IDSet {
	return intersect(q.left.Select(index, universe), q.right.Select(index, universe))
}
func (q andQuery) String() string { return "(" + q.left.String() + " AND " + q.right.String() + ")" }

type orQuery struct{ left, right Query }

func (q orQuery) Select(index Index, universe IDSet) IDSet {
	return union(q.left.Select(index, universe), q.right.Select(index, universe))
}
func (q orQuery) String() string { return "(" + q.left.String() + " OR " + q.right.String() + ")" }

// ParseQuery parses a tag expression. An empty expression or "*" selects
// every document.
func ParseQuery(s string) (Query, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" || trimmed == "*" {
		return allQuery{}, nil
	}

	p := &parser{tokens: tokenize(trimmed)}
	q, err := p.expr()
	if err != nil {
		return nil, domain.ValidationError(fmt.Sprintf("invalid tag query %q", s), err)
	}
	if !p.done() {
		return nil, domain.ValidationError(fmt.Sprintf("invalid tag query %q", s),
			fmt.Errorf("unexpected %q", p.peek()))
	}
	return q, nil
}

func tokenize(s string) []string {
	var tokens []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}
	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
			flush()
		case r == '(' || r == ')' || r == '!':
			flush()
			tokens = append(tokens, string(r))
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return tokens
}

type parser struct {
	tokens []string
	pos    int
}

func (p *parser) done() bool { return p.pos >= len(p.tokens) }

func (p *parser) peek() string {
	if p.done() {
		return ""
	}
	return p.tokens[p.pos]
}

func (p *parser) keyword(kw string) bool {
	if strings.EqualFold(p.peek(), kw) {
		p.pos++
		return true
	}
	return false
}

func (p *parser) expr() (Query, error) {
	left, err := p.term()
	if err != nil {
		return nil, err
	}
	for p.keyword("OR") {
		right, err := p.term()
		if err != nil {
			return nil, err
		}
		left = orQuery{left, right}
	}
	return left, nil
}

func (p *parser) term() (Query, error) {
	left, err := p.factor()
	if err != nil {
		return nil, err
	}
	for {
		if p.keyword("AND") {
			right, err := p.factor()
			if err != nil {
				return nil, err
			}
			left = andQuery{left, right}
			continue
		}
		next := p.peek()
		if next == "" || next == ")" || strings.EqualFold(next, "OR") {
			return left, nil
		}
		right, err := p.factor()
		if err != nil {
			return nil, err
		}
		left = andQuery{left, right}
	}
}

func (p *parser) factor() (Query, error) {
	if p.done() {
		return nil, fmt.Errorf("unexpected end of query")
	}
	if p.keyword("NOT") || p.keyword("!") {
		inner, err := p.factor()
		if err != nil {
			return nil, err
		}
		return notQuery{inner}, nil
	}
	tok := p.peek()
	switch {
	case tok == "(":
		p.pos++
		inner, err := p.expr()
		if err != nil {
			return nil, err
		}
		if !p.keyword(")") {
			return nil, fmt.Errorf("missing closing parenthesis")
		}
		return inner, nil
	case tok == ")":
		return nil, fmt.Errorf("unexpected %q", tok)
	case strings.EqualFold(tok, "AND") || strings.EqualFold(tok, "OR"):
		return nil, fmt.Errorf("unexpected operator %q", tok)
	}
	p.pos++
	return tagQuery{tag: domain.NormalizeTag(tok)}, nil
}
