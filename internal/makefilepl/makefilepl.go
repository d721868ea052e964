// Package makefilepl harvests the dependency table of an ExtUtils::MakeMaker
// Makefile.PL without running it.
//
// The script is tokenized and only a WriteMakefile(...) call whose arguments
// are literal is understood; everything else in the file is skipped. Values
// built at run time (variables, function calls, string concatenation) are
// never evaluated, so a key whose value is not literal is reported in
// Result.Rejected instead of guessed at.
package makefilepl

import (
	"context"
	"errors"
	"fmt"

	"github.com/frederic-klein/cpan2spec/internal/dist"
)

// DefaultTokenBudget bounds the number of tokens read from one script.
const DefaultTokenBudget = 200_000

var (
	ErrNoWriteMakefile = errors.New("no WriteMakefile call found")
	ErrTokenBudget     = errors.New("token budget exceeded")
)

// HarvestedKeys are the WriteMakefile arguments that carry dependencies.
var HarvestedKeys = []string{"PREREQ_PM", "BUILD_REQUIRES", "TEST_REQUIRES", "CONFIGURE_REQUIRES"}

// Result is the data harvested from one Makefile.PL.
type Result struct {
	Deps     map[string]dist.Deps // harvested key -> dependencies
	ExeFiles bool                 // EXE_FILES names at least one script
	MinPerl  string               // MIN_PERL_VERSION
	License  string               // LICENSE
	Rejected []string             // harvested keys whose value was not literal
}

// All merges every harvested key into one map, in HarvestedKeys order.
func (r *Result) All() dist.Deps {
	all := make(dist.Deps)
	for _, key := range HarvestedKeys {
		all.Merge(r.Deps[key])
	}
	return all
}

// Parse harvests src using DefaultTokenBudget.
func Parse(ctx context.Context, src []byte) (*Result, error) {
	return ParseBudget(ctx, src, DefaultTokenBudget)
}

// ParseBudget harvests src, reading at most budget tokens. It stops early
// with ctx.Err() when ctx is done.
func ParseBudget(ctx context.Context, src []byte, budget int) (*Result, error) {
	p := &parser{
		ctx:    ctx,
		lex:    newLexer(src),
		budget: budget,
		hashes: make(map[string][]value),
	}
	args, err := p.run()
	if err != nil {
		return nil, err
	}
	return harvest(args), nil
}

type valueKind int

const (
	valScalar valueKind = iota
	valHash
	valList
	valOpaque // anything that would need evaluation
)

type value struct {
	kind  valueKind
	str   string
	items []value // hash: alternating key/value, list: elements
}

var opaque = value{kind: valOpaque}

type parser struct {
	ctx    context.Context
	lex    *lexer
	budget int
	read   int

	peeked *token

	// hashes records literal "my %name = (...)" assignments so that
	// WriteMakefile(%name) can be resolved.
	hashes map[string][]value
}

func (p *parser) next() (token, error) {
	if p.peeked != nil {
		t := *p.peeked
		p.peeked = nil
		return t, nil
	}
	p.read++
	if p.read > p.budget {
		return token{}, fmt.Errorf("%w after %d tokens", ErrTokenBudget, p.budget)
	}
	if p.read%256 == 0 {
		if err := p.ctx.Err(); err != nil {
			return token{}, err
		}
	}
	return p.lex.next()
}

func (p *parser) peek() (token, error) {
	if p.peeked == nil {
		t, err := p.next()
		if err != nil {
			return token{}, err
		}
		p.peeked = &t
	}
	return *p.peeked, nil
}

// run scans the whole script and returns the arguments of the WriteMakefile
// call with the most literal key/value pairs.
func (p *parser) run() ([]value, error) {
	var best []value
	found := false

	for {
		t, err := p.next()
		if err != nil {
			return nil, err
		}
		switch {
		case t.kind == tokEOF:
			if !found {
				return nil, ErrNoWriteMakefile
			}
			return best, nil

		case t.kind == tokVar && t.text[0] == '%':
			if err := p.assignment(t.text); err != nil {
				return nil, err
			}

		case t.kind == tokWord && isWriteMakefile(t.text):
			n, err := p.peek()
			if err != nil {
				return nil, err
			}
			if !n.is(tokPunct, "(") {
				continue
			}
			p.next()
			items, err := p.list(")")
			if err != nil {
				return nil, fmt.Errorf("WriteMakefile at line %d: %w", t.line, err)
			}
			args := pairs(items)
			if !found || len(args) > len(best) {
				best = args
			}
			found = true
		}
	}
}

func isWriteMakefile(w string) bool {
	switch w {
	case "WriteMakefile", "ExtUtils::MakeMaker::WriteMakefile", "WriteMakefile1":
		return true
	}
	return false
}

func (p *parser) assignment(name string) error {
	t, err := p.peek()
	if err != nil || !t.is(tokPunct, "=") {
		return err
	}
	p.next()
	if t, err = p.peek(); err != nil || !t.is(tokPunct, "(") {
		return err
	}
	p.next()
	items, err := p.list(")")
	if err != nil {
		return fmt.Errorf("assignment to %s: %w", name, err)
	}
	p.hashes[name] = items
	return nil
}

// list reads comma-separated items up to and including the closer.
// Nested lists are flattened the way Perl flattens them.
func (p *parser) list(closer string) ([]value, error) {
	var items []value
	for {
		t, err := p.peek()
		if err != nil {
			return nil, err
		}
		switch {
		case t.kind == tokEOF:
			return nil, fmt.Errorf("missing %q", closer)
		case t.is(tokPunct, closer):
			p.next()
			return items, nil
		case t.is(tokPunct, ",") || t.is(tokPunct, "=>"):
			p.next()
			continue
		}

		got, err := p.item()
		if err != nil {
			return nil, err
		}
		items = append(items, got...)

		// Anything other than a separator or the closer means the item
		// was part of a larger expression.
		t, err = p.peek()
		if err != nil {
			return nil, err
		}
		if !t.is(tokPunct, ",") && !t.is(tokPunct, "=>") && !t.is(tokPunct, closer) && t.kind != tokEOF {
			if len(items) > 0 {
				items[len(items)-1] = opaque
			} else {
				items = append(items, opaque)
			}
			if err := p.skipExpr(); err != nil {
				return nil, err
			}
		}
	}
}

// item reads one list element. It may expand to several values (qw, nested
// lists, known hashes).
func (p *parser) item() ([]value, error) {
	t, err := p.next()
	if err != nil {
		return nil, err
	}

	switch t.kind {
	case tokString, tokNumber:
		return []value{{kind: valScalar, str: t.text}}, nil
	case tokWords:
		vals := make([]value, len(t.words))
		for i, w := range t.words {
			vals[i] = value{kind: valScalar, str: w}
		}
		return vals, nil
	case tokWord:
		n, err := p.peek()
		if err != nil {
			return nil, err
		}
		if n.is(tokPunct, "(") || n.is(tokPunct, "->") {
			return []value{opaque}, p.skipExpr()
		}
		return []value{{kind: valScalar, str: t.text}}, nil
	case tokVar:
		if t.text[0] == '%' {
			if h, ok := p.hashes[t.text]; ok {
				return h, nil
			}
		}
		return []value{opaque}, nil
	}

	switch t.text {
	case "{":
		items, err := p.list("}")
		return []value{{kind: valHash, items: items}}, err
	case "[":
		items, err := p.list("]")
		return []value{{kind: valList, items: items}}, err
	case "(":
		return p.list(")")
	case "\\":
		n, err := p.next()
		if err != nil {
			return nil, err
		}
		if n.kind == tokVar && n.text[0] == '%' {
			if h, ok := p.hashes[n.text]; ok {
				return []value{{kind: valHash, items: h}}, nil
			}
		}
		return []value{opaque}, nil
	case "-":
		n, err := p.next()
		if err != nil {
			return nil, err
		}
		if n.kind == tokNumber || n.kind == tokWord {
			return []value{{kind: valScalar, str: "-" + n.text}}, nil
		}
		return []value{opaque}, nil
	}
	return []value{opaque}, nil
}

// skipExpr consumes tokens up to the next separator or unmatched closing
// bracket, which is left unread.
func (p *parser) skipExpr() error {
	depth := 0
	for {
		t, err := p.peek()
		if err != nil {
			return err
		}
		if t.kind == tokEOF {
			return nil
		}
		if t.kind == tokPunct {
			switch t.text {
			case "(", "[", "{":
				depth++
			case ")", "]", "}":
				if depth == 0 {
					return nil
				}
				depth--
			case ",", "=>", ";":
				if depth == 0 {
					return nil
				}
			}
		}
		p.next()
	}
}

// pairs turns a flat list into key/value pairs. Items in key position that
// are not plain scalars (conditional sub-lists and the like) are dropped.
func pairs(items []value) []value {
	var out []value
	for i := 0; i < len(items); i++ {
		if items[i].kind != valScalar {
			continue
		}
		if i+1 >= len(items) {
			break
		}
		out = append(out, items[i], items[i+1])
		i++
	}
	return out
}

func harvest(args []value) *Result {
	res := &Result{Deps: make(map[string]dist.Deps)}
	for i := 0; i+1 < len(args); i += 2 {
		key, val := args[i].str, args[i+1]

		switch key {
		case "EXE_FILES":
			res.ExeFiles = val.kind == valOpaque || (val.kind == valList && len(val.items) > 0)
			continue
		case "MIN_PERL_VERSION":
			if val.kind == valScalar {
				res.MinPerl = val.str
			}
			continue
		case "LICENSE":
			if val.kind == valScalar {
				res.License = val.str
			}
			continue
		}
		if !isHarvested(key) {
			continue
		}

		deps, ok := literalDeps(val)
		if !ok {
			res.Rejected = append(res.Rejected, key)
			continue
		}
		if existing, seen := res.Deps[key]; seen {
			existing.Merge(deps)
		} else {
			res.Deps[key] = deps
		}
	}
	return res
}

func isHarvested(key string) bool {
	for _, k := range HarvestedKeys {
		if k == key {
			return true
		}
	}
	return false
}

func literalDeps(v value) (dist.Deps, bool) {
	if v.kind != valHash {
		return nil, false
	}
	deps := make(dist.Deps)
	kv := pairs(v.items)
	if len(kv) != len(v.items) {
		return nil, false
	}
	for i := 0; i+1 < len(kv); i += 2 {
		if kv[i+1].kind != valScalar {
			return nil, false
		}
		deps.Set(kv[i].str, kv[i+1].str)
	}
	return deps, true
}
