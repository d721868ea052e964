package makefilepl

import (
	"bytes"
	"fmt"
	"strings"
)

type tokKind int

const (
	tokEOF    tokKind = iota
	tokWord           // identifier or bareword, including Foo::Bar
	tokString         // literal string, unescaped
	tokInterp         // string that interpolates variables
	tokNumber         // numeric literal as written
	tokVar            // $x @x %x, sigil included
	tokWords          // qw() list
	tokPunct          // operator or bracket
)

type token struct {
	kind  tokKind
	text  string
	words []string
	line  int
}

func (t token) is(kind tokKind, text string) bool {
	return t.kind == kind && t.text == text
}

func (t token) String() string {
	if t.kind == tokEOF {
		return "end of file"
	}
	return fmt.Sprintf("%q at line %d", t.text, t.line)
}

// lexer splits Perl source into tokens. It understands just enough of the
// language to skip over code it does not care about: comments, POD, heredocs,
// quote-like operators and regex literals.
type lexer struct {
	src  []byte
	pos  int
	line int
	prev token

	// resume is where scanning continues after the current line when
	// heredoc bodies follow it.
	resume int
}

func newLexer(src []byte) *lexer {
	return &lexer{src: src, line: 1}
}

func (l *lexer) peekByte(off int) byte {
	if l.pos+off < len(l.src) {
		return l.src[l.pos+off]
	}
	return 0
}

func (l *lexer) atLineStart() bool {
	return l.pos == 0 || l.src[l.pos-1] == '\n'
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdent(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func (l *lexer) newline() {
	l.line++
	l.pos++
	if l.resume > 0 {
		l.line += bytes.Count(l.src[l.pos:l.resume], []byte{'\n'})
		l.pos = l.resume
		l.resume = 0
	}
}

// skipSpace skips whitespace, comments and POD blocks.
func (l *lexer) skipSpace() {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case c == '\n':
			l.newline()
		case c == ' ' || c == '\t' || c == '\r' || c == '\f':
			l.pos++
		case c == '#':
			for l.pos < len(l.src) && l.src[l.pos] != '\n' {
				l.pos++
			}
		case c == '=' && l.atLineStart() && isIdentStart(l.peekByte(1)):
			l.skipPod()
		default:
			return
		}
	}
}

func (l *lexer) skipPod() {
	for l.pos < len(l.src) {
		end := bytes.IndexByte(l.src[l.pos:], '\n')
		if end < 0 {
			l.pos = len(l.src)
			return
		}
		isCut := bytes.HasPrefix(l.src[l.pos:], []byte("=cut"))
		l.pos += end
		l.newline()
		if isCut {
			return
		}
	}
}

func (l *lexer) next() (token, error) {
	l.skipSpace()
	if l.pos >= len(l.src) {
		return token{kind: tokEOF, line: l.line}, nil
	}

	t, err := l.scan()
	if err != nil {
		return token{}, err
	}
	t.line = l.line
	l.prev = t
	return t, nil
}

func (l *lexer) scan() (token, error) {
	c := l.src[l.pos]
	switch {
	case isIdentStart(c):
		return l.word()
	case isDigit(c) || (c == '.' && isDigit(l.peekByte(1))):
		return l.number(), nil
	case c == '\'':
		l.pos++
		body, err := l.delimited('\'')
		return token{kind: tokString, text: unescapeSingle(body, '\'')}, err
	case c == '"':
		l.pos++
		body, err := l.delimited('"')
		return doubleQuoted(body), err
	case c == '`':
		l.pos++
		body, err := l.delimited('`')
		return token{kind: tokInterp, text: body}, err
	case c == '$' || c == '@' || c == '%':
		if t, ok := l.variable(); ok {
			return t, nil
		}
	case c == '/' && l.regexAllowed():
		l.pos++
		body, err := l.delimited('/')
		l.flags()
		return token{kind: tokInterp, text: body}, err
	case c == '<' && l.peekByte(1) == '<' && l.heredocAhead():
		return l.heredoc()
	}
	return l.punct(), nil
}

var quoteOps = map[string]int{
	"q": 1, "qq": 1, "qw": 1, "qr": 1, "m": 1,
	"s": 2, "tr": 2, "y": 2,
}

func (l *lexer) word() (token, error) {
	start := l.pos
	for l.pos < len(l.src) {
		if isIdent(l.src[l.pos]) {
			l.pos++
		} else if l.src[l.pos] == ':' && l.peekByte(1) == ':' && isIdentStart(l.peekByte(2)) {
			l.pos += 2
		} else {
			break
		}
	}
	w := string(l.src[start:l.pos])

	if (w == "__END__" || w == "__DATA__") && (start == 0 || l.src[start-1] == '\n') {
		l.pos = len(l.src)
		return token{kind: tokEOF}, nil
	}

	parts, ok := quoteOps[w]
	if !ok {
		return token{kind: tokWord, text: w}, nil
	}
	open, ok := l.quoteDelimiter()
	if !ok {
		return token{kind: tokWord, text: w}, nil
	}
	body, err := l.delimited(open)
	if err != nil {
		return token{}, err
	}
	if parts == 2 {
		if _, isPair := closers[open]; isPair {
			l.skipSpace()
			if l.pos >= len(l.src) {
				return token{}, fmt.Errorf("line %d: unterminated %s", l.line, w)
			}
			open = l.src[l.pos]
			l.pos++
		}
		if _, err := l.delimited(open); err != nil {
			return token{}, err
		}
	}

	switch w {
	case "q":
		return token{kind: tokString, text: unescapeSingle(body, open)}, nil
	case "qq":
		return doubleQuoted(body), nil
	case "qw":
		return token{kind: tokWords, text: body, words: strings.Fields(body)}, nil
	}
	l.flags()
	return token{kind: tokInterp, text: body}, nil
}

// quoteDelimiter reports the opening delimiter of a quote-like operator, if
// the word just read is followed by one. A word followed by "=>" or a
// separator is a plain bareword.
func (l *lexer) quoteDelimiter() (byte, bool) {
	p := l.pos
	for p < len(l.src) && (l.src[p] == ' ' || l.src[p] == '\t') {
		p++
	}
	if p >= len(l.src) {
		return 0, false
	}
	c := l.src[p]
	if isIdent(c) || c == ' ' || c == '\n' || c == '\r' || c == '\t' {
		return 0, false
	}
	switch c {
	case ',', ';', ')', ']', '}', '=', '>', '-':
		return 0, false
	case '#':
		// "q#...#" is a quote only without intervening space
		if p != l.pos {
			return 0, false
		}
	}
	l.pos = p + 1
	return c, true
}

var closers = map[byte]byte{'(': ')', '[': ']', '{': '}', '<': '>'}

// delimited reads up to the closing delimiter matching open, which has
// already been consumed. Bracketing delimiters nest.
func (l *lexer) delimited(open byte) (string, error) {
	closeCh, paired := closers[open]
	if !paired {
		closeCh = open
	}
	startLine := l.line
	start := l.pos
	depth := 0
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case c == '\\':
			l.pos += 2
			continue
		case c == '\n':
			l.line++
		case paired && c == open:
			depth++
		case c == closeCh:
			if depth == 0 {
				body := string(l.src[start:l.pos])
				l.pos++
				return body, nil
			}
			depth--
		}
		l.pos++
	}
	return "", fmt.Errorf("line %d: unterminated string", startLine)
}

func (l *lexer) flags() {
	for l.pos < len(l.src) && isIdent(l.src[l.pos]) {
		l.pos++
	}
}

func (l *lexer) number() token {
	start := l.pos
	if l.src[l.pos] == '0' && (l.peekByte(1) == 'x' || l.peekByte(1) == 'b') {
		l.pos += 2
	}
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		if isIdent(c) || c == '.' && isDigit(l.peekByte(1)) {
			l.pos++
			continue
		}
		break
	}
	return token{kind: tokNumber, text: string(l.src[start:l.pos])}
}

func (l *lexer) variable() (token, bool) {
	sigil := l.src[l.pos]
	n := l.peekByte(1)
	switch {
	case isIdentStart(n) || (n == ':' && l.peekByte(2) == ':'):
		l.pos++
		start := l.pos
		for l.pos < len(l.src) && (isIdent(l.src[l.pos]) || l.src[l.pos] == ':') {
			l.pos++
		}
		return token{kind: tokVar, text: string(sigil) + string(l.src[start:l.pos])}, true
	case sigil == '$' && n == '#':
		l.pos += 2
		if isIdentStart(l.peekByte(0)) {
			for l.pos < len(l.src) && isIdent(l.src[l.pos]) {
				l.pos++
			}
		}
		return token{kind: tokVar, text: "$#"}, true
	case sigil == '$' && n == '^':
		l.pos += 3
		return token{kind: tokVar, text: string(l.src[l.pos-3 : l.pos])}, true
	case sigil == '$' && isDigit(n):
		l.pos += 2
		return token{kind: tokVar, text: string(l.src[l.pos-2 : l.pos])}, true
	case sigil == '$' && n != 0 && strings.IndexByte("]_@!$0&;,./\\", n) >= 0:
		l.pos += 2
		return token{kind: tokVar, text: string(l.src[l.pos-2 : l.pos])}, true
	case n == '{' || (sigil != '%' && n == '$'):
		l.pos++
		return token{kind: tokVar, text: string(sigil)}, true
	case sigil == '@' && n == '_':
		l.pos += 2
		return token{kind: tokVar, text: "@_"}, true
	}
	return token{}, false
}

// regexAllowed decides whether a slash starts a match rather than a division,
// based on the previous token.
func (l *lexer) regexAllowed() bool {
	switch l.prev.kind {
	case tokEOF:
		return true
	case tokPunct:
		switch l.prev.text {
		case ")", "]", "}":
			return false
		}
		return true
	case tokWord:
		switch l.prev.text {
		case "split", "grep", "map", "join", "and", "or", "not", "if", "unless", "return", "while", "until":
			return true
		}
	}
	return false
}

func (l *lexer) heredocAhead() bool {
	c := l.peekByte(2)
	return c == '"' || c == '\'' || c == '~' || isIdentStart(c)
}

func (l *lexer) heredoc() (token, error) {
	l.pos += 2
	indent := false
	if l.peekByte(0) == '~' {
		indent = true
		l.pos++
	}

	interp := true
	var term string
	switch q := l.peekByte(0); {
	case q == '"' || q == '\'':
		l.pos++
		end := bytes.IndexByte(l.src[l.pos:], q)
		if end < 0 {
			return token{}, fmt.Errorf("line %d: unterminated heredoc marker", l.line)
		}
		term = string(l.src[l.pos : l.pos+end])
		l.pos += end + 1
		interp = q == '"'
	case isIdentStart(q):
		start := l.pos
		for l.pos < len(l.src) && isIdent(l.src[l.pos]) {
			l.pos++
		}
		term = string(l.src[start:l.pos])
	default:
		return token{}, fmt.Errorf("line %d: bad heredoc marker", l.line)
	}

	// The body starts after the current line, or after a previous heredoc
	// body on the same line.
	bodyStart := l.resume
	if bodyStart == 0 {
		nl := bytes.IndexByte(l.src[l.pos:], '\n')
		if nl < 0 {
			return token{}, fmt.Errorf("line %d: heredoc %s has no body", l.line, term)
		}
		bodyStart = l.pos + nl + 1
	}

	var body strings.Builder
	p := bodyStart
	for {
		if p >= len(l.src) {
			return token{}, fmt.Errorf("line %d: unterminated heredoc %s", l.line, term)
		}
		end := bytes.IndexByte(l.src[p:], '\n')
		var line string
		next := len(l.src)
		if end < 0 {
			line = string(l.src[p:])
		} else {
			line = string(l.src[p : p+end])
			next = p + end + 1
		}
		check := strings.TrimRight(line, "\r")
		if indent {
			check = strings.TrimLeft(check, " \t")
		}
		if check == term {
			l.resume = next
			break
		}
		body.WriteString(line)
		body.WriteByte('\n')
		p = next
	}

	t := token{kind: tokString, text: body.String()}
	if interp && hasInterpolation(t.text) {
		t.kind = tokInterp
	}
	return t, nil
}

var puncts = []string{"=>", "==", "=~", "!~", "!=", "->", "<=", ">=", "&&", "||", "..", "::", "<<", ">>", "**"}

func (l *lexer) punct() token {
	for _, p := range puncts {
		if bytes.HasPrefix(l.src[l.pos:], []byte(p)) {
			l.pos += len(p)
			return token{kind: tokPunct, text: p}
		}
	}
	l.pos++
	return token{kind: tokPunct, text: string(l.src[l.pos-1])}
}

func unescapeSingle(s string, delim byte) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) && (s[i+1] == '\\' || s[i+1] == delim || s[i+1] == closers[delim]) {
			i++
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func hasInterpolation(s string) bool {
	for i := 0; i < len(s)-1; i++ {
		switch s[i] {
		case '\\':
			i++
		case '$', '@':
			n := s[i+1]
			if isIdentStart(n) || n == '{' || n == ':' || (s[i] == '$' && n != ' ' && n != '\t' && n != '\n') {
				return true
			}
		}
	}
	return false
}

var escapes = map[byte]byte{'n': '\n', 't': '\t', 'r': '\r', '0': 0, 'a': 7, 'e': 27, 'f': '\f'}

func doubleQuoted(body string) token {
	if hasInterpolation(body) {
		return token{kind: tokInterp, text: body}
	}
	var b strings.Builder
	for i := 0; i < len(body); i++ {
		c := body[i]
		if c == '\\' && i+1 < len(body) {
			i++
			if e, ok := escapes[body[i]]; ok {
				b.WriteByte(e)
				continue
			}
			c = body[i]
		}
		b.WriteByte(c)
	}
	return token{kind: tokString, text: b.String()}
}
