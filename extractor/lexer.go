package extractor

// Content-stream tokenizer. It recognizes just enough of the PDF syntax to
// drive the text-state walk: numbers, literal and hex strings, names, array
// and dictionary delimiters, and operator keywords. Anything else is skipped.

type csTokenKind int

const (
	tokNumber csTokenKind = iota
	tokString
	tokName
	tokOperator
	tokArrayOpen
	tokArrayClose
	tokDictOpen
	tokDictClose
	tokArray // synthesized by the walker, never emitted by the lexer
)

type csToken struct {
	kind csTokenKind
	num  float64
	str  []byte
	name string
	op   string
}

type operand struct {
	kind csTokenKind
	num  float64
	str  []byte
	name string
	arr  []operand
}

type csLexer struct {
	data []byte
	pos  int
}

func (l *csLexer) next() (csToken, bool) {
	l.skipSpace()
	if l.pos >= len(l.data) {
		return csToken{}, false
	}
	c := l.data[l.pos]
	switch {
	case c == '%':
		l.skipComment()
		return l.next()
	case c == '(':
		l.pos++
		return csToken{kind: tokString, str: l.literalString()}, true
	case c == '<':
		if l.pos+1 < len(l.data) && l.data[l.pos+1] == '<' {
			l.pos += 2
			return csToken{kind: tokDictOpen}, true
		}
		l.pos++
		return csToken{kind: tokString, str: l.hexString()}, true
	case c == '>':
		if l.pos+1 < len(l.data) && l.data[l.pos+1] == '>' {
			l.pos += 2
			return csToken{kind: tokDictClose}, true
		}
		l.pos++
		return l.next()
	case c == '[':
		l.pos++
		return csToken{kind: tokArrayOpen}, true
	case c == ']':
		l.pos++
		return csToken{kind: tokArrayClose}, true
	case c == '/':
		l.pos++
		return csToken{kind: tokName, name: l.nameToken()}, true
	case c == '+' || c == '-' || c == '.' || (c >= '0' && c <= '9'):
		return csToken{kind: tokNumber, num: l.number()}, true
	default:
		op := l.operatorToken()
		if op == "" {
			l.pos++
			return l.next()
		}
		return csToken{kind: tokOperator, op: op}, true
	}
}

func (l *csLexer) skipSpace() {
	for l.pos < len(l.data) {
		switch l.data[l.pos] {
		case ' ', '\t', '\r', '\n', '\f', 0:
			l.pos++
		default:
			return
		}
	}
}

func (l *csLexer) skipComment() {
	for l.pos < len(l.data) && l.data[l.pos] != '\n' && l.data[l.pos] != '\r' {
		l.pos++
	}
}

// literalString consumes a (...) string, handling nested parentheses and the
// standard escapes including octal codes.
func (l *csLexer) literalString() []byte {
	var out []byte
	depth := 1
	for l.pos < len(l.data) {
		c := l.data[l.pos]
		l.pos++
		switch c {
		case '\\':
			if l.pos >= len(l.data) {
				return out
			}
			esc := l.data[l.pos]
			l.pos++
			switch esc {
			case 'n':
				out = append(out, '\n')
			case 'r':
				out = append(out, '\r')
			case 't':
				out = append(out, '\t')
			case 'b':
				out = append(out, '\b')
			case 'f':
				out = append(out, '\f')
			case '(', ')', '\\':
				out = append(out, esc)
			case '\n':
				// line continuation
			case '\r':
				if l.pos < len(l.data) && l.data[l.pos] == '\n' {
					l.pos++
				}
			default:
				if esc >= '0' && esc <= '7' {
					val := int(esc - '0')
					for i := 0; i < 2 && l.pos < len(l.data); i++ {
						d := l.data[l.pos]
						if d < '0' || d > '7' {
							break
						}
						val = val*8 + int(d-'0')
						l.pos++
					}
					out = append(out, byte(val))
				} else {
					out = append(out, esc)
				}
			}
		case '(':
			depth++
			out = append(out, c)
		case ')':
			depth--
			if depth == 0 {
				return out
			}
			out = append(out, c)
		default:
			out = append(out, c)
		}
	}
	return out
}

func (l *csLexer) hexString() []byte {
	var out []byte
	var hi byte
	haveHi := false
	for l.pos < len(l.data) {
		c := l.data[l.pos]
		l.pos++
		if c == '>' {
			break
		}
		v, ok := fromHexChar(c)
		if !ok {
			continue
		}
		if haveHi {
			out = append(out, hi<<4|v)
			haveHi = false
		} else {
			hi = v
			haveHi = true
		}
	}
	if haveHi {
		out = append(out, hi<<4)
	}
	return out
}

func (l *csLexer) nameToken() string {
	start := l.pos
	for l.pos < len(l.data) && isRegular(l.data[l.pos]) {
		l.pos++
	}
	return string(l.data[start:l.pos])
}

func (l *csLexer) number() float64 {
	start := l.pos
	if l.data[l.pos] == '+' || l.data[l.pos] == '-' {
		l.pos++
	}
	for l.pos < len(l.data) {
		c := l.data[l.pos]
		if (c >= '0' && c <= '9') || c == '.' {
			l.pos++
		} else {
			break
		}
	}
	return parseFloat(l.data[start:l.pos])
}

func (l *csLexer) operatorToken() string {
	start := l.pos
	for l.pos < len(l.data) && isOperatorChar(l.data[l.pos]) {
		l.pos++
	}
	return string(l.data[start:l.pos])
}

// skipInlineImage consumes everything through the EI keyword so binary image
// data is never tokenized.
func (l *csLexer) skipInlineImage() {
	for l.pos+1 < len(l.data) {
		if l.data[l.pos] == 'E' && l.data[l.pos+1] == 'I' &&
			(l.pos+2 >= len(l.data) || isDelimiterOrSpace(l.data[l.pos+2])) {
			l.pos += 2
			return
		}
		l.pos++
	}
	l.pos = len(l.data)
}

func isRegular(c byte) bool {
	switch c {
	case ' ', '\t', '\r', '\n', '\f', 0, '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return false
	}
	return true
}

func isOperatorChar(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '\'' || c == '"' || c == '*' || c == '0' || c == '1'
}

func isDelimiterOrSpace(c byte) bool {
	return !isRegular(c) || c == ' '
}

func fromHexChar(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	}
	return 0, false
}

func parseFloat(b []byte) float64 {
	neg := false
	i := 0
	if i < len(b) && (b[i] == '+' || b[i] == '-') {
		neg = b[i] == '-'
		i++
	}
	var intPart, fracPart float64
	var fracDiv = 1.0
	seenDot := false
	for ; i < len(b); i++ {
		c := b[i]
		if c == '.' {
			seenDot = true
			continue
		}
		if seenDot {
			fracDiv *= 10
			fracPart = fracPart*10 + float64(c-'0')
		} else {
			intPart = intPart*10 + float64(c-'0')
		}
	}
	v := intPart + fracPart/fracDiv
	if neg {
		return -v
	}
	return v
}
