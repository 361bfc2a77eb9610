package extractor

import (
	"strings"
	"unicode/utf16"
)

// Run is one positioned text-showing call. X/Y are the run's origin in
// device space after applying the text and transformation matrices.
type Run struct {
	Text string
	X, Y float64
	Font string // resolved BaseFont name
}

// matrix is a PDF transformation matrix [a b c d e f].
type matrix [6]float64

func identity() matrix { return matrix{1, 0, 0, 1, 0, 0} }

func translation(tx, ty float64) matrix { return matrix{1, 0, 0, 1, tx, ty} }

func (m matrix) mul(o matrix) matrix {
	return matrix{
		m[0]*o[0] + m[1]*o[2],
		m[0]*o[1] + m[1]*o[3],
		m[2]*o[0] + m[3]*o[2],
		m[2]*o[1] + m[3]*o[3],
		m[4]*o[0] + m[5]*o[2] + o[4],
		m[4]*o[1] + m[5]*o[3] + o[5],
	}
}

func (m matrix) apply(x, y float64) (float64, float64) {
	return m[0]*x + m[2]*y + m[4], m[1]*x + m[3]*y + m[5]
}

// textState mirrors the PDF text-object state relevant for positioning.
type textState struct {
	tm, tlm  matrix
	leading  float64
	fontRes  string
	fontSize float64
}

// parseContent walks one decoded content stream and returns the positioned
// text runs plus whether any text-showing operator was seen. fonts maps page
// resource names (the Tf operand) to BaseFont names.
func (e *Extractor) parseContent(data []byte, fonts map[string]string) ([]Run, bool) {
	lx := &csLexer{data: data}
	var runs []Run
	sawText := false

	ctm := identity()
	var ctmStack []matrix
	ts := textState{tm: identity(), tlm: identity()}

	var operands []operand
	for {
		tok, ok := lx.next()
		if !ok {
			break
		}
		if tok.kind != tokOperator {
			operands = appendOperand(operands, tok, lx)
			continue
		}
		switch tok.op {
		case "q":
			ctmStack = append(ctmStack, ctm)
		case "Q":
			if n := len(ctmStack); n > 0 {
				ctm = ctmStack[n-1]
				ctmStack = ctmStack[:n-1]
			}
		case "cm":
			if m, ok := matrixFromOperands(operands); ok {
				ctm = m.mul(ctm)
			}
		case "BT":
			ts.tm = identity()
			ts.tlm = identity()
		case "Tf":
			if len(operands) >= 2 {
				if operands[len(operands)-2].kind == tokName {
					ts.fontRes = operands[len(operands)-2].name
				}
				if operands[len(operands)-1].kind == tokNumber {
					ts.fontSize = operands[len(operands)-1].num
				}
			}
		case "TL":
			if len(operands) >= 1 && operands[len(operands)-1].kind == tokNumber {
				ts.leading = operands[len(operands)-1].num
			}
		case "Td", "TD":
			if len(operands) >= 2 &&
				operands[len(operands)-2].kind == tokNumber &&
				operands[len(operands)-1].kind == tokNumber {
				tx := operands[len(operands)-2].num
				ty := operands[len(operands)-1].num
				if tok.op == "TD" {
					ts.leading = -ty
				}
				ts.tlm = translation(tx, ty).mul(ts.tlm)
				ts.tm = ts.tlm
			}
		case "Tm":
			if m, ok := matrixFromOperands(operands); ok {
				ts.tlm = m
				ts.tm = m
			}
		case "T*":
			ts.nextLine()
		case "Tj":
			sawText = true
			if len(operands) >= 1 && operands[len(operands)-1].kind == tokString {
				runs = e.showRun(runs, operands[len(operands)-1].str, &ts, ctm, fonts)
			}
		case "'":
			sawText = true
			ts.nextLine()
			if len(operands) >= 1 && operands[len(operands)-1].kind == tokString {
				runs = e.showRun(runs, operands[len(operands)-1].str, &ts, ctm, fonts)
			}
		case "\"":
			sawText = true
			ts.nextLine()
			if len(operands) >= 1 && operands[len(operands)-1].kind == tokString {
				runs = e.showRun(runs, operands[len(operands)-1].str, &ts, ctm, fonts)
			}
		case "TJ":
			sawText = true
			if len(operands) >= 1 && operands[len(operands)-1].kind == tokArray {
				for _, el := range operands[len(operands)-1].arr {
					switch el.kind {
					case tokString:
						runs = e.showRun(runs, el.str, &ts, ctm, fonts)
					case tokNumber:
						// kerning adjustment, thousandths of text space
						ts.tm = translation(-el.num/1000*ts.fontSize, 0).mul(ts.tm)
					}
				}
			}
		case "BI":
			lx.skipInlineImage()
		}
		operands = operands[:0]
	}
	return runs, sawText
}

func (ts *textState) nextLine() {
	ts.tlm = translation(0, -ts.leading).mul(ts.tlm)
	ts.tm = ts.tlm
}

// showRun decodes a shown string, records its origin, and advances the text
// matrix by an approximate width. Exact glyph widths are not needed for
// bucketing; half an em per glyph matches the PDF default-width convention
// closely enough to keep consecutive runs in distinct cells.
func (e *Extractor) showRun(runs []Run, raw []byte, ts *textState, ctm matrix, fonts map[string]string) []Run {
	baseFont := fonts[ts.fontRes]
	text := e.decodeString(raw, baseFont)
	x, y := ts.tm.mul(ctm).apply(0, 0)
	glyphs := len([]rune(text))
	if glyphs == 0 {
		glyphs = len(raw)
	}
	width := float64(glyphs) * 0.5 * ts.fontSize
	ts.tm = translation(width, 0).mul(ts.tm)
	if strings.TrimSpace(text) == "" {
		return runs
	}
	return append(runs, Run{Text: text, X: x, Y: y, Font: baseFont})
}

// decodeString turns shown string bytes into text: ToUnicode CMap when the
// font has one, UTF-16BE on BOM, otherwise a Latin-1 view of the bytes. The
// Latin-1 view deliberately preserves legacy single-byte mojibake in the
// U+00C0 range so the quality assessor can detect it.
func (e *Extractor) decodeString(data []byte, baseFont string) string {
	if m := e.decoders[baseFont]; m != nil {
		return m.decode(data)
	}
	if len(data) >= 2 && data[0] == 0xFE && data[1] == 0xFF {
		return decodeUTF16BE(data[2:])
	}
	var b strings.Builder
	b.Grow(len(data))
	for _, c := range data {
		b.WriteRune(rune(c))
	}
	return b.String()
}

func decodeUTF16BE(data []byte) string {
	if len(data)%2 != 0 {
		data = data[:len(data)-1]
	}
	if len(data) == 0 {
		return ""
	}
	buf := make([]uint16, len(data)/2)
	for i := range buf {
		buf[i] = uint16(data[2*i])<<8 | uint16(data[2*i+1])
	}
	return string(utf16.Decode(buf))
}

func matrixFromOperands(operands []operand) (matrix, bool) {
	if len(operands) < 6 {
		return matrix{}, false
	}
	var m matrix
	for i := 0; i < 6; i++ {
		op := operands[len(operands)-6+i]
		if op.kind != tokNumber {
			return matrix{}, false
		}
		m[i] = op.num
	}
	return m, true
}

func appendOperand(operands []operand, tok csToken, lx *csLexer) []operand {
	switch tok.kind {
	case tokArrayOpen:
		arr := collectArray(lx)
		return append(operands, operand{kind: tokArray, arr: arr})
	case tokDictOpen:
		skipDict(lx)
		return operands
	case tokArrayClose, tokDictClose:
		return operands
	default:
		return append(operands, operand{kind: tok.kind, num: tok.num, str: tok.str, name: tok.name})
	}
}

func collectArray(lx *csLexer) []operand {
	var arr []operand
	for {
		tok, ok := lx.next()
		if !ok || tok.kind == tokArrayClose {
			return arr
		}
		if tok.kind == tokArrayOpen {
			arr = append(arr, operand{kind: tokArray, arr: collectArray(lx)})
			continue
		}
		if tok.kind == tokDictOpen {
			skipDict(lx)
			continue
		}
		if tok.kind == tokOperator {
			continue
		}
		arr = append(arr, operand{kind: tok.kind, num: tok.num, str: tok.str, name: tok.name})
	}
}

func skipDict(lx *csLexer) {
	depth := 1
	for depth > 0 {
		tok, ok := lx.next()
		if !ok {
			return
		}
		switch tok.kind {
		case tokDictOpen:
			depth++
		case tokDictClose:
			depth--
		}
	}
}
