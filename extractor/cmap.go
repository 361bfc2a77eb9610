package extractor

import (
	"bufio"
	"bytes"
	"sort"
	"strings"
)

// toUnicodeMap decodes font byte codes into text using the font's embedded
// ToUnicode CMap. Codes can be one to four bytes wide; decoding tries the
// longest known code width first.
type toUnicodeMap struct {
	entries map[string]string
	lengths []int // descending
}

func parseToUnicodeCMap(data []byte) *toUnicodeMap {
	sc := bufio.NewScanner(bytes.NewReader(data))
	result := &toUnicodeMap{entries: make(map[string]string)}
	lengthSet := make(map[int]struct{})
	state := ""
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "%") {
			continue
		}
		switch {
		case strings.HasSuffix(line, "begincodespacerange"):
			state = "codespace"
			continue
		case strings.HasSuffix(line, "endcodespacerange"),
			strings.HasSuffix(line, "endbfchar"),
			strings.HasSuffix(line, "endbfrange"):
			state = ""
			continue
		case strings.HasSuffix(line, "beginbfchar"):
			state = "bfchar"
			continue
		case strings.HasSuffix(line, "beginbfrange"):
			state = "bfrange"
			continue
		}
		switch state {
		case "codespace":
			if hexes := hexTokens(line); len(hexes) >= 1 {
				if b := hexBytes(hexes[0]); len(b) > 0 {
					lengthSet[len(b)] = struct{}{}
				}
			}
		case "bfchar":
			hexes := hexTokens(line)
			if len(hexes) >= 2 {
				src := hexBytes(hexes[0])
				dst := decodeUTF16BE(hexBytes(hexes[1]))
				if len(src) > 0 {
					result.entries[string(src)] = dst
					lengthSet[len(src)] = struct{}{}
				}
			}
		case "bfrange":
			line = joinUntilBracketClose(line, sc)
			hexes := hexTokens(line)
			if len(hexes) < 3 {
				continue
			}
			srcStart := hexBytes(hexes[0])
			srcEnd := hexBytes(hexes[1])
			width := len(srcStart)
			lengthSet[width] = struct{}{}
			startVal := bytesToInt(srcStart)
			endVal := bytesToInt(srcEnd)
			if strings.Contains(line, "[") {
				for i := 0; i <= endVal-startVal && 2+i < len(hexes); i++ {
					src := intToBytes(startVal+i, width)
					result.entries[string(src)] = decodeUTF16BE(hexBytes(hexes[2+i]))
				}
			} else {
				dstStart := hexBytes(hexes[2])
				dstVal := bytesToInt(dstStart)
				dstWidth := len(dstStart)
				for i := 0; i <= endVal-startVal; i++ {
					src := intToBytes(startVal+i, width)
					result.entries[string(src)] = decodeUTF16BE(intToBytes(dstVal+i, dstWidth))
				}
			}
		}
	}
	if len(lengthSet) == 0 {
		for k := range result.entries {
			lengthSet[len(k)] = struct{}{}
		}
	}
	for l := range lengthSet {
		result.lengths = append(result.lengths, l)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(result.lengths)))
	return result
}

func (m *toUnicodeMap) decode(data []byte) string {
	var out strings.Builder
	for len(data) > 0 {
		matched := false
		for _, l := range m.lengths {
			if len(data) < l {
				continue
			}
			if val, ok := m.entries[string(data[:l])]; ok {
				out.WriteString(val)
				data = data[l:]
				matched = true
				break
			}
		}
		if !matched {
			// same Latin-1 fallback as raw string decoding, so high bytes
			// stay valid UTF-8 and keep their mojibake shape
			out.WriteRune(rune(data[0]))
			data = data[1:]
		}
	}
	return out.String()
}

// joinUntilBracketClose accumulates continuation lines of a bfrange entry
// whose destination array spans lines.
func joinUntilBracketClose(line string, sc *bufio.Scanner) string {
	if !strings.Contains(line, "[") || strings.Contains(line, "]") {
		return line
	}
	for sc.Scan() {
		next := strings.TrimSpace(sc.Text())
		line += " " + next
		if strings.Contains(next, "]") {
			break
		}
	}
	return line
}

func hexTokens(line string) []string {
	var tokens []string
	for {
		start := strings.Index(line, "<")
		if start == -1 {
			break
		}
		end := strings.Index(line[start+1:], ">")
		if end == -1 {
			break
		}
		tokens = append(tokens, strings.ReplaceAll(line[start+1:start+1+end], " ", ""))
		line = line[start+1+end+1:]
	}
	return tokens
}

func hexBytes(hex string) []byte {
	if len(hex)%2 == 1 {
		hex += "0"
	}
	out := make([]byte, len(hex)/2)
	for i := 0; i < len(hex); i += 2 {
		hi, _ := fromHexChar(hex[i])
		lo, _ := fromHexChar(hex[i+1])
		out[i/2] = hi<<4 | lo
	}
	return out
}

func bytesToInt(b []byte) int {
	val := 0
	for _, by := range b {
		val = val<<8 | int(by)
	}
	return val
}

func intToBytes(value, width int) []byte {
	buf := make([]byte, width)
	for i := width - 1; i >= 0; i-- {
		buf[i] = byte(value & 0xFF)
		value >>= 8
	}
	return buf
}
