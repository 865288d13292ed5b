package extractor

import (
	"bufio"
	"bytes"
	"sort"
	"strings"
	"unicode/utf16"
)

// unicodeMap is a parsed ToUnicode CMap: code bytes to text, with the code
// byte lengths declared by the codespace ranges.
type unicodeMap struct {
	entries  map[string]string
	codeLens []int // descending, so longest match wins
}

// parseToUnicode reads the bfchar/bfrange sections of a ToUnicode CMap. The
// PostScript wrapper is ignored; only the hex pairs matter.
func parseToUnicode(data []byte) *unicodeMap {
	m := &unicodeMap{entries: make(map[string]string)}
	lens := make(map[int]struct{})

	section := ""
	lines := bufio.NewScanner(bytes.NewReader(data))
	for lines.Scan() {
		line := strings.TrimSpace(lines.Text())
		if line == "" || strings.HasPrefix(line, "%") {
			continue
		}
		switch {
		case strings.HasSuffix(line, "begincodespacerange"):
			section = "codespace"
			continue
		case strings.HasSuffix(line, "beginbfchar"):
			section = "bfchar"
			continue
		case strings.HasSuffix(line, "beginbfrange"):
			section = "bfrange"
			continue
		case strings.HasPrefix(line, "end"):
			section = ""
			continue
		}

		switch section {
		case "codespace":
			if hexes := hexTokens(line); len(hexes) > 0 {
				if b := hexBytes(hexes[0]); len(b) > 0 {
					lens[len(b)] = struct{}{}
				}
			}
		case "bfchar":
			hexes := hexTokens(line)
			if len(hexes) < 2 {
				continue
			}
			src := hexBytes(hexes[0])
			if len(src) == 0 {
				continue
			}
			m.entries[string(src)] = utf16BEString(hexBytes(hexes[1]))
			lens[len(src)] = struct{}{}
		case "bfrange":
			line = joinBracketed(line, lines)
			hexes := hexTokens(line)
			if len(hexes) < 3 {
				continue
			}
			src := hexBytes(hexes[0])
			lo, hi := beInt(src), beInt(hexBytes(hexes[1]))
			lens[len(src)] = struct{}{}
			if strings.Contains(line, "[") {
				// Explicit destination list, one entry per code.
				for i := 0; i <= hi-lo && 2+i < len(hexes); i++ {
					m.entries[string(beBytes(lo+i, len(src)))] = utf16BEString(hexBytes(hexes[2+i]))
				}
			} else {
				dst := hexBytes(hexes[2])
				base := beInt(dst)
				for i := 0; i <= hi-lo; i++ {
					m.entries[string(beBytes(lo+i, len(src)))] = utf16BEString(beBytes(base+i, len(dst)))
				}
			}
		}
	}

	if len(lens) == 0 {
		for k := range m.entries {
			lens[len(k)] = struct{}{}
		}
	}
	for l := range lens {
		m.codeLens = append(m.codeLens, l)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(m.codeLens)))
	return m
}

// decode maps code bytes to text; unmapped bytes pass through unchanged.
func (m *unicodeMap) decode(data []byte) string {
	if m == nil || len(m.codeLens) == 0 {
		return string(data)
	}
	var out strings.Builder
	for len(data) > 0 {
		matched := false
		for _, l := range m.codeLens {
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
			out.WriteByte(data[0])
			data = data[1:]
		}
	}
	return out.String()
}

// joinBracketed pulls in following lines until a bfrange's destination array
// closes.
func joinBracketed(line string, lines *bufio.Scanner) string {
	if !strings.Contains(line, "[") || strings.Contains(line, "]") {
		return line
	}
	for lines.Scan() {
		next := strings.TrimSpace(lines.Text())
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
		start := strings.IndexByte(line, '<')
		if start < 0 {
			break
		}
		end := strings.IndexByte(line[start+1:], '>')
		if end < 0 {
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
		out[i/2] = hexNibble(hex[i])<<4 | hexNibble(hex[i+1])
	}
	return out
}

func hexNibble(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	}
	return 0
}

func beInt(b []byte) int {
	v := 0
	for _, c := range b {
		v = v<<8 | int(c)
	}
	return v
}

func beBytes(v, n int) []byte {
	out := make([]byte, n)
	for i := n - 1; i >= 0; i-- {
		out[i] = byte(v)
		v >>= 8
	}
	return out
}

func utf16BEString(data []byte) string {
	if len(data)%2 == 1 {
		data = data[:len(data)-1]
	}
	if len(data) == 0 {
		return ""
	}
	units := make([]uint16, len(data)/2)
	for i := range units {
		units[i] = uint16(data[2*i])<<8 | uint16(data[2*i+1])
	}
	return string(utf16.Decode(units))
}
