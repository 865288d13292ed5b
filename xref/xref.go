// Package xref locates indirect objects: it parses classic cross-reference
// tables and cross-reference streams, follows Prev chains through incremental
// updates, and falls back to a full-file repair scan when the tables are
// broken.
package xref

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/hyeonwoo/redactkit/filters"
	"github.com/hyeonwoo/redactkit/ir/raw"
	"github.com/hyeonwoo/redactkit/recovery"
	"github.com/hyeonwoo/redactkit/scanner"
	"github.com/hyeonwoo/redactkit/security"
)

// Entry locates one indirect object: either a byte offset in the file, or a
// slot inside an object stream.
type Entry struct {
	Offset    int64
	Gen       int
	InStream  bool
	StreamNum int
	StreamIdx int
}

// Table maps object numbers to locations.
type Table interface {
	Lookup(objNum int) (Entry, bool)
	Objects() []int
	Trailer() raw.Dictionary
}

type ResolverConfig struct {
	Limits   security.Limits
	Recovery recovery.Strategy
}

type Resolver struct {
	cfg ResolverConfig
}

func NewResolver(cfg ResolverConfig) *Resolver {
	cfg.Limits = cfg.Limits.OrDefault()
	return &Resolver{cfg: cfg}
}

// Resolve reads the cross-reference chain starting at startxref. When the
// chain cannot be read and a non-strict recovery strategy is installed, the
// whole file is scanned for object headers instead.
func (rs *Resolver) Resolve(ctx context.Context, r io.ReaderAt) (Table, error) {
	data := readAll(r)
	t, err := rs.resolveChain(ctx, data)
	if err == nil {
		return t, nil
	}
	if rs.cfg.Recovery != nil {
		action := rs.cfg.Recovery.OnError(nil, err, recovery.Location{Component: "xref"})
		if action != recovery.ActionFail {
			return repair(ctx, data)
		}
	}
	return nil, err
}

func (rs *Resolver) resolveChain(ctx context.Context, data []byte) (Table, error) {
	offset, err := findStartXRef(data)
	if err != nil {
		return nil, err
	}

	merged := &table{entries: make(map[int]Entry)}
	seen := make(map[int64]bool)
	depth := 0

	for offset > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		depth++
		if depth > rs.cfg.Limits.MaxXRefDepth {
			return nil, errors.New("xref chain too deep")
		}
		if seen[offset] {
			return nil, errors.New("xref chain cycle")
		}
		seen[offset] = true
		if offset >= int64(len(data)) {
			return nil, fmt.Errorf("xref offset out of range: %d", offset)
		}

		var section *table
		if isClassicSection(data, offset) {
			section, err = rs.parseClassicSection(data, offset)
		} else {
			section, err = rs.parseStreamSection(ctx, data, offset)
		}
		if err != nil {
			return nil, err
		}

		// Newest section wins; older sections fill gaps only.
		for num, e := range section.entries {
			if _, ok := merged.entries[num]; !ok {
				merged.entries[num] = e
			}
		}
		if merged.trailer == nil {
			merged.trailer = section.trailer
		}

		next := int64(0)
		if section.trailer != nil {
			if prev, ok := raw.DictInt(section.trailer, "Prev"); ok {
				next = prev
			}
			// Hybrid files carry a parallel xref stream.
			if xs, ok := raw.DictInt(section.trailer, "XRefStm"); ok && xs > 0 && xs < int64(len(data)) && !seen[xs] {
				seen[xs] = true
				if hybrid, herr := rs.parseStreamSection(ctx, data, xs); herr == nil {
					for num, e := range hybrid.entries {
						if _, ok := merged.entries[num]; !ok {
							merged.entries[num] = e
						}
					}
				}
			}
		}
		offset = next
	}

	if len(merged.entries) == 0 {
		return nil, errors.New("empty xref table")
	}
	if merged.trailer == nil {
		return nil, errors.New("missing trailer")
	}
	return merged, nil
}

func findStartXRef(data []byte) (int64, error) {
	idx := bytes.LastIndex(data, []byte("startxref"))
	if idx < 0 {
		return 0, errors.New("startxref not found")
	}
	rest := data[idx+len("startxref"):]
	i := 0
	for i < len(rest) && (rest[i] == '\r' || rest[i] == '\n' || rest[i] == ' ') {
		i++
	}
	j := i
	for j < len(rest) && rest[j] >= '0' && rest[j] <= '9' {
		j++
	}
	if j == i {
		return 0, errors.New("startxref missing offset")
	}
	off, err := strconv.ParseInt(string(rest[i:j]), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse startxref: %w", err)
	}
	if off <= 0 || off >= int64(len(data)) {
		return 0, fmt.Errorf("xref offset out of range: %d", off)
	}
	return off, nil
}

func isClassicSection(data []byte, offset int64) bool {
	rest := data[offset:]
	for len(rest) > 0 && (rest[0] == ' ' || rest[0] == '\r' || rest[0] == '\n') {
		rest = rest[1:]
	}
	return bytes.HasPrefix(rest, []byte("xref"))
}

// parseClassicSection reads an "xref" table plus the trailer dictionary that
// follows it.
func (rs *Resolver) parseClassicSection(data []byte, offset int64) (*table, error) {
	s := scanner.New(bytes.NewReader(data), scanner.Config{
		MaxStringLength: rs.cfg.Limits.MaxStringLength,
	})
	if err := s.SeekTo(offset); err != nil {
		return nil, err
	}
	tok, err := s.Next()
	if err != nil || tok.Type != scanner.TokenKeyword || tok.Str != "xref" {
		return nil, errors.New("xref keyword not found at offset")
	}

	t := &table{entries: make(map[int]Entry)}
	for {
		tok, err = s.Next()
		if err != nil {
			return nil, fmt.Errorf("xref section: %w", err)
		}
		if tok.Type == scanner.TokenKeyword && tok.Str == "trailer" {
			break
		}
		if tok.Type != scanner.TokenNumber || !tok.IsInt {
			return nil, errors.New("invalid xref subsection header")
		}
		start := int(tok.Int)
		tok, err = s.Next()
		if err != nil || tok.Type != scanner.TokenNumber || !tok.IsInt {
			return nil, errors.New("invalid xref subsection count")
		}
		count := int(tok.Int)

		for i := 0; i < count; i++ {
			offTok, err := s.Next()
			if err != nil || offTok.Type != scanner.TokenNumber {
				return nil, errors.New("invalid xref entry offset")
			}
			genTok, err := s.Next()
			if err != nil || genTok.Type != scanner.TokenNumber {
				return nil, errors.New("invalid xref entry generation")
			}
			kindTok, err := s.Next()
			if err != nil || kindTok.Type != scanner.TokenKeyword {
				return nil, errors.New("invalid xref entry kind")
			}
			if kindTok.Str != "n" {
				continue // free entry
			}
			num := start + i
			if _, exists := t.entries[num]; !exists {
				t.entries[num] = Entry{Offset: offTok.Int, Gen: int(genTok.Int)}
			}
		}
	}

	obj, err := parseObject(s)
	if err != nil {
		return nil, fmt.Errorf("trailer: %w", err)
	}
	dict, ok := obj.(*raw.DictObj)
	if !ok {
		return nil, errors.New("trailer is not a dictionary")
	}
	t.trailer = dict
	return t, nil
}

// parseStreamSection reads a cross-reference stream object at offset.
func (rs *Resolver) parseStreamSection(ctx context.Context, data []byte, offset int64) (*table, error) {
	s := scanner.New(bytes.NewReader(data), scanner.Config{
		MaxStringLength: rs.cfg.Limits.MaxStringLength,
		MaxStreamLength: rs.cfg.Limits.MaxStreamLength,
	})
	if err := s.SeekTo(offset); err != nil {
		return nil, err
	}
	// "n g obj" header
	for i := 0; i < 2; i++ {
		tok, err := s.Next()
		if err != nil || tok.Type != scanner.TokenNumber {
			return nil, errors.New("xref stream: missing object header")
		}
	}
	tok, err := s.Next()
	if err != nil || tok.Type != scanner.TokenKeyword || tok.Str != "obj" {
		return nil, errors.New("xref stream: missing obj keyword")
	}

	obj, err := parseObject(s)
	if err != nil {
		return nil, fmt.Errorf("xref stream dict: %w", err)
	}
	dict, ok := obj.(*raw.DictObj)
	if !ok {
		return nil, errors.New("xref stream: header is not a dictionary")
	}
	if length, ok := raw.DictInt(dict, "Length"); ok {
		s.SetNextStreamLength(length)
	}
	tok, err = s.Next()
	if err != nil || tok.Type != scanner.TokenStream {
		return nil, errors.New("xref stream: stream data missing")
	}

	pipeline := filters.NewDefaultPipeline(filters.Limits{
		MaxDecompressedSize: rs.cfg.Limits.MaxDecompressedSize,
		MaxDecodeTime:       rs.cfg.Limits.MaxDecodeTime,
	})
	names, params := filters.ExtractFilters(dict)
	decoded, err := pipeline.Decode(ctx, tok.Bytes, names, params)
	if err != nil {
		return nil, fmt.Errorf("xref stream decode: %w", err)
	}

	return parseXRefStreamData(dict, decoded)
}

// parseXRefStreamData interprets decoded W-field rows.
func parseXRefStreamData(dict *raw.DictObj, data []byte) (*table, error) {
	wArr, ok := raw.DictArray(dict, "W")
	if !ok || wArr.Len() < 3 {
		return nil, errors.New("xref stream: missing W")
	}
	w := make([]int, 3)
	for i := 0; i < 3; i++ {
		o, _ := wArr.Get(i)
		n, ok := o.(raw.Number)
		if !ok {
			return nil, errors.New("xref stream: bad W entry")
		}
		w[i] = int(n.Int())
	}
	size, ok := raw.DictInt(dict, "Size")
	if !ok {
		return nil, errors.New("xref stream: missing Size")
	}

	// Index defaults to [0 Size].
	var ranges []int
	if idxArr, ok := raw.DictArray(dict, "Index"); ok {
		for i := 0; i < idxArr.Len(); i++ {
			o, _ := idxArr.Get(i)
			n, ok := o.(raw.Number)
			if !ok {
				return nil, errors.New("xref stream: bad Index entry")
			}
			ranges = append(ranges, int(n.Int()))
		}
	} else {
		ranges = []int{0, int(size)}
	}
	if len(ranges)%2 != 0 {
		return nil, errors.New("xref stream: odd Index length")
	}

	rowLen := w[0] + w[1] + w[2]
	if rowLen == 0 {
		return nil, errors.New("xref stream: zero-width rows")
	}

	t := &table{entries: make(map[int]Entry), trailer: dict}
	pos := 0
	readField := func(width int) int64 {
		var v int64
		for i := 0; i < width; i++ {
			v = v<<8 | int64(data[pos])
			pos++
		}
		return v
	}

	for ri := 0; ri < len(ranges); ri += 2 {
		start, count := ranges[ri], ranges[ri+1]
		for i := 0; i < count; i++ {
			if pos+rowLen > len(data) {
				return nil, errors.New("xref stream: truncated data")
			}
			ftype := int64(1)
			if w[0] > 0 {
				ftype = readField(w[0])
			}
			f2 := readField(w[1])
			f3 := readField(w[2])
			num := start + i
			if _, exists := t.entries[num]; exists {
				continue
			}
			switch ftype {
			case 0: // free
			case 1:
				t.entries[num] = Entry{Offset: f2, Gen: int(f3)}
			case 2:
				t.entries[num] = Entry{InStream: true, StreamNum: int(f2), StreamIdx: int(f3)}
			}
		}
	}
	return t, nil
}

type table struct {
	entries map[int]Entry
	trailer raw.Dictionary
}

func (t *table) Lookup(objNum int) (Entry, bool) {
	e, ok := t.entries[objNum]
	return e, ok
}

func (t *table) Objects() []int {
	out := make([]int, 0, len(t.entries))
	for k := range t.entries {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}

func (t *table) Trailer() raw.Dictionary { return t.trailer }

func readAll(r io.ReaderAt) []byte {
	var buf bytes.Buffer
	const chunk = int64(32 * 1024)
	for off := int64(0); ; off += chunk {
		tmp := make([]byte, chunk)
		n, err := r.ReadAt(tmp, off)
		if n > 0 {
			buf.Write(tmp[:n])
		}
		if err != nil || int64(n) < chunk {
			break
		}
	}
	return buf.Bytes()
}
