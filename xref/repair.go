package xref

import (
	"bytes"
	"context"
	"errors"
	"io"

	"github.com/hyeonwoo/redactkit/ir/raw"
	"github.com/hyeonwoo/redactkit/scanner"
)

// repair reconstructs the table by scanning the whole file for "n g obj"
// headers and trailer dictionaries. Later definitions of the same object
// number win, matching incremental-update order.
func repair(ctx context.Context, data []byte) (Table, error) {
	s := scanner.New(bytes.NewReader(data), scanner.Config{})
	entries := make(map[int]Entry)
	var lastTrailer *raw.DictObj

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		tok, err := s.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			continue
		}

		switch {
		case tok.Type == scanner.TokenNumber && tok.IsInt:
			objNum := int(tok.Int)
			genTok, err := s.Next()
			if err != nil {
				if errors.Is(err, io.EOF) {
					break
				}
				continue
			}
			if genTok.Type != scanner.TokenNumber || !genTok.IsInt {
				continue
			}
			kwTok, err := s.Next()
			if err != nil {
				if errors.Is(err, io.EOF) {
					break
				}
				continue
			}
			if kwTok.Type == scanner.TokenKeyword && kwTok.Str == "obj" {
				entries[objNum] = Entry{Offset: tok.Pos, Gen: int(genTok.Int)}
				continue
			}
			// Re-read from the second number so overlapping headers like
			// "1 2 0 obj" are not missed.
			if err := s.SeekTo(genTok.Pos); err != nil {
				return nil, err
			}
		case tok.Type == scanner.TokenKeyword && tok.Str == "trailer":
			obj, err := parseObject(s)
			if err == nil {
				if dict, ok := obj.(*raw.DictObj); ok {
					lastTrailer = dict
				}
			}
		}
	}

	if len(entries) == 0 {
		return nil, errors.New("repair failed: no objects found")
	}
	if lastTrailer == nil {
		lastTrailer = raw.Dict()
		lastTrailer.Set(raw.NameObj{Val: "Size"}, raw.NumberInt(int64(len(entries))))
	}
	return &table{entries: entries, trailer: lastTrailer}, nil
}
