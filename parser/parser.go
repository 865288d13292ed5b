// Package parser turns PDF bytes into a raw.Document: it resolves the
// cross-reference data, loads every indirect object (including object stream
// members), and fills in header version and Info metadata.
package parser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/hyeonwoo/redactkit/ir/raw"
	"github.com/hyeonwoo/redactkit/recovery"
	"github.com/hyeonwoo/redactkit/security"
	"github.com/hyeonwoo/redactkit/xref"
)

// ErrEncrypted reports an encrypted input. Redacting an encrypted document
// would require the password and re-encryption on write; callers must decrypt
// first.
var ErrEncrypted = errors.New("document is encrypted")

// Config controls xref resolution and object loading.
type Config struct {
	Recovery recovery.Strategy
	Limits   security.Limits
	Cache    Cache
}

type DocumentParser struct {
	cfg Config
}

func NewDocumentParser(cfg Config) *DocumentParser {
	cfg.Limits = cfg.Limits.OrDefault()
	return &DocumentParser{cfg: cfg}
}

func (p *DocumentParser) Parse(ctx context.Context, r io.ReaderAt) (*raw.Document, error) {
	resolver := xref.NewResolver(xref.ResolverConfig{
		Limits:   p.cfg.Limits,
		Recovery: p.cfg.Recovery,
	})
	table, err := resolver.Resolve(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("resolve xref: %w", err)
	}

	trailer := table.Trailer()
	if trailer != nil {
		if _, ok := trailer.Get(raw.NameLiteral("Encrypt")); ok {
			return nil, ErrEncrypted
		}
	}

	loader, err := (&ObjectLoaderBuilder{}).
		WithReader(r).
		WithXRef(table).
		WithLimits(p.cfg.Limits).
		WithCache(p.cfg.Cache).
		WithRecovery(p.cfg.Recovery).
		Build()
	if err != nil {
		return nil, err
	}

	doc := &raw.Document{
		Objects: make(map[raw.ObjectRef]raw.Object),
		Trailer: trailer,
		Version: detectHeaderVersion(r),
	}

	for _, objNum := range table.Objects() {
		if objNum == 0 {
			continue // free list head
		}
		entry, found := table.Lookup(objNum)
		if !found {
			continue
		}
		gen := entry.Gen
		if entry.InStream {
			gen = 0
		}
		ref := raw.ObjectRef{Num: objNum, Gen: gen}
		obj, err := loader.Load(ctx, ref)
		if err != nil {
			if p.cfg.Recovery != nil {
				action := p.cfg.Recovery.OnError(nil, err, recovery.Location{ObjectNum: objNum, Component: "parser"})
				if action != recovery.ActionFail {
					continue
				}
			}
			return nil, fmt.Errorf("load object %d: %w", objNum, err)
		}
		doc.Objects[ref] = obj
	}

	if doc.Trailer != nil {
		populateMetadata(doc)
	}
	return doc, nil
}

func populateMetadata(doc *raw.Document) {
	infoRef, ok := raw.DictRef(doc.Trailer, "Info")
	if !ok {
		return
	}
	info, ok := doc.Objects[infoRef]
	if !ok {
		return
	}
	dict, ok := info.(*raw.DictObj)
	if !ok {
		return
	}
	md := raw.DocumentMetadata{}
	if v, ok := stringValue(dict, "Title"); ok {
		md.Title = v
	}
	if v, ok := stringValue(dict, "Author"); ok {
		md.Author = v
	}
	if v, ok := stringValue(dict, "Creator"); ok {
		md.Creator = v
	}
	if v, ok := stringValue(dict, "Producer"); ok {
		md.Producer = v
	}
	if v, ok := stringValue(dict, "Subject"); ok {
		md.Subject = v
	}
	if v, ok := stringValue(dict, "Keywords"); ok {
		md.Keywords = strings.Split(v, ",")
	}
	doc.Metadata = md
}

func stringValue(dict *raw.DictObj, key string) (string, bool) {
	obj, ok := dict.Get(raw.NameObj{Val: key})
	if !ok {
		return "", false
	}
	str, ok := obj.(raw.StringObj)
	if !ok {
		return "", false
	}
	return string(str.Value()), true
}

func detectHeaderVersion(r io.ReaderAt) string {
	buf := make([]byte, 64)
	n, err := r.ReadAt(buf, 0)
	if err != nil && !errors.Is(err, io.EOF) {
		return ""
	}
	line := string(buf[:n])
	for _, sep := range []string{"\r\n", "\n", "\r"} {
		if idx := strings.Index(line, sep); idx >= 0 {
			line = line[:idx]
			break
		}
	}
	if strings.HasPrefix(line, "%PDF-") && len(line) >= 8 {
		return strings.TrimSpace(line[5:])
	}
	return ""
}
