// Package service implements the document workflows: upload, list, delete,
// and masking. It owns no redaction logic; a Redactor is injected so the
// facade, the daemon, and tests can plug in what they need.
package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hyeonwoo/redactkit/observability"
	"github.com/hyeonwoo/redactkit/redact"
	"github.com/hyeonwoo/redactkit/store"
)

// MaskedPrefix marks redacted outputs in blob keys and document names.
const MaskedPrefix = "masked_"

// Redactor produces a masked document. A nil regions slice requests
// automatic detection; a non-nil slice masks exactly those regions.
type Redactor interface {
	Mask(ctx context.Context, document []byte, regions []redact.Region) (redact.RedactionResult, error)
}

// RedactorFunc adapts a function to the Redactor interface.
type RedactorFunc func(ctx context.Context, document []byte, regions []redact.Region) (redact.RedactionResult, error)

func (f RedactorFunc) Mask(ctx context.Context, document []byte, regions []redact.Region) (redact.RedactionResult, error) {
	return f(ctx, document, regions)
}

type Config struct {
	Meta     store.MetadataStore
	Blobs    store.BlobStore
	Redactor Redactor
	Logger   observability.Logger

	// NewID overrides document id generation; tests pin it.
	NewID func() string
	Now   func() time.Time
}

// Documents coordinates the stores. Independent documents proceed
// concurrently; work on one document is serialized by a per-id lock.
type Documents struct {
	cfg Config

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewDocuments(cfg Config) (*Documents, error) {
	if cfg.Meta == nil || cfg.Blobs == nil {
		return nil, errors.New("service: metadata and blob stores are required")
	}
	cfg.Logger = observability.OrNop(cfg.Logger)
	if cfg.NewID == nil {
		cfg.NewID = randomID
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Documents{cfg: cfg, locks: make(map[string]*sync.Mutex)}, nil
}

func randomID() string {
	var b [8]byte
	rand.Read(b[:])
	return hex.EncodeToString(b[:])
}

func (d *Documents) lock(id string) *sync.Mutex {
	d.mu.Lock()
	defer d.mu.Unlock()
	l, ok := d.locks[id]
	if !ok {
		l = &sync.Mutex{}
		d.locks[id] = l
	}
	return l
}

func blobKey(doc store.Document) string {
	return doc.ID + "/" + doc.Name
}

// Upload stores the original document and its metadata.
func (d *Documents) Upload(ctx context.Context, owner, name string, data []byte) (store.Document, error) {
	doc := store.Document{
		ID:        d.cfg.NewID(),
		Owner:     owner,
		Name:      name,
		Size:      int64(len(data)),
		CreatedAt: d.cfg.Now(),
	}
	if err := d.cfg.Blobs.Upload(ctx, blobKey(doc), data); err != nil {
		return store.Document{}, fmt.Errorf("upload blob: %w", err)
	}
	if err := d.cfg.Meta.Create(ctx, doc); err != nil {
		// Best effort cleanup so a metadata failure does not leak the blob.
		if rmErr := d.cfg.Blobs.Remove(ctx, blobKey(doc)); rmErr != nil {
			d.cfg.Logger.Warn("orphan blob left behind",
				observability.String("key", blobKey(doc)), observability.Error("err", rmErr))
		}
		return store.Document{}, fmt.Errorf("record document: %w", err)
	}
	d.cfg.Logger.Info("document uploaded",
		observability.String("id", doc.ID), observability.String("owner", owner))
	return doc, nil
}

// List returns the owner's documents.
func (d *Documents) List(ctx context.Context, owner string) ([]store.Document, error) {
	return d.cfg.Meta.ListByOwner(ctx, owner)
}

// Delete removes the blob and the record.
func (d *Documents) Delete(ctx context.Context, id string) error {
	l := d.lock(id)
	l.Lock()
	defer l.Unlock()

	doc, err := d.cfg.Meta.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := d.cfg.Blobs.Remove(ctx, blobKey(doc)); err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("remove blob: %w", err)
	}
	return d.cfg.Meta.Delete(ctx, id)
}

// MaskDocument downloads the original, redacts it, and stores the result as a
// new document named with the masked_ prefix. A nil regions slice runs
// automatic detection.
func (d *Documents) MaskDocument(ctx context.Context, id string, regions []redact.Region) (store.Document, error) {
	if d.cfg.Redactor == nil {
		return store.Document{}, errors.New("service: no redactor configured")
	}
	l := d.lock(id)
	l.Lock()
	defer l.Unlock()

	doc, err := d.cfg.Meta.Get(ctx, id)
	if err != nil {
		return store.Document{}, err
	}
	data, err := d.cfg.Blobs.Download(ctx, blobKey(doc))
	if err != nil {
		return store.Document{}, fmt.Errorf("download original: %w", err)
	}

	res, err := d.cfg.Redactor.Mask(ctx, data, regions)
	if err != nil {
		return store.Document{}, fmt.Errorf("redact: %w", err)
	}

	masked := store.Document{
		ID:        d.cfg.NewID(),
		Owner:     doc.Owner,
		Name:      MaskedPrefix + doc.Name,
		Size:      int64(len(res.Output)),
		Masked:    true,
		CreatedAt: d.cfg.Now(),
	}
	if err := d.cfg.Blobs.Upload(ctx, blobKey(masked), res.Output); err != nil {
		return store.Document{}, fmt.Errorf("upload masked: %w", err)
	}
	if err := d.cfg.Meta.Create(ctx, masked); err != nil {
		return store.Document{}, fmt.Errorf("record masked: %w", err)
	}
	d.cfg.Logger.Info("document masked",
		observability.String("id", doc.ID),
		observability.String("masked_id", masked.ID),
		observability.Int("regions", res.MaskedCount))
	return masked, nil
}

// Download returns a document's bytes.
func (d *Documents) Download(ctx context.Context, id string) ([]byte, error) {
	doc, err := d.cfg.Meta.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return d.cfg.Blobs.Download(ctx, blobKey(doc))
}
