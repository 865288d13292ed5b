package redactkit

import (
	"errors"

	"github.com/hyeonwoo/redactkit/redact"
)

var (
	// ErrDocumentLoad marks a document that could not be parsed at all.
	ErrDocumentLoad = errors.New("document load failed")

	// ErrPageRender is returned by flatten masking when a page cannot be
	// rasterized. The operation aborts rather than ship a partial result.
	ErrPageRender = redact.ErrPageRender

	// ErrNoRegions is returned by MaskRegions when no usable selection was
	// given.
	ErrNoRegions = errors.New("no regions to mask")
)
