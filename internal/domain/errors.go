package domain

import "errors"

// ErrConflict signals that a document with the same identity has already been
// ingested; at-most-once ingestion per source id is a hard invariant.
var ErrConflict = errors.New("document already exists")

// ErrNotFound signals that the requested document is not stored.
var ErrNotFound = errors.New("document not found")
