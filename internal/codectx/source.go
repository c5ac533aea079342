// Package codectx discovers the identifiers visible in the user's current
// code context and keeps them in a short-lived cache.
//
// A [Source] captures raw text: the file open in the editor, text recognised
// from the screen, or a fixed string. The [Cache] classifies the captured
// text with an [identifier.Classifier], keeps the most significant
// identifiers, and serves them until its time-to-live expires. A static
// known-identifier list ([LoadIdentifierFile]) can be layered in front of the
// captured identifiers. [Guard] wraps a source that may fail persistently so
// that it is not called again on every lookup.
package codectx

import (
	"context"
	"errors"
	"fmt"
	"os"
)

// ErrNoSource is returned by [Cache.Identifiers] when neither a capture
// source nor a static list is configured.
var ErrNoSource = errors.New("codectx: no context source configured")

// Source captures the text of the current code context. Implementations
// must be safe for concurrent use.
type Source interface {
	Capture(ctx context.Context) (string, error)
}

// SourceFunc adapts a function to [Source].
type SourceFunc func(ctx context.Context) (string, error)

// Capture calls f(ctx).
func (f SourceFunc) Capture(ctx context.Context) (string, error) { return f(ctx) }

// FileSource captures the content of a file on every call, e.g. the buffer
// an editor plugin mirrors to disk.
type FileSource struct {
	Path string
}

// Capture reads the file.
func (s FileSource) Capture(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	b, err := os.ReadFile(s.Path)
	if err != nil {
		return "", fmt.Errorf("codectx: read %q: %w", s.Path, err)
	}
	return string(b), nil
}

// StaticSource always captures the same text.
type StaticSource string

// Capture returns s.
func (s StaticSource) Capture(context.Context) (string, error) { return string(s), nil }
