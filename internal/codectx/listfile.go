package codectx

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/codevox/internal/identifier"
)

// IdentifierFile is the structure of a known-identifier list.
//
// Example:
//
//	identifiers:
//	  - clearPasteboard
//	  - MAX_RETRY_COUNT
//	  - os.path
type IdentifierFile struct {
	Identifiers []string `yaml:"identifiers"`
}

// LoadIdentifierFile reads and parses a known-identifier list from disk.
// Blank entries and later duplicates of the same normalized key are dropped.
func LoadIdentifierFile(path string) ([]identifier.Identifier, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("codectx: open identifier file %q: %w", path, err)
	}
	defer f.Close()

	ids, err := LoadIdentifiersFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("codectx: parse identifier file %q: %w", path, err)
	}
	return ids, nil
}

// LoadIdentifiersFromReader parses a known-identifier list from an
// [io.Reader]. An empty document yields an empty list.
func LoadIdentifiersFromReader(r io.Reader) ([]identifier.Identifier, error) {
	var lf IdentifierFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&lf); err != nil && err != io.EOF {
		return nil, fmt.Errorf("codectx: decode identifier yaml: %w", err)
	}
	return identifier.FromStrings(lf.Identifiers), nil
}
