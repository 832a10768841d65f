package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Reader loads a Configuration from disk, grounded on
// PAL/configuration/client.reader's read-then-validate shape.
type Reader struct {
	resolver Resolver
}

func NewReader(resolver Resolver) *Reader {
	return &Reader{resolver: resolver}
}

func (r *Reader) Read() (*Configuration, error) {
	path, err := r.resolver.Resolve()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Configuration
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("malformed client configuration (%s): %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid client configuration (%s): %w", path, err)
	}
	return &cfg, nil
}
