// Copyright 2025 Certen Protocol

package policy

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Bundle is the on-disk representation of a set of policies, loaded at
// gateway startup and registered into an Engine.
type Bundle struct {
	Policies []*Policy `yaml:"policies"`
}

// LoadBundleFile reads and parses a YAML policy bundle from path.
func LoadBundleFile(path string) (*Bundle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("policy: open bundle: %w", err)
	}
	defer f.Close()
	return LoadBundle(f)
}

// LoadBundle parses a YAML policy bundle from r.
func LoadBundle(r io.Reader) (*Bundle, error) {
	var b Bundle
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&b); err != nil {
		return nil, fmt.Errorf("policy: decode bundle: %w", err)
	}
	return &b, nil
}

// Register adds every policy in the bundle to engine.
func (b *Bundle) Register(engine *Engine) {
	for _, p := range b.Policies {
		engine.AddPolicy(p)
	}
}
