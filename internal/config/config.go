// Package config describes memory layouts: the system regions of a Space
// and the pools built on top of it. Layouts are written in YAML.
//
// Example:
//
//	name: amiga
//	page_size: 4KiB
//	walls: false
//	regions:
//	  - name: chip
//	    size: 2MiB
//	    attributes: [public, chip, 24bitdma]
//	    priority: -10
//	  - name: fast
//	    size: 8MiB
//	    attributes: [public, fast]
//	pools:
//	  - name: small
//	    puddle_size: 16KiB
//	    threshold: 4KiB
//	    requirements: [public, sem_protected]
package config

import (
	"bytes"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/joshuapare/execmem/internal/layout"
	"github.com/joshuapare/execmem/mem"
)

// Layout is a complete memory layout.
type Layout struct {
	Name     string   `yaml:"name"`
	PageSize Size     `yaml:"page_size,omitempty"`
	Walls    bool     `yaml:"walls,omitempty"`
	Regions  []Region `yaml:"regions"`
	Pools    []Pool   `yaml:"pools,omitempty"`
}

// Region describes one system region.
type Region struct {
	Name       string   `yaml:"name"`
	Size       Size     `yaml:"size"`
	Attributes []string `yaml:"attributes,omitempty"`
	Priority   int8     `yaml:"priority,omitempty"`
}

// Pool describes one pool.
type Pool struct {
	Name         string   `yaml:"name"`
	PuddleSize   Size     `yaml:"puddle_size"`
	Threshold    Size     `yaml:"threshold,omitempty"`
	Requirements []string `yaml:"requirements,omitempty"`
}

// Load reads and validates the layout at path.
func Load(path string) (*Layout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read layout")
	}
	l, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "layout %s", path)
	}
	return l, nil
}

// Parse decodes and validates a YAML layout. Unknown fields are errors.
func Parse(data []byte) (*Layout, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var l Layout
	if err := dec.Decode(&l); err != nil {
		return nil, errors.Wrap(err, "decode layout")
	}
	if err := l.Validate(); err != nil {
		return nil, err
	}
	return &l, nil
}

// Marshal encodes l as YAML.
func (l *Layout) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(l); err != nil {
		return nil, errors.Wrap(err, "encode layout")
	}
	if err := enc.Close(); err != nil {
		return nil, errors.Wrap(err, "encode layout")
	}
	return buf.Bytes(), nil
}

// Validate checks names, sizes and flag names.
func (l *Layout) Validate() error {
	if len(l.Regions) == 0 {
		return ErrNoRegions
	}
	if ps := uint64(l.PageSize); ps != 0 && (!layout.IsPowerOfTwo(ps) || ps < layout.ChunkTotal) {
		return errors.Wrapf(ErrInvalid, "page size %s", l.PageSize)
	}

	seen := make(map[string]bool)
	for i, r := range l.Regions {
		if r.Name == "" {
			return errors.Wrapf(ErrInvalid, "region %d has no name", i)
		}
		if seen[r.Name] {
			return errors.Wrapf(ErrDuplicate, "region %q", r.Name)
		}
		seen[r.Name] = true
		if r.Size == 0 {
			return errors.Wrapf(ErrInvalid, "region %q has no size", r.Name)
		}
		if _, err := mem.ParseFlags(r.Attributes); err != nil {
			return errors.Wrapf(err, "region %q", r.Name)
		}
	}

	clear(seen)
	for i, p := range l.Pools {
		if p.Name == "" {
			return errors.Wrapf(ErrInvalid, "pool %d has no name", i)
		}
		if seen[p.Name] {
			return errors.Wrapf(ErrDuplicate, "pool %q", p.Name)
		}
		seen[p.Name] = true
		if p.PuddleSize <= layout.HeaderSize {
			return errors.Wrapf(ErrInvalid, "pool %q puddle size %s", p.Name, p.PuddleSize)
		}
		if p.Threshold > p.PuddleSize {
			return errors.Wrapf(ErrInvalid, "pool %q threshold %s exceeds puddle size %s",
				p.Name, p.Threshold, p.PuddleSize)
		}
		if _, err := mem.ParseFlags(p.Requirements); err != nil {
			return errors.Wrapf(err, "pool %q", p.Name)
		}
	}
	return nil
}

// Pool returns the pool description with the given name.
func (l *Layout) Pool(name string) (Pool, bool) {
	for _, p := range l.Pools {
		if p.Name == name {
			return p, true
		}
	}
	return Pool{}, false
}
