package mem

import (
	"bytes"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"

	"github.com/joshuapare/execmem/internal/layout"
)

// SetName renames the region. Regions built by NewRegion also carry the
// name in their header, encoded as ISO-8859-1 and truncated to fit.
func (r *Region) SetName(name string) {
	r.node.Name = name
	if r.hdr == nil {
		return
	}
	field := r.hdr[layout.HeaderNameOffset:layout.HeaderSize]
	clear(field)
	enc, err := encoding.ReplaceUnsupported(charmap.ISO8859_1.NewEncoder()).Bytes([]byte(name))
	if err != nil {
		return
	}
	copy(field[:len(field)-1], enc)
}

// HeaderName decodes the name stored in the region header at a.
func (s *Space) HeaderName(a Addr) (string, bool) {
	if !s.ValidHeader(a) {
		return "", false
	}
	hdr, _ := s.Bytes(a, layout.HeaderSize)
	field := hdr[layout.HeaderNameOffset:]
	if i := bytes.IndexByte(field, 0); i >= 0 {
		field = field[:i]
	}
	name, err := charmap.ISO8859_1.NewDecoder().Bytes(field)
	if err != nil {
		return "", false
	}
	return string(name), true
}
