// Package codec converts file contents between byte encodings and strings.
package codec

import (
	"strings"

	"go.trai.ch/sift/internal/core/domain"
	"go.trai.ch/sift/internal/core/ports"
	"go.trai.ch/zerr"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
)

var _ ports.TextCodec = (*Codec)(nil)

// Codec implements ports.TextCodec for any encoding known to the WHATWG index.
type Codec struct {
	name string
	enc  encoding.Encoding
}

// New looks up the encoding called name. An empty name selects domain.DefaultEncoding.
func New(name string) (*Codec, error) {
	if name == "" {
		name = domain.DefaultEncoding
	}

	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(domain.ErrUnknownEncoding, err.Error()), "encoding", name)
	}

	canonical, err := htmlindex.Name(enc)
	if err != nil {
		canonical = strings.ToLower(name)
	}

	return &Codec{name: canonical, enc: enc}, nil
}

// Name returns the canonical encoding name.
func (c *Codec) Name() string {
	return c.name
}

// Decode converts b to a string. Invalid sequences become U+FFFD.
func (c *Codec) Decode(b []byte) (string, error) {
	out, err := c.enc.NewDecoder().Bytes(b)
	if err != nil {
		return "", zerr.With(zerr.Wrap(err, "failed to decode contents"), "encoding", c.name)
	}
	return string(out), nil
}

// Encode converts s to bytes. Characters the encoding cannot represent are an error.
func (c *Codec) Encode(s string) ([]byte, error) {
	out, err := c.enc.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to encode contents"), "encoding", c.name)
	}
	return out, nil
}
