package isdoc

import (
	"encoding/xml"
	"fmt"
	"io"

	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

// CharsetReader decodes documents declared in a non UTF-8 encoding.
// Czech tools commonly emit windows-1250 or ISO-8859-2.
func CharsetReader(label string, input io.Reader) (io.Reader, error) {
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, fmt.Errorf("unsupported document encoding %q", label)
	}
	return transform.NewReader(input, enc.NewDecoder()), nil
}

// NewDecoder returns a strict XML decoder that understands legacy encodings
func NewDecoder(r io.Reader) *xml.Decoder {
	d := xml.NewDecoder(r)
	d.CharsetReader = CharsetReader
	return d
}
