package sv

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
)

// ErrUnknownEncoding is returned when an encoding label cannot be resolved.
var ErrUnknownEncoding = errors.New("unknown encoding")

// LookupEncoding resolves an encoding label such as "UTF-8", "ISO-8859-1",
// "latin1" or "windows-1250". IANA names are tried first, then the WHATWG
// labels. An empty label means UTF-8.
//
// UTF-8 resolves to a decoder that drops a leading byte order mark, so a BOM
// never ends up inside the first field.
func LookupEncoding(label string) (encoding.Encoding, error) {
	l := strings.TrimSpace(label)
	if l == "" || strings.EqualFold(l, "UTF-8") || strings.EqualFold(l, "UTF8") {
		return unicode.UTF8BOM, nil
	}

	enc, err := ianaindex.IANA.Encoding(l)
	if err != nil || enc == nil {
		enc, err = htmlindex.Get(l)
		if err != nil || enc == nil {
			return nil, fmt.Errorf("%w: %q", ErrUnknownEncoding, label)
		}
	}
	if isUTF8(enc) {
		return unicode.UTF8BOM, nil
	}
	return enc, nil
}

func isUTF8(enc encoding.Encoding) bool {
	if name, err := ianaindex.IANA.Name(enc); err == nil && strings.EqualFold(name, "UTF-8") {
		return true
	}
	name, err := htmlindex.Name(enc)
	return err == nil && name == "utf-8"
}
