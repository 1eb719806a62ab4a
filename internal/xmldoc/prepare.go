// Package xmldoc turns raw file bytes into a navigable XML document and
// provides namespace-aware XPath evaluation over it.
//
// Files arriving from upstream systems are not always clean: some carry a
// byte-order mark, others a log preamble before the XML declaration. Prepare
// tolerates both by decoding any BOM and discarding everything before the
// first "<?xml" marker.
package xmldoc

import (
	"bytes"
	"fmt"

	"github.com/antchfx/xmlquery"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// declMarker is the byte sequence that starts an XML declaration.
var declMarker = []byte("<?xml")

// Prepare parses raw file bytes into a document tree.
//
// Steps:
//  1. Decode a leading UTF-8/UTF-16 BOM if present (the stream is treated as
//     UTF-8 otherwise).
//  2. Discard all bytes before the first "<?xml" occurrence. If the marker is
//     absent the stream passes through unmodified.
//  3. Parse the remainder.
//
// A stream that is not well-formed XML after trimming yields an error; there
// is no retry and no partial result.
func Prepare(raw []byte) (*xmlquery.Node, error) {
	decoded, err := decodeBOM(raw)
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	trimmed := trimToDeclaration(decoded)

	doc, err := xmlquery.Parse(bytes.NewReader(trimmed))
	if err != nil {
		return nil, fmt.Errorf("parse xml: %w", err)
	}
	if rootElement(doc) == nil {
		// The parser is lenient about element-free input (plain text,
		// declaration only). Treat that as not-XML.
		return nil, fmt.Errorf("parse xml: no root element")
	}
	return doc, nil
}

// rootElement returns the document's first element child, or nil.
func rootElement(doc *xmlquery.Node) *xmlquery.Node {
	for n := doc.FirstChild; n != nil; n = n.NextSibling {
		if n.Type == xmlquery.ElementNode {
			return n
		}
	}
	return nil
}

// decodeBOM converts the stream to plain UTF-8, honoring a leading BOM.
//
// BOMOverride switches to UTF-16 decoding when a UTF-16 BOM is found and
// strips a UTF-8 BOM; BOM-less input is passed through untouched.
func decodeBOM(raw []byte) ([]byte, error) {
	dec := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	out, _, err := transform.Bytes(dec, raw)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// trimToDeclaration drops any bytes before the first XML declaration marker.
// Streams without a declaration are returned as-is.
func trimToDeclaration(b []byte) []byte {
	if i := bytes.Index(b, declMarker); i > 0 {
		return b[i:]
	}
	return b
}
