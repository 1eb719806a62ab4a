package xmldoc

import (
	"fmt"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"
)

// Compile compiles an XPath expression with the given prefix -> URI namespace
// map. Prefixes used in the expression must be declared in ns; the URIs in
// the document itself are matched by URI, not by the document's own prefixes.
func Compile(expr string, ns map[string]string) (*xpath.Expr, error) {
	e, err := xpath.CompileWithNS(expr, ns)
	if err != nil {
		return nil, fmt.Errorf("compile xpath %q: %w", expr, err)
	}
	return e, nil
}

// FindAll returns every node selected by the compiled expression, in document
// order. A selection of zero nodes is a normal outcome, not an error.
func FindAll(doc *xmlquery.Node, e *xpath.Expr) []*xmlquery.Node {
	return xmlquery.QuerySelectorAll(doc, e)
}

// FindOne returns the first node selected by the compiled expression, or nil.
func FindOne(doc *xmlquery.Node, e *xpath.Expr) *xmlquery.Node {
	return xmlquery.QuerySelector(doc, e)
}

// OwnText returns the trimmed text held directly by n (its immediate text and
// CDATA children), excluding text of nested elements.
//
// This is the per-element value used for flattening: a container element whose
// only content is nested elements and whitespace yields "".
func OwnText(n *xmlquery.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == xmlquery.TextNode || c.Type == xmlquery.CharDataNode {
			b.WriteString(c.Data)
		}
	}
	return strings.TrimSpace(b.String())
}

// WalkElements visits n and every element in its subtree in preorder
// (document) order, calling fn for each.
func WalkElements(n *xmlquery.Node, fn func(*xmlquery.Node)) {
	if n == nil {
		return
	}
	if n.Type == xmlquery.ElementNode {
		fn(n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		WalkElements(c, fn)
	}
}
