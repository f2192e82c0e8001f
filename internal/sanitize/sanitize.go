// Package sanitize rewrites a subset of HTML for platform publishing.
package sanitize

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const (
	imagePlaceholder = "<div>（此处应有图片，请前往原文链接查看）</div>"
	codePlaceholder  = "<div>（此处应有代码块，请前往原文链接查看）</div>"
)

// Sanitize parses fragment as HTML in a BODY context and rewrites it:
//   - <img> elements are replaced with a placeholder <div>.
//   - <pre> elements are replaced with a placeholder <div>.
//   - <a> elements keep their attributes except rel.
//   - every other element is descended into and left otherwise untouched.
//
// The walk is depth-first and mutates the parsed tree in place; the
// replacement nodes are leaves and are not themselves re-descended into.
func Sanitize(fragment string) (string, error) {
	nodes, err := html.ParseFragment(strings.NewReader(fragment), &html.Node{
		Type:     html.ElementNode,
		Data:     "body",
		DataAtom: atom.Body,
	})
	if err != nil {
		return "", fmt.Errorf("sanitize: parse HTML: %w", err)
	}

	for _, n := range nodes {
		walk(n)
	}

	var sb strings.Builder
	for _, n := range nodes {
		if err := html.Render(&sb, n); err != nil {
			return "", fmt.Errorf("sanitize: render HTML: %w", err)
		}
	}
	return sb.String(), nil
}

// walk mutates n and its descendants in place, replacing <img>/<pre>
// elements with placeholders and stripping rel from <a> elements.
func walk(n *html.Node) {
	if n.Type != html.ElementNode {
		return
	}

	switch n.DataAtom {
	case atom.Img:
		replaceWithPlaceholder(n, imagePlaceholder)
		return
	case atom.Pre:
		replaceWithPlaceholder(n, codePlaceholder)
		return
	case atom.A:
		stripAttr(n, "rel")
	}

	for child := n.FirstChild; child != nil; child = child.NextSibling {
		walk(child)
	}
}

// replaceWithPlaceholder turns n into a <div> whose sole child is a text
// node containing text; n's original children and attributes are dropped.
func replaceWithPlaceholder(n *html.Node, text string) {
	placeholder, err := html.ParseFragment(strings.NewReader(text), &html.Node{
		Type:     html.ElementNode,
		Data:     "body",
		DataAtom: atom.Body,
	})
	if err != nil || len(placeholder) == 0 {
		// The placeholder strings are fixed and always parse; this branch
		// is unreachable in practice.
		n.Data = "div"
		n.DataAtom = atom.Div
		n.Attr = nil
		n.FirstChild, n.LastChild = nil, nil
		return
	}

	src := placeholder[0]
	n.Data = src.Data
	n.DataAtom = src.DataAtom
	n.Attr = src.Attr
	n.FirstChild, n.LastChild = nil, nil
	for child := src.FirstChild; child != nil; {
		next := child.NextSibling
		child.Parent = nil
		child.PrevSibling, child.NextSibling = nil, nil
		appendChild(n, child)
		child = next
	}
}

func appendChild(parent, child *html.Node) {
	child.Parent = parent
	if parent.LastChild != nil {
		parent.LastChild.NextSibling = child
		child.PrevSibling = parent.LastChild
	} else {
		parent.FirstChild = child
	}
	parent.LastChild = child
}

func stripAttr(n *html.Node, name string) {
	kept := n.Attr[:0]
	for _, a := range n.Attr {
		if a.Key == name {
			continue
		}
		kept = append(kept, a)
	}
	n.Attr = kept
}
