package common

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// GetAttribute gets the value of an attribute from a node
func GetAttribute(node *html.Node, attrKey string) string {
	if node == nil || node.Type != html.ElementNode {
		return ""
	}
	for _, attr := range node.Attr {
		if attr.Key == attrKey {
			return attr.Val
		}
	}
	return ""
}

// HasAttribute checks if a node has a specific attribute
func HasAttribute(node *html.Node, attrKey string) bool {
	if node == nil || node.Type != html.ElementNode {
		return false
	}
	for _, attr := range node.Attr {
		if attr.Key == attrKey {
			return true
		}
	}
	return false
}

// HasClass reports whether the node's class list contains class.
func HasClass(node *html.Node, class string) bool {
	for _, c := range strings.Fields(GetAttribute(node, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

// IsHeading reports whether the node is an h1-h6 element.
func IsHeading(node *html.Node) bool {
	if node == nil || node.Type != html.ElementNode {
		return false
	}
	switch node.DataAtom {
	case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
		return true
	}
	return false
}

// IsHidden approximates computed visibility from markup alone: the node or
// one of its ancestors is non-rendered, carries the hidden attribute, is
// aria-hidden, or has an inline style hiding it.
func IsHidden(node *html.Node) bool {
	for n := node; n != nil; n = n.Parent {
		if n.Type != html.ElementNode {
			continue
		}
		switch n.DataAtom {
		case atom.Script, atom.Style, atom.Noscript, atom.Template, atom.Head:
			return true
		}
		if HasAttribute(n, "hidden") || GetAttribute(n, "aria-hidden") == "true" {
			return true
		}
		if hiddenByStyle(GetAttribute(n, "style")) {
			return true
		}
	}
	return false
}

func hiddenByStyle(style string) bool {
	if style == "" {
		return false
	}
	compact := strings.ToLower(strings.Join(strings.Fields(style), ""))
	for _, decl := range strings.Split(compact, ";") {
		switch decl {
		case "display:none", "visibility:hidden", "opacity:0":
			return true
		}
	}
	return false
}
