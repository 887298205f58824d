package aramex

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// xmlNode is a parsed XML element. The tree is read-only after parsing;
// lookups never modify it.
type xmlNode struct {
	name     xml.Name
	children []*xmlNode
	text     string
}

// parseXMLTree decodes an XML document into a node tree, keeping only
// element structure and character data. Namespace prefixes are resolved
// by the decoder; lookups match on local names.
func parseXMLTree(data []byte) (*xmlNode, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))

	root := &xmlNode{}
	stack := []*xmlNode{root}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parsing xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			node := &xmlNode{name: t.Name}
			parent := stack[len(stack)-1]
			parent.children = append(parent.children, node)
			stack = append(stack, node)
		case xml.EndElement:
			if len(stack) > 1 {
				stack = stack[:len(stack)-1]
			}
		case xml.CharData:
			stack[len(stack)-1].text += string(t)
		}
	}

	if len(root.children) == 0 {
		return nil, fmt.Errorf("parsing xml: empty document")
	}
	return root.children[0], nil
}

// Text returns the trimmed character data of the node.
func (n *xmlNode) Text() string {
	return strings.TrimSpace(n.text)
}

// populated reports whether the node carries character data or child
// elements.
func (n *xmlNode) populated() bool {
	return n.Text() != "" || len(n.children) > 0
}

// child returns the first direct child with the given local name.
func (n *xmlNode) child(local string) *xmlNode {
	for _, c := range n.children {
		if c.name.Local == local {
			return c
		}
	}
	return nil
}

// childText returns the trimmed text of a direct child, or "".
func (n *xmlNode) childText(local string) string {
	if c := n.child(local); c != nil {
		return c.Text()
	}
	return ""
}

// lookup resolves a tag path in two tiers. The first tier walks the
// exact path of local names from this node. If that fails, the second
// tier scans the whole subtree depth-first, in document order, for the
// trailing tag name and returns the first populated match. Returns nil
// when neither tier finds one. The traversal never mutates the tree.
func (n *xmlNode) lookup(path ...string) *xmlNode {
	if len(path) == 0 {
		return nil
	}

	if found := n.walkPath(path); found != nil {
		return found
	}
	return n.scan(path[len(path)-1])
}

func (n *xmlNode) walkPath(path []string) *xmlNode {
	cur := n
	for _, local := range path {
		cur = cur.child(local)
		if cur == nil {
			return nil
		}
	}
	return cur
}

func (n *xmlNode) scan(local string) *xmlNode {
	for _, c := range n.children {
		if c.name.Local == local && c.populated() {
			return c
		}
		if found := c.scan(local); found != nil {
			return found
		}
	}
	return nil
}

// lookupText returns the trimmed text at a lookup path, or "".
func (n *xmlNode) lookupText(path ...string) string {
	if found := n.lookup(path...); found != nil {
		return found.Text()
	}
	return ""
}

// collect returns every descendant with the given local name, in
// document order.
func (n *xmlNode) collect(local string) []*xmlNode {
	var out []*xmlNode
	for _, c := range n.children {
		if c.name.Local == local {
			out = append(out, c)
		}
		out = append(out, c.collect(local)...)
	}
	return out
}
