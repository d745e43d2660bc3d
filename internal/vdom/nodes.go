package vdom

import "fmt"

// NodeKind distinguishes the node variants of a rendered tree.
type NodeKind int

const (
	// KindElement is a host element with a tag, attributes and children.
	KindElement NodeKind = iota + 1
	// KindText is a host text node.
	KindText
	// KindPlaceholder is an empty host node standing in for nothing.
	KindPlaceholder
	// KindComponent is a placeholder for a nested component instance.
	KindComponent
)

// String implements fmt.Stringer.
func (k NodeKind) String() string {
	switch k {
	case KindElement:
		return "element"
	case KindText:
		return "text"
	case KindPlaceholder:
		return "placeholder"
	case KindComponent:
		return "component"
	default:
		return fmt.Sprintf("NodeKind(%d)", int(k))
	}
}

// Attribute is one name/value pair on an element.
type Attribute struct {
	Name  string `json:"name" yaml:"name"`
	Value string `json:"value" yaml:"value"`
}

// VComponent references a nested component instance.
// Identity is Comp's token; Props never participate in identity.
type VComponent struct {
	Comp  *Component
	Props any
}

// VNode is one node of a rendered tree.
//
// Nodes are immutable once returned from a render function. The runtime never
// writes into them, so a render function may return the same subtree twice.
type VNode struct {
	Kind      NodeKind
	Tag       string
	Attrs     []Attribute
	Text      string
	Children  []*VNode
	Component *VComponent
}

// El builds an element node.
func El(tag string, attrs []Attribute, children ...*VNode) *VNode {
	return &VNode{Kind: KindElement, Tag: tag, Attrs: attrs, Children: children}
}

// Attrs builds an attribute list from name/value pairs.
// A trailing name without a value is ignored.
func Attrs(pairs ...string) []Attribute {
	out := make([]Attribute, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, Attribute{Name: pairs[i], Value: pairs[i+1]})
	}
	return out
}

// Text builds a text node.
func Text(s string) *VNode {
	return &VNode{Kind: KindText, Text: s}
}

// Textf builds a text node from a format string.
func Textf(format string, args ...any) *VNode {
	return Text(fmt.Sprintf(format, args...))
}

// Placeholder builds an empty node.
func Placeholder() *VNode {
	return &VNode{Kind: KindPlaceholder}
}

// Comp builds a component placeholder.
func Comp(c *Component, props any) *VNode {
	return &VNode{Kind: KindComponent, Component: &VComponent{Comp: c, Props: props}}
}

// Clone returns a deep copy of the tree. Component props are copied by value.
func (n *VNode) Clone() *VNode {
	if n == nil {
		return nil
	}
	out := &VNode{Kind: n.Kind, Tag: n.Tag, Text: n.Text}
	if n.Attrs != nil {
		out.Attrs = append([]Attribute(nil), n.Attrs...)
	}
	if n.Component != nil {
		c := *n.Component
		out.Component = &c
	}
	if n.Children != nil {
		out.Children = make([]*VNode, len(n.Children))
		for i, c := range n.Children {
			out.Children[i] = c.Clone()
		}
	}
	return out
}

// size returns the number of nodes in the tree, not descending into components.
func (n *VNode) size() int {
	total := 1
	for _, c := range n.Children {
		total += c.size()
	}
	return total
}

// RenderReturn is the result of running a render function.
//
// An aborted render carries a placeholder node so both variants can be
// diffed the same way.
type RenderReturn struct {
	Node    *VNode
	Aborted bool
}

// Ready wraps a rendered tree.
func Ready(n *VNode) RenderReturn {
	return RenderReturn{Node: n}
}

// Aborted is the result of a render that produced nothing.
func Aborted() RenderReturn {
	return RenderReturn{Node: Placeholder(), Aborted: true}
}

// Mounted is the concrete identity a tree node was mounted as.
// Element is set for host nodes, Scope for component placeholders.
type Mounted struct {
	Element ElementID
	Scope   ScopeID
}

// Mount maps each node of one rendered tree, in pre-order, to its mounted identity.
type Mount struct {
	Nodes []Mounted
}

func newMount(root *VNode) *Mount {
	return &Mount{Nodes: make([]Mounted, root.size())}
}
