package vdom

import (
	"fmt"
	"strings"
)

// MutationSink receives structural operations from the differ.
//
// Operations arrive in an order that is valid to apply directly: a node is
// created and populated before it is attached, and a node's own attribute or
// text changes precede any change to its descendants.
type MutationSink interface {
	CreateElement(id ElementID, tag string)
	CreateText(id ElementID, text string)
	CreatePlaceholder(id ElementID)
	SetAttribute(id ElementID, name, value string)
	RemoveAttribute(id ElementID, name string)
	SetText(id ElementID, text string)
	AppendChild(parent, child ElementID)
	// ReplaceNode swaps old for new in old's position in one step.
	ReplaceNode(old, new ElementID)
	Remove(id ElementID)
}

// Committer is implemented by sinks that want a call after every flush.
type Committer interface {
	Commit() error
}

// Op names a mutation kind.
type Op string

const (
	OpCreateElement     Op = "create_element"
	OpCreateText        Op = "create_text"
	OpCreatePlaceholder Op = "create_placeholder"
	OpSetAttribute      Op = "set_attribute"
	OpRemoveAttribute   Op = "remove_attribute"
	OpSetText           Op = "set_text"
	OpAppendChild       Op = "append_child"
	OpReplaceNode       Op = "replace_node"
	OpRemove            Op = "remove"
)

// IsOp reports whether s names a known op.
func IsOp(s string) bool {
	switch Op(s) {
	case OpCreateElement, OpCreateText, OpCreatePlaceholder, OpSetAttribute,
		OpRemoveAttribute, OpSetText, OpAppendChild, OpReplaceNode, OpRemove:
		return true
	}
	return false
}

// IsStructural reports whether the op changes tree shape rather than content.
func (o Op) IsStructural() bool {
	switch o {
	case OpSetAttribute, OpRemoveAttribute, OpSetText:
		return false
	default:
		return true
	}
}

// Mutation is one recorded operation.
type Mutation struct {
	Op    Op        `json:"op"`
	ID    ElementID `json:"id"`
	Other ElementID `json:"other,omitempty"` // child for append_child, replacement for replace_node
	Tag   string    `json:"tag,omitempty"`
	Name  string    `json:"name,omitempty"`
	Value string    `json:"value,omitempty"` // attribute value or text
}

// String renders a mutation on one line.
func (m Mutation) String() string {
	switch m.Op {
	case OpCreateElement:
		return fmt.Sprintf("%s #%d <%s>", m.Op, m.ID, m.Tag)
	case OpCreateText, OpSetText:
		return fmt.Sprintf("%s #%d %q", m.Op, m.ID, m.Value)
	case OpSetAttribute:
		return fmt.Sprintf("%s #%d %s=%q", m.Op, m.ID, m.Name, m.Value)
	case OpRemoveAttribute:
		return fmt.Sprintf("%s #%d %s", m.Op, m.ID, m.Name)
	case OpAppendChild:
		return fmt.Sprintf("%s #%d <- #%d", m.Op, m.ID, m.Other)
	case OpReplaceNode:
		return fmt.Sprintf("%s #%d -> #%d", m.Op, m.ID, m.Other)
	default:
		return fmt.Sprintf("%s #%d", m.Op, m.ID)
	}
}

// Mutations buffers operations in emission order. It implements MutationSink.
type Mutations struct {
	Edits []Mutation
}

var _ MutationSink = (*Mutations)(nil)

func (m *Mutations) push(mu Mutation) { m.Edits = append(m.Edits, mu) }

func (m *Mutations) CreateElement(id ElementID, tag string) {
	m.push(Mutation{Op: OpCreateElement, ID: id, Tag: tag})
}

func (m *Mutations) CreateText(id ElementID, text string) {
	m.push(Mutation{Op: OpCreateText, ID: id, Value: text})
}

func (m *Mutations) CreatePlaceholder(id ElementID) {
	m.push(Mutation{Op: OpCreatePlaceholder, ID: id})
}

func (m *Mutations) SetAttribute(id ElementID, name, value string) {
	m.push(Mutation{Op: OpSetAttribute, ID: id, Name: name, Value: value})
}

func (m *Mutations) RemoveAttribute(id ElementID, name string) {
	m.push(Mutation{Op: OpRemoveAttribute, ID: id, Name: name})
}

func (m *Mutations) SetText(id ElementID, text string) {
	m.push(Mutation{Op: OpSetText, ID: id, Value: text})
}

func (m *Mutations) AppendChild(parent, child ElementID) {
	m.push(Mutation{Op: OpAppendChild, ID: parent, Other: child})
}

func (m *Mutations) ReplaceNode(old, new ElementID) {
	m.push(Mutation{Op: OpReplaceNode, ID: old, Other: new})
}

func (m *Mutations) Remove(id ElementID) {
	m.push(Mutation{Op: OpRemove, ID: id})
}

// Len returns the number of buffered operations.
func (m *Mutations) Len() int { return len(m.Edits) }

// Take returns the buffered operations and empties the buffer.
func (m *Mutations) Take() []Mutation {
	out := m.Edits
	m.Edits = nil
	return out
}

// Replay applies the buffered operations, in order, to another sink.
func (m *Mutations) Replay(to MutationSink) {
	for _, e := range m.Edits {
		e.Apply(to)
	}
}

// Apply sends the mutation to a sink.
func (mu Mutation) Apply(to MutationSink) {
	switch mu.Op {
	case OpCreateElement:
		to.CreateElement(mu.ID, mu.Tag)
	case OpCreateText:
		to.CreateText(mu.ID, mu.Value)
	case OpCreatePlaceholder:
		to.CreatePlaceholder(mu.ID)
	case OpSetAttribute:
		to.SetAttribute(mu.ID, mu.Name, mu.Value)
	case OpRemoveAttribute:
		to.RemoveAttribute(mu.ID, mu.Name)
	case OpSetText:
		to.SetText(mu.ID, mu.Value)
	case OpAppendChild:
		to.AppendChild(mu.ID, mu.Other)
	case OpReplaceNode:
		to.ReplaceNode(mu.ID, mu.Other)
	case OpRemove:
		to.Remove(mu.ID)
	}
}

// String renders the buffer one mutation per line.
func (m *Mutations) String() string {
	var b strings.Builder
	for _, e := range m.Edits {
		b.WriteString(e.String())
		b.WriteByte('\n')
	}
	return b.String()
}

// countingSink forwards to another sink and counts operations by kind.
type countingSink struct {
	to MutationSink
}

func (c countingSink) CreateElement(id ElementID, tag string) {
	observeMutation(OpCreateElement)
	c.to.CreateElement(id, tag)
}

func (c countingSink) CreateText(id ElementID, text string) {
	observeMutation(OpCreateText)
	c.to.CreateText(id, text)
}

func (c countingSink) CreatePlaceholder(id ElementID) {
	observeMutation(OpCreatePlaceholder)
	c.to.CreatePlaceholder(id)
}

func (c countingSink) SetAttribute(id ElementID, name, value string) {
	observeMutation(OpSetAttribute)
	c.to.SetAttribute(id, name, value)
}

func (c countingSink) RemoveAttribute(id ElementID, name string) {
	observeMutation(OpRemoveAttribute)
	c.to.RemoveAttribute(id, name)
}

func (c countingSink) SetText(id ElementID, text string) {
	observeMutation(OpSetText)
	c.to.SetText(id, text)
}

func (c countingSink) AppendChild(parent, child ElementID) {
	observeMutation(OpAppendChild)
	c.to.AppendChild(parent, child)
}

func (c countingSink) ReplaceNode(old, new ElementID) {
	observeMutation(OpReplaceNode)
	c.to.ReplaceNode(old, new)
}

func (c countingSink) Remove(id ElementID) {
	observeMutation(OpRemove)
	c.to.Remove(id)
}
