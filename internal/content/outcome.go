package content

import (
	"fmt"
)

// Status is the terminal classification of one exported node.
type Status int

const (
	// StatusPending is the zero value; it never appears in a finished outcome.
	StatusPending Status = iota
	// StatusBulk means the node was written as a single document.
	StatusBulk
	// StatusRecursed means bulk export failed and every child was exported individually.
	StatusRecursed
	// StatusEmpty means the bulk export succeeded with no children; nothing was written.
	StatusEmpty
	// StatusFailed means the node, or one of its descendants, could not be exported.
	StatusFailed
)

var statusNames = map[Status]string{
	StatusPending:  "pending",
	StatusBulk:     "success-bulk",
	StatusRecursed: "success-recursed",
	StatusEmpty:    "skipped-empty",
	StatusFailed:   "failed",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(b []byte) error {
	for k, v := range statusNames {
		if v == string(b) {
			*s = k
			return nil
		}
	}
	return fmt.Errorf("content: unknown status %q", b)
}

// Outcome is the result of exporting one node. Folders that were decomposed
// carry the outcomes of the children that were visited.
type Outcome struct {
	NodeID   string     `json:"id"`
	Name     string     `json:"name"`
	Kind     Kind       `json:"kind"`
	Path     string     `json:"path"`
	Status   Status     `json:"status"`
	Bytes    int64      `json:"bytes,omitempty"`
	Reason   string     `json:"error,omitempty"`
	Cause    *NodeRef   `json:"cause,omitempty"`
	Children []*Outcome `json:"children,omitempty"`

	Err error `json:"-"`

	origin bool
}

// NewOutcome returns a pending outcome for n exported to p.
func NewOutcome(n Node, p string) *Outcome {
	return &Outcome{
		NodeID: n.ID,
		Name:   n.Name,
		Kind:   n.Kind,
		Path:   p,
	}
}

// Ref returns the node the outcome belongs to.
func (o *Outcome) Ref() NodeRef {
	return NodeRef{ID: o.NodeID, Name: o.Name}
}

// Failed reports whether the outcome is StatusFailed.
func (o *Outcome) Failed() bool {
	return o.Status == StatusFailed
}

// Fail marks the outcome as failed by err, with the node itself as cause.
func (o *Outcome) Fail(err error) {
	o.Status = StatusFailed
	o.Err = err
	o.origin = true
	if err != nil {
		o.Reason = err.Error()
	}
	ref := o.Ref()
	o.Cause = &ref
}

// Originated reports whether the failure was raised at this node rather than
// inherited from a descendant. A node can fail on its own even when its
// Cause names an ancestor with the same ID.
func (o *Outcome) Originated() bool {
	return o.Failed() && o.origin
}

// FailFrom marks the outcome as failed because of the descendant child.
func (o *Outcome) FailFrom(child *Outcome) {
	o.Status = StatusFailed
	o.Err = child.Err
	o.origin = false
	o.Reason = child.Reason
	o.Cause = child.Cause
	if o.Cause == nil {
		ref := child.Ref()
		o.Cause = &ref
	}
}

// AddChild appends a pending child outcome and returns it.
func (o *Outcome) AddChild(n Node, p string) *Outcome {
	c := NewOutcome(n, p)
	o.Children = append(o.Children, c)
	return c
}

// Walk calls fn for o and every descendant outcome, depth first.
func (o *Outcome) Walk(fn func(*Outcome)) {
	stack := []*Outcome{o}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		fn(cur)
		for i := len(cur.Children) - 1; i >= 0; i-- {
			stack = append(stack, cur.Children[i])
		}
	}
}

// Count returns the number of nodes visited under and including o.
func (o *Outcome) Count() int {
	n := 0
	o.Walk(func(*Outcome) { n++ })
	return n
}

// TotalBytes sums the bytes written under and including o.
func (o *Outcome) TotalBytes() int64 {
	var total int64
	o.Walk(func(c *Outcome) { total += c.Bytes })
	return total
}
