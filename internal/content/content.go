package content

import (
	"fmt"
	"path"
	"regexp"
)

// Kind distinguishes folders, which may be decomposed, from leaf items.
type Kind int

const (
	KindLeaf Kind = iota
	KindFolder
)

// ParseKind maps an API itemType to a Kind. Anything other than "Folder"
// is a leaf (Dashboard, Search, Report, Lookups, ...).
func ParseKind(itemType string) Kind {
	if itemType == "Folder" {
		return KindFolder
	}
	return KindLeaf
}

func (k Kind) String() string {
	if k == KindFolder {
		return "Folder"
	}
	return "Leaf"
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(b []byte) error {
	*k = ParseKind(string(b))
	return nil
}

// Node is one addressable unit of the content tree.
// Children is only populated when a folder has been listed.
type Node struct {
	ID       string
	Name     string
	Kind     Kind
	Children []Node
}

// IsFolder reports whether the node can be decomposed into children.
func (n Node) IsFolder() bool {
	return n.Kind == KindFolder
}

// Ref returns the identifying part of the node.
func (n Node) Ref() NodeRef {
	return NodeRef{ID: n.ID, Name: n.Name}
}

func (n Node) String() string {
	return fmt.Sprintf("%s (%s)", n.Name, n.ID)
}

// NodeRef identifies a node in reports.
type NodeRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (r NodeRef) String() string {
	return r.ID + " " + r.Name
}

var nonWord = regexp.MustCompile(`[^\p{L}\p{N}_]`)

// Sanitize replaces every non-word character of a display name with '_'.
func Sanitize(name string) string {
	if name == "" {
		return "_"
	}
	return nonWord.ReplaceAllString(name, "_")
}

// RootPath returns the target path of a top-level node: <id>_<name>.
// Both parts are sanitized, so the path is always a single segment.
func RootPath(n Node) string {
	return Sanitize(n.ID) + "_" + Sanitize(n.Name)
}

// ChildPath returns the target path of n inside parent. taken holds the
// names already used by earlier siblings and is updated; a sibling whose
// sanitized name collides gets its ID appended.
func ChildPath(parent string, n Node, taken map[string]bool) string {
	name := Sanitize(n.Name)
	if taken != nil {
		if taken[name] {
			name = name + "_" + Sanitize(n.ID)
		}
		taken[name] = true
	}
	return path.Join(parent, name)
}

// ArtifactKey returns the storage key of the document exported for path.
func ArtifactKey(p string) string {
	return p + ".json"
}
