package doc

import (
	"errors"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

func NewMapping() *yaml.Node {
	return &yaml.Node{Kind: yaml.MappingNode, Tag: tagMap}
}

func NewSequence(items ...*yaml.Node) *yaml.Node {
	return &yaml.Node{Kind: yaml.SequenceNode, Tag: tagSeq, Content: items}
}

func NewString(s string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: tagStr, Value: s}
}

func NewInt(i int) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: tagInt, Value: strconv.Itoa(i)}
}

// IsNull reports whether n is absent or an explicit null scalar.
func IsNull(n *yaml.Node) bool {
	if n == nil {
		return true
	}
	n = resolve(n)
	return n.Kind == yaml.ScalarNode && n.ShortTag() == tagNull
}

// IsEmptySequence reports whether n is null or a sequence without items.
func IsEmptySequence(n *yaml.Node) bool {
	if IsNull(n) {
		return true
	}
	n = resolve(n)
	return n.Kind == yaml.SequenceNode && len(n.Content) == 0
}

// Keys returns the scalar keys of a mapping in document order.
func Keys(m *yaml.Node) []string {
	if m == nil || m.Kind != yaml.MappingNode {
		return nil
	}
	out := make([]string, 0, len(m.Content)/2)
	for i := 0; i+1 < len(m.Content); i += 2 {
		out = append(out, m.Content[i].Value)
	}
	return out
}

// Get returns the value stored under key, or nil.
func Get(m *yaml.Node, key string) *yaml.Node {
	i := indexOf(m, key)
	if i < 0 {
		return nil
	}
	return m.Content[i+1]
}

func Has(m *yaml.Node, key string) bool {
	return indexOf(m, key) >= 0
}

// Set replaces the value under key, appending the pair when absent.
func Set(m *yaml.Node, key string, value *yaml.Node) {
	if m == nil || m.Kind != yaml.MappingNode {
		return
	}
	if i := indexOf(m, key); i >= 0 {
		m.Content[i+1] = value
		return
	}
	m.Content = append(m.Content, NewString(key), value)
}

// Delete removes key and reports whether it was present.
func Delete(m *yaml.Node, key string) bool {
	i := indexOf(m, key)
	if i < 0 {
		return false
	}
	m.Content = append(m.Content[:i], m.Content[i+2:]...)
	return true
}

func indexOf(m *yaml.Node, key string) int {
	if m == nil || m.Kind != yaml.MappingNode {
		return -1
	}
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return i
		}
	}
	return -1
}

// ScalarString reads a scalar field. Missing, null and non-scalar values
// read as "".
func ScalarString(m *yaml.Node, key string) string {
	v := Get(m, key)
	if v == nil {
		return ""
	}
	v = resolve(v)
	if v.Kind != yaml.ScalarNode || v.ShortTag() == tagNull {
		return ""
	}
	return v.Value
}

// ScalarInt reads an integer field; anything unparsable reads as 0.
func ScalarInt(m *yaml.Node, key string) int {
	n, err := strconv.Atoi(strings.TrimSpace(ScalarString(m, key)))
	if err != nil {
		return 0
	}
	return n
}

func resolve(n *yaml.Node) *yaml.Node {
	for n.Kind == yaml.AliasNode && n.Alias != nil {
		n = n.Alias
	}
	return n
}

// ErrCloneTooLarge is returned by CloneBounded when the expanded subtree
// exceeds the node budget (for example through alias fan-out).
var ErrCloneTooLarge = errors.New("node tree exceeds clone budget")

// Clone deep-copies n. Aliases are expanded into copies of their targets and
// anchors are dropped, so the copy can be inserted into any document.
func Clone(n *yaml.Node) *yaml.Node {
	c, _ := cloneNode(n, -1)
	return c
}

// CloneBounded is Clone with an upper bound on the number of produced nodes.
func CloneBounded(n *yaml.Node, maxNodes int) (*yaml.Node, error) {
	if maxNodes < 0 {
		maxNodes = 0
	}
	return cloneNode(n, maxNodes)
}

// cloneNode copies n; a negative budget means unbounded.
func cloneNode(n *yaml.Node, budget int) (*yaml.Node, error) {
	remaining := budget
	var walk func(*yaml.Node) (*yaml.Node, error)
	walk = func(n *yaml.Node) (*yaml.Node, error) {
		if n == nil {
			return nil, nil
		}
		n = resolve(n)
		if remaining >= 0 {
			if remaining == 0 {
				return nil, ErrCloneTooLarge
			}
			remaining--
		}
		c := *n
		c.Anchor = ""
		c.Alias = nil
		c.Content = nil
		if len(n.Content) > 0 {
			c.Content = make([]*yaml.Node, len(n.Content))
			for i, ch := range n.Content {
				cc, err := walk(ch)
				if err != nil {
					return nil, err
				}
				c.Content[i] = cc
			}
		}
		return &c, nil
	}
	return walk(n)
}
