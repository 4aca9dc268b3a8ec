package doc

import (
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Canonical returns a serialized form of n that only depends on its value:
// node kind, resolved tag, scalar text and key order. Styles, comments and
// positions do not participate.
func Canonical(n *yaml.Node) string {
	var b strings.Builder
	writeCanonical(&b, n)
	return b.String()
}

// Equal reports whether a and b serialize to the same value.
func Equal(a, b *yaml.Node) bool {
	return Canonical(a) == Canonical(b)
}

func writeCanonical(b *strings.Builder, n *yaml.Node) {
	if n == nil {
		b.WriteString("~")
		return
	}
	n = resolve(n)
	switch n.Kind {
	case yaml.DocumentNode:
		for _, c := range n.Content {
			writeCanonical(b, c)
		}
	case yaml.MappingNode:
		b.WriteByte('{')
		for i := 0; i+1 < len(n.Content); i += 2 {
			if i > 0 {
				b.WriteByte(',')
			}
			writeCanonical(b, n.Content[i])
			b.WriteByte(':')
			writeCanonical(b, n.Content[i+1])
		}
		b.WriteByte('}')
	case yaml.SequenceNode:
		b.WriteByte('[')
		for i, c := range n.Content {
			if i > 0 {
				b.WriteByte(',')
			}
			writeCanonical(b, c)
		}
		b.WriteByte(']')
	case yaml.ScalarNode:
		b.WriteString(n.ShortTag())
		b.WriteString(strconv.Quote(n.Value))
	default:
		b.WriteString("?")
	}
}
