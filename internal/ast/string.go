package ast

import (
	"fmt"
	"sort"
	"strings"
)

// String renders a deterministic, order-preserving textual form of n. It is
// used only as the second half of the "(variant-tag, stringification)"
// total order that rules 102/104/105 sort by — not as SQL output.
func String(n Node) string {
	var b strings.Builder
	writeNode(&b, n)
	return b.String()
}

func writeNode(b *strings.Builder, n Node) {
	if n == nil {
		b.WriteString("<nil>")
		return
	}
	b.WriteString(string(n.Kind()))
	b.WriteByte('(')
	first := true
	for _, s := range n.Slots() {
		if !first {
			b.WriteByte(',')
		}
		first = false
		fmt.Fprintf(b, "%s=", s.Name)
		writeValue(b, s.Value)
	}
	b.WriteByte(')')
}

func writeValue(b *strings.Builder, v any) {
	switch x := v.(type) {
	case nil:
		b.WriteString("<nil>")
	case Node:
		writeNode(b, x)
	case []Node:
		b.WriteByte('[')
		for i, c := range x {
			if i > 0 {
				b.WriteByte(',')
			}
			writeNode(b, c)
		}
		b.WriteByte(']')
	case string:
		b.WriteString(x)
	case bool:
		fmt.Fprintf(b, "%v", x)
	case float64:
		fmt.Fprintf(b, "%v", x)
	default:
		fmt.Fprintf(b, "%v", x)
	}
}

// SortKey is the "(variant-tag-name, stringification)" total order every
// rule that reorders siblings (102, 104, 105) sorts by.
func SortKey(n Node) (string, string) {
	if n == nil {
		return "", "<nil>"
	}
	return string(n.Kind()), String(n)
}

// SortNodes sorts a list of nodes in place by SortKey.
func SortNodes(nodes []Node) {
	sort.SliceStable(nodes, func(i, j int) bool {
		ki, si := SortKey(nodes[i])
		kj, sj := SortKey(nodes[j])
		if ki != kj {
			return ki < kj
		}
		return si < sj
	})
}
