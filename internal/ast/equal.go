package ast

// Equal implements the structural equality of spec.md §3: same variant,
// same set of slots, and corresponding slot values equal (deep,
// order-sensitive for lists).
func Equal(a, b Node) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Kind() != b.Kind() {
		return false
	}
	sa, sb := a.Slots(), b.Slots()
	if len(sa) != len(sb) {
		return false
	}
	for i := range sa {
		if sa[i].Name != sb[i].Name {
			return false
		}
		if !valueEqual(sa[i].Value, sb[i].Value) {
			return false
		}
	}
	return true
}

func valueEqual(a, b any) bool {
	an, aIsNode := a.(Node)
	bn, bIsNode := b.(Node)
	if aIsNode || bIsNode {
		if !aIsNode || !bIsNode {
			return false
		}
		return Equal(an, bn)
	}

	al, aIsList := a.([]Node)
	bl, bIsList := b.([]Node)
	if aIsList || bIsList {
		if !aIsList || !bIsList || len(al) != len(bl) {
			return false
		}
		for i := range al {
			if !Equal(al[i], bl[i]) {
				return false
			}
		}
		return true
	}

	return a == b
}

// Clone deep-copies n. The tree is immutable by convention, but callers
// that want an independent copy (the driver's CTE inlining, tests that
// compare a tree before and after a rewrite) clone up front.
func Clone(n Node) Node {
	return Transform(n, func(x Node) Node { return x })
}
