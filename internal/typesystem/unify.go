package typesystem

// Join computes the switch-expression result type (§4.3: "the switch's
// static type is the join of all case result types; if no unifying
// primitive type exists, it is def"). Grounded on the teacher's
// unify.go, simplified from full unification to a join lattice since our
// type system has no type variables to solve for.
func Join(types []Type) Type {
	if len(types) == 0 {
		return Def()
	}
	acc := types[0]
	for _, t := range types[1:] {
		acc = join2(acc, t)
	}
	return acc
}

func join2(a, b Type) Type {
	if Equal(a, b) {
		return a
	}
	if IsNumeric(a) && IsNumeric(b) {
		if w, ok := Wider(a.Tag(), b.Tag()); ok {
			return tagToPrim(w)
		}
	}
	return Def()
}

func tagToPrim(t Tag) Type { return Prim{T: t} }

// Equal does a structural comparison sufficient for join/switch typing.
func Equal(a, b Type) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Tag() != b.Tag() {
		return false
	}
	switch av := a.(type) {
	case ListOf:
		bv := b.(ListOf)
		return Equal(av.Elem, bv.Elem)
	case ArrayOf:
		bv := b.(ArrayOf)
		return Equal(av.Elem, bv.Elem)
	case Instance:
		bv := b.(Instance)
		return av.ClassName == bv.ClassName
	default:
		return true
	}
}

// Intersects reports whether the value-domain tag sets of two types
// overlap (§4.2 step 1, I2). def intersects everything.
func Intersects(a, b Type) bool {
	if a.Tag() == TAG_DEF || b.Tag() == TAG_DEF {
		return true
	}
	return a.Tag() == b.Tag()
}
