package dice

import "math"

type term struct {
	sign       float64
	node       Number
	annotation string
}

// Consolidate collapses the additive terms of r into one literal per annotation,
// so "3d6 [fire] + 1d4 [cold] + 2" renders like "11 [fire] + 5 [cold]". A term
// without an annotation of its own takes the single annotation found beneath
// it, or else inherits the annotation of the term to its left.
//
// Postcondition: the total is unchanged and Consolidate(Consolidate(r)) renders
// the same as Consolidate(r).
func Consolidate(r RollResult) RollResult {
	if r.Expr == nil {
		return r
	}
	terms := flattenAdditive(r.Expr.Root, 1, nil)

	var (
		order []string
		sums  = map[string]float64{}
		prev  string
	)
	for i, t := range terms {
		ann := t.annotation
		if ann == "" && i > 0 {
			ann = prev
		}
		if _, seen := sums[ann]; !seen {
			order = append(order, ann)
		}
		sums[ann] += t.sign * t.node.Total()
		prev = ann
	}

	var root Number
	for _, ann := range order {
		v := sums[ann]
		lit := &RolledLiteral{numberBase: numberBase{annotation: ann}, Value: math.Abs(v), IsInt: v == math.Trunc(v)}
		switch {
		case root == nil && v < 0:
			root = &RolledUnOp{Op: "-", Value: lit, total: v}
		case root == nil:
			root = lit
		case v < 0:
			root = &RolledBinOp{Op: "-", Left: root, Right: lit, total: root.Total() + v}
		default:
			root = &RolledBinOp{Op: "+", Left: root, Right: lit, total: root.Total() + v}
		}
	}
	if root == nil {
		return r
	}
	out := newResult(&RolledExpression{Root: root, Comment: r.Expr.Comment})
	out.Total = r.Total
	return out
}

// flattenAdditive splits n on top-level + and - into signed terms.
func flattenAdditive(n Number, sign float64, out []term) []term {
	switch v := n.(type) {
	case *RolledBinOp:
		if v.Op == "+" || v.Op == "-" {
			out = flattenAdditive(v.Left, sign, out)
			rs := sign
			if v.Op == "-" {
				rs = -sign
			}
			return flattenAdditive(v.Right, rs, out)
		}
	case *RolledUnOp:
		s := sign
		if v.Op == "-" {
			s = -sign
		}
		return append(out, term{sign: s, node: v.Value, annotation: uniqueAnnotation(v.Value)})
	}
	return append(out, term{sign: sign, node: n, annotation: uniqueAnnotation(n)})
}

// uniqueAnnotation returns n's own annotation, or the annotation shared by all
// annotated nodes beneath it, or "" when there is none or more than one.
func uniqueAnnotation(n Number) string {
	if a := n.Annotation(); a != "" {
		return a
	}
	found := map[string]struct{}{}
	collectAnnotations(n, found)
	if len(found) != 1 {
		return ""
	}
	for a := range found {
		return a
	}
	return ""
}

func collectAnnotations(n Number, found map[string]struct{}) {
	if a := n.Annotation(); a != "" {
		found[a] = struct{}{}
		return
	}
	switch v := n.(type) {
	case *RolledSet:
		for _, sv := range v.Values {
			collectAnnotations(sv, found)
		}
	case *RolledParen:
		collectAnnotations(v.Value, found)
	case *RolledUnOp:
		collectAnnotations(v.Value, found)
	case *RolledBinOp:
		collectAnnotations(v.Left, found)
		collectAnnotations(v.Right, found)
	}
}
