package dice

import (
	"strconv"
	"strings"
)

// Stringify renders a rolled tree as Discord Markdown.
//
// Critical faces (1 or the die's maximum) are bold, dropped values are struck
// through, exploded faces carry a trailing "!", and annotations follow their term.
func Stringify(n Number) string {
	var s string
	switch v := n.(type) {
	case *RolledLiteral:
		s = formatNumber(v.Value, v.IsInt)
		if v.Exploded {
			s += "!"
		}
	case *Die:
		parts := make([]string, len(v.Values))
		for i, face := range v.Values {
			parts[i] = renderFace(face, v.Size)
		}
		s = strings.Join(parts, ", ")
	case *RolledDice:
		size := strconv.Itoa(v.Size)
		if v.Percentile {
			size = "%"
		}
		parts := make([]string, len(v.Dice))
		for i, d := range v.Dice {
			parts[i] = Stringify(d)
		}
		s = strconv.Itoa(v.Num) + "d" + size + opsString(v.Ops) + " (" + strings.Join(parts, ", ") + ")"
	case *RolledSet:
		parts := make([]string, len(v.Values))
		for i, sv := range v.Values {
			parts[i] = Stringify(sv)
		}
		inner := strings.Join(parts, ", ")
		if len(parts) == 1 {
			inner += ","
		}
		s = "(" + inner + ")" + opsString(v.Ops)
	case *RolledParen:
		s = "(" + Stringify(v.Value) + ")"
	case *RolledUnOp:
		s = v.Op + Stringify(v.Value)
	case *RolledBinOp:
		s = Stringify(v.Left) + " " + v.Op + " " + Stringify(v.Right)
	}
	s += annotationSuffix(n.Annotation())
	if !n.Kept() {
		s = "~~" + s + "~~"
	}
	return s
}

func renderFace(face *RolledLiteral, size int) string {
	s := formatNumber(face.Value, true)
	if face.Exploded {
		s += "!"
	}
	if v := int(face.Value); v == 1 || v == size {
		s = "**" + s + "**"
	}
	if !face.Kept() {
		s = "~~" + s + "~~"
	}
	return s
}
