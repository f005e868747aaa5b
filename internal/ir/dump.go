package ir

import (
	"fmt"
	"sort"
	"strings"
)

// Dump renders the graph in a deterministic line-per-node text form,
// suitable for golden-file comparison:
//
//	x = input
//	op1 = call<aten.conv2d>(x, w1)
//	obs_0 = observer<obs-1>(op1)
//	out = output(obs_0)
//
// Kwargs render sorted by key inside braces: clone<aten.clone>(x){memory_format: "preserve"}.
// Output is stable for a given graph state: node order is creation order
// and kwarg keys are sorted.
func Dump(g *Graph) string {
	var b strings.Builder
	for _, n := range g.Nodes() {
		b.WriteString(n.Name())
		b.WriteString(" = ")
		b.WriteString(string(n.Op()))
		if n.Target() != "" {
			b.WriteString("<")
			b.WriteString(n.Target())
			b.WriteString(">")
		}
		if args := n.Args(); len(args) > 0 {
			b.WriteString("(")
			for i, a := range args {
				if i > 0 {
					b.WriteString(", ")
				}
				b.WriteString(formatArg(a))
			}
			b.WriteString(")")
		}
		if kw := n.Kwargs(); len(kw) > 0 {
			keys := make([]string, 0, len(kw))
			for k := range kw {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			b.WriteString("{")
			for i, k := range keys {
				if i > 0 {
					b.WriteString(", ")
				}
				b.WriteString(k)
				b.WriteString(": ")
				b.WriteString(formatArg(kw[k]))
			}
			b.WriteString("}")
		}
		b.WriteString("\n")
	}
	return b.String()
}

func formatArg(a Arg) string {
	switch v := a.(type) {
	case NodeArg:
		return v.Node.Name()
	case ListArg:
		parts := make([]string, len(v))
		for i, inner := range v {
			parts[i] = formatArg(inner)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case LiteralArg:
		if s, ok := v.Value.(string); ok {
			return fmt.Sprintf("%q", s)
		}
		return fmt.Sprintf("%v", v.Value)
	default:
		return fmt.Sprintf("<?%T>", a)
	}
}
