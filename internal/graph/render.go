package graph

import (
	"fmt"
	"strconv"
	"strings"
)

// String renders the nodes in -filter_complex syntax. It is used for logs
// and dry runs; the engine builds its command from the nodes directly.
func (g *Graph) String() string {
	chains := make([]string, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		var sb strings.Builder
		for _, in := range n.Inputs {
			sb.WriteString("[" + in + "]")
		}
		sb.WriteString(n.Operation)
		if len(n.Options) > 0 {
			sb.WriteString("=")
			sb.WriteString(FormatOptions(n.Options))
		}
		sb.WriteString("[" + n.Output + "]")
		chains = append(chains, sb.String())
	}
	return strings.Join(chains, ";")
}

// Maps returns the -map arguments for the graph's outputs.
func (g *Graph) Maps() []string {
	var maps []string
	if g.VideoOut != "" {
		maps = append(maps, mapArg(g.VideoOut, false))
	}
	if g.AudioOut != "" {
		maps = append(maps, mapArg(g.AudioOut, g.AudioOptional))
	}
	return maps
}

func mapArg(ref string, optional bool) string {
	if _, _, ok := ParseRef(ref); ok {
		if optional {
			return ref + "?"
		}
		return ref
	}
	return "[" + ref + "]"
}

// FormatOptions renders options as key=value pairs joined with ':'.
func FormatOptions(opts []Option) string {
	parts := make([]string, 0, len(opts))
	for _, o := range opts {
		parts = append(parts, o.Key+"="+quote(FormatValue(o.Value)))
	}
	return strings.Join(parts, ":")
}

// FormatValue renders an option value the way ffmpeg expects it.
func FormatValue(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func quote(s string) string {
	if !strings.ContainsAny(s, `\':,;[]=`) {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
