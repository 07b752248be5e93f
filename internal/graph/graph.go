// Package graph holds the filter graph representation handed to the
// transcoding engine: external inputs, an ordered list of labelled filter
// nodes, and the streams mapped to the output container.
//
// Graphs are assembled with a Builder, which generates unique labels and
// validates the wiring when Build is called.
package graph

import (
	"fmt"
	"regexp"
	"strconv"
)

// Media selects the stream type of an external input.
type Media string

const (
	Video Media = "v"
	Audio Media = "a"
)

// Option is a single filter or command line option. Options keep their
// insertion order so rendered graphs are stable.
type Option struct {
	Key   string
	Value interface{}
}

// Input is an external source attached with -i, together with the options
// that must precede it on the command line (loop, ss, t, f, ...).
type Input struct {
	Path    string
	Options []Option
}

// Node is one filter application.
type Node struct {
	Operation string
	Options   []Option
	Inputs    []string
	Output    string
}

// Option returns the value of the named option.
func (n Node) Option(key string) (interface{}, bool) {
	for _, o := range n.Options {
		if o.Key == key {
			return o.Value, true
		}
	}
	return nil, false
}

// Graph is a validated filter graph.
type Graph struct {
	Inputs []Input
	Nodes  []Node

	// VideoOut and AudioOut name the streams mapped to the output, either a
	// node label or an external reference such as "0:v". Empty means unmapped.
	VideoOut string
	AudioOut string

	// AudioOptional maps AudioOut with a trailing '?' so a missing audio
	// stream does not fail the stage.
	AudioOptional bool
}

// Empty reports whether the graph has no filters. An empty graph is run as a
// plain trim/re-encode with the engine's default stream selection.
func (g *Graph) Empty() bool {
	return len(g.Nodes) == 0
}

// Find returns the nodes applying the given operation, in graph order.
func (g *Graph) Find(operation string) []Node {
	var nodes []Node
	for _, n := range g.Nodes {
		if n.Operation == operation {
			nodes = append(nodes, n)
		}
	}
	return nodes
}

// Producer returns the node that produces label.
func (g *Graph) Producer(label string) (Node, bool) {
	for _, n := range g.Nodes {
		if n.Output == label {
			return n, true
		}
	}
	return Node{}, false
}

var refPattern = regexp.MustCompile(`^(\d+):([va])$`)

// Ref formats a reference to stream type m of external input index.
func Ref(index int, m Media) string {
	return fmt.Sprintf("%d:%s", index, m)
}

// ParseRef splits an external reference into input index and media type.
func ParseRef(ref string) (int, Media, bool) {
	m := refPattern.FindStringSubmatch(ref)
	if m == nil {
		return 0, "", false
	}
	idx, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, "", false
	}
	return idx, Media(m[2]), true
}

// Validate checks the wiring: every node input is an external reference to an
// attached input or a label produced by an earlier node, labels are unique,
// each label feeds exactly one consumer or output mapping (filter outputs
// cannot be fanned out without split), and mapped outputs exist.
func (g *Graph) Validate() error {
	produced := make(map[string]bool, len(g.Nodes))
	consumed := make(map[string]bool, len(g.Nodes))

	for i, n := range g.Nodes {
		if n.Operation == "" {
			return fmt.Errorf("node %d has no operation", i)
		}
		if len(n.Inputs) == 0 {
			return fmt.Errorf("node %d (%s) has no inputs", i, n.Operation)
		}
		for _, in := range n.Inputs {
			if _, _, isRef := ParseRef(in); isRef {
				if err := g.checkRef(in); err != nil {
					return fmt.Errorf("node %d (%s): %v", i, n.Operation, err)
				}
				continue
			}
			if !produced[in] {
				return fmt.Errorf("node %d (%s) consumes %q before it is produced", i, n.Operation, in)
			}
			if consumed[in] {
				return fmt.Errorf("node %d (%s) consumes %q which already has a consumer", i, n.Operation, in)
			}
			consumed[in] = true
		}
		if n.Output == "" {
			return fmt.Errorf("node %d (%s) has no output label", i, n.Operation)
		}
		if _, _, ok := ParseRef(n.Output); ok {
			return fmt.Errorf("node %d (%s) output %q collides with an input reference", i, n.Operation, n.Output)
		}
		if produced[n.Output] {
			return fmt.Errorf("label %q produced twice", n.Output)
		}
		produced[n.Output] = true
	}

	for _, out := range []string{g.VideoOut, g.AudioOut} {
		if out == "" {
			continue
		}
		if _, _, isRef := ParseRef(out); isRef {
			if err := g.checkRef(out); err != nil {
				return fmt.Errorf("output: %v", err)
			}
			continue
		}
		if !produced[out] {
			return fmt.Errorf("output %q is not produced by the graph", out)
		}
		if consumed[out] {
			return fmt.Errorf("output %q is also consumed by a filter", out)
		}
		consumed[out] = true
	}

	for _, n := range g.Nodes {
		if !consumed[n.Output] {
			return fmt.Errorf("label %q is neither consumed nor mapped", n.Output)
		}
	}

	return nil
}

func (g *Graph) checkRef(ref string) error {
	idx, _, ok := ParseRef(ref)
	if !ok {
		return fmt.Errorf("%q is not an input reference", ref)
	}
	if idx >= len(g.Inputs) {
		return fmt.Errorf("input reference %q but only %d inputs attached", ref, len(g.Inputs))
	}
	return nil
}
