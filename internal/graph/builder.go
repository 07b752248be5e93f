package graph

import (
	"fmt"

	"github.com/pkg/errors"
)

// Builder assembles a Graph node by node. Labels are generated from a hint:
// the first use of a hint yields the hint itself, later uses get a numeric
// suffix, so labels stay readable ("padded", "padded_1") and never collide.
type Builder struct {
	inputs []Input
	nodes  []Node
	taken  map[string]bool

	videoOut      string
	audioOut      string
	audioOptional bool
}

func NewBuilder() *Builder {
	return &Builder{taken: make(map[string]bool)}
}

// AddInput attaches an external source and returns its input index.
func (b *Builder) AddInput(path string, opts ...Option) int {
	b.inputs = append(b.inputs, Input{Path: path, Options: opts})
	return len(b.inputs) - 1
}

// Len returns the number of filter nodes added so far.
func (b *Builder) Len() int {
	return len(b.nodes)
}

// Add appends a filter node consuming inputs and returns its output label.
func (b *Builder) Add(operation, hint string, options []Option, inputs ...string) string {
	label := b.label(hint)
	b.nodes = append(b.nodes, Node{
		Operation: operation,
		Options:   options,
		Inputs:    append([]string(nil), inputs...),
		Output:    label,
	})
	return label
}

// MapVideo selects the stream mapped as the output video.
func (b *Builder) MapVideo(ref string) {
	b.videoOut = ref
}

// MapAudio selects the stream mapped as the output audio. An optional
// mapping is skipped by the engine when the stream does not exist.
func (b *Builder) MapAudio(ref string, optional bool) {
	b.audioOut = ref
	b.audioOptional = optional
}

// Build validates the wiring and returns the finished graph.
func (b *Builder) Build() (*Graph, error) {
	g := &Graph{
		Inputs:        append([]Input(nil), b.inputs...),
		Nodes:         append([]Node(nil), b.nodes...),
		VideoOut:      b.videoOut,
		AudioOut:      b.audioOut,
		AudioOptional: b.audioOptional,
	}
	if len(g.Inputs) == 0 {
		return nil, errors.New("graph has no inputs")
	}
	if err := g.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid filter graph")
	}
	return g, nil
}

func (b *Builder) label(hint string) string {
	if hint == "" {
		hint = "s"
	}
	label := hint
	for i := 1; b.taken[label]; i++ {
		label = fmt.Sprintf("%s_%d", hint, i)
	}
	b.taken[label] = true
	return label
}
