// Package ffmpeg runs compiled filter graphs through the ffmpeg binary using
// ffmpeg-go, and probes media files with ffprobe.
package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	ffmpeg "github.com/u2takey/ffmpeg-go"

	"github.com/ZacxDev/video-composer/internal/graph"
)

// stderrTail bounds how much ffmpeg output is kept in an EngineError.
const stderrTail = 4096

// Job is one engine invocation: a filter graph with its external inputs,
// the output-side options and the destination path.
type Job struct {
	Graph  *graph.Graph
	Output OutputOptions
	Path   string
}

// EngineError is returned when ffmpeg exits unsuccessfully.
type EngineError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *EngineError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("ffmpeg failed: %v", e.Err)
	}
	return fmt.Sprintf("ffmpeg failed: %v: %s", e.Err, e.Stderr)
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

// Processor wraps FFmpeg functionality
type Processor struct {
	threads int
	logger  zerolog.Logger
}

// NewProcessor creates a new FFmpeg processor. threads <= 0 picks a count
// from the number of CPUs.
func NewProcessor(threads int, logger zerolog.Logger) *Processor {
	if threads <= 0 {
		threads = GetOptimalThreadCount()
	}
	return &Processor{
		threads: threads,
		logger:  logger.With().Str("component", "ffmpeg").Logger(),
	}
}

// Run executes job and blocks until ffmpeg exits. ctx is checked before the
// process starts; a running process is killed when ctx is cancelled.
func (p *Processor) Run(ctx context.Context, job Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	stream, args, err := p.compile(job)
	if err != nil {
		return err
	}

	p.logger.Debug().
		Str("output", job.Path).
		Str("filter_graph", job.Graph.String()).
		Msgf("running ffmpeg %s", strings.Join(args, " "))

	var stderr bytes.Buffer
	cmd := stream.Compile()
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return errors.Wrap(err, "starting ffmpeg")
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	select {
	case err = <-done:
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		<-done
		return ctx.Err()
	}

	if err != nil {
		return &EngineError{Args: args, Stderr: tail(stderr.String(), stderrTail), Err: err}
	}
	return nil
}

// Command returns the ffmpeg arguments job would run with, without running it.
func (p *Processor) Command(job Job) ([]string, error) {
	_, args, err := p.compile(job)
	return args, err
}

// compile builds the ffmpeg-go stream for job and renders its arguments.
// ffmpeg-go reports malformed graphs by panicking; those panics are returned
// as errors.
func (p *Processor) compile(job Job) (stream *ffmpeg.Stream, args []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			stream, args, err = nil, nil, errors.Errorf("compiling filter graph: %v", r)
		}
	}()

	stream, err = p.build(job)
	if err != nil {
		return nil, nil, err
	}
	return stream, stream.GetArgs(), nil
}

// build translates the graph into ffmpeg-go streams. Every node becomes a
// filter node and the mapped outputs become output edges, so ffmpeg-go
// generates both -filter_complex and -map.
//
// ffmpeg-go merges nodes with equal operation, options and upstream, and
// refuses a merged node that feeds several consumers. Identical nodes are
// therefore built once and any stream consumed more than once is routed
// through split or asplit.
func (p *Processor) build(job Job) (*ffmpeg.Stream, error) {
	g := job.Graph
	if g == nil || len(g.Inputs) == 0 {
		return nil, errors.New("job has no inputs")
	}
	if job.Path == "" {
		return nil, errors.New("job has no output path")
	}
	if err := g.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid filter graph")
	}

	inputs := make([]*ffmpeg.Stream, len(g.Inputs))
	for i, in := range g.Inputs {
		inputs[i] = ffmpeg.Input(in.Path, kwArgs(in.Options))
	}

	outKw := job.Output.KwArgs(p.threads)

	if g.Empty() && g.VideoOut == "" && g.AudioOut == "" {
		if len(inputs) > 1 {
			return nil, errors.Errorf("empty graph with %d inputs has nothing to map", len(inputs))
		}
		return inputs[0].Output(job.Path, outKw).OverWriteOutput(), nil
	}

	w := newWiring(g)

	built := make(map[string]*ffmpeg.Stream, len(g.Nodes))
	splits := make(map[string]*ffmpeg.Node)
	taken := make(map[string]int)
	resolve := func(ref string, optional bool) *ffmpeg.Stream {
		if idx, m, ok := graph.ParseRef(ref); ok {
			selector := string(m)
			if optional {
				selector += "?"
			}
			return inputs[idx].Get(selector)
		}
		k := w.keys[ref]
		if w.uses[k] <= 1 {
			return built[k]
		}
		sp, ok := splits[k]
		if !ok {
			if w.media[k] == graph.Audio {
				sp = built[k].ASplit()
			} else {
				sp = built[k].Split()
			}
			splits[k] = sp
		}
		out := sp.Stream(ffmpeg.Label(strconv.Itoa(taken[k])), "")
		taken[k]++
		return out
	}

	for _, n := range g.Nodes {
		k := w.keys[n.Output]
		if _, ok := built[k]; ok {
			continue
		}
		streams := make([]*ffmpeg.Stream, 0, len(n.Inputs))
		for _, in := range n.Inputs {
			streams = append(streams, resolve(in, false))
		}
		built[k] = ffmpeg.Filter(streams, n.Operation, ffmpeg.Args{}, kwArgs(n.Options))
	}

	var outs []*ffmpeg.Stream
	if g.VideoOut != "" {
		outs = append(outs, resolve(g.VideoOut, false))
	}
	if g.AudioOut != "" {
		outs = append(outs, resolve(g.AudioOut, g.AudioOptional))
	}

	return ffmpeg.Output(outs, job.Path, outKw).OverWriteOutput(), nil
}

// wiring identifies each label by its content, the way ffmpeg-go does, and
// counts how many distinct consumers read each content key.
type wiring struct {
	keys  map[string]string
	media map[string]graph.Media
	uses  map[string]int
}

func newWiring(g *graph.Graph) *wiring {
	w := &wiring{
		keys:  make(map[string]string, len(g.Nodes)),
		media: make(map[string]graph.Media, len(g.Nodes)),
		uses:  make(map[string]int, len(g.Nodes)),
	}

	refKey := func(ref string) (string, graph.Media) {
		if idx, m, ok := graph.ParseRef(ref); ok {
			in := g.Inputs[idx]
			return fmt.Sprintf("input(%s|%s):%s", in.Path, sortedOptions(in.Options), m), m
		}
		k := w.keys[ref]
		return k, w.media[k]
	}

	seen := make(map[string]bool, len(g.Nodes))
	for _, n := range g.Nodes {
		inKeys := make([]string, len(n.Inputs))
		var media graph.Media
		for i, in := range n.Inputs {
			k, m := refKey(in)
			inKeys[i] = k
			if i == 0 {
				media = m
			}
		}
		k := fmt.Sprintf("%s=%s(%s)", n.Operation, sortedOptions(n.Options), strings.Join(inKeys, ","))
		w.keys[n.Output] = k
		w.media[k] = media

		if seen[k] {
			continue
		}
		seen[k] = true
		for _, in := range n.Inputs {
			if _, _, ok := graph.ParseRef(in); !ok {
				w.uses[w.keys[in]]++
			}
		}
	}

	for _, out := range []string{g.VideoOut, g.AudioOut} {
		if out == "" {
			continue
		}
		if _, _, ok := graph.ParseRef(out); !ok {
			w.uses[w.keys[out]]++
		}
	}
	return w
}

func sortedOptions(opts []graph.Option) string {
	sorted := append([]graph.Option(nil), opts...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Key < sorted[j].Key })
	return graph.FormatOptions(sorted)
}

// kwArgs converts graph options to ffmpeg-go arguments. Values are rendered
// unescaped; ffmpeg-go applies filter graph escaping itself.
func kwArgs(opts []graph.Option) ffmpeg.KwArgs {
	kw := ffmpeg.KwArgs{}
	for _, o := range opts {
		kw[o.Key] = graph.FormatValue(o.Value)
	}
	return kw
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
