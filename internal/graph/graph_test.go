package graph

import (
	"reflect"
	"strings"
	"testing"
)

func TestBuilderGeneratesUniqueLabels(t *testing.T) {
	b := NewBuilder()
	b.AddInput("in.mp4")

	first := b.Add("scale", "scaled", nil, Ref(0, Video))
	second := b.Add("pad", "padded", nil, first)
	third := b.Add("scale", "scaled", nil, second)
	fourth := b.Add("pad", "padded", nil, third)

	want := []string{"scaled", "padded", "scaled_1", "padded_1"}
	got := []string{first, second, third, fourth}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("labels = %v, want %v", got, want)
	}

	b.MapVideo(fourth)
	if _, err := b.Build(); err != nil {
		t.Fatalf("Build() error = %v", err)
	}
}

func TestBuildRejectsBadWiring(t *testing.T) {
	tests := []struct {
		name  string
		build func(b *Builder)
		want  string
	}{
		{
			name: "no inputs",
			build: func(b *Builder) {
			},
			want: "no inputs",
		},
		{
			name: "reference past attached inputs",
			build: func(b *Builder) {
				b.AddInput("in.mp4")
				b.Add("scale", "scaled", nil, Ref(1, Video))
			},
			want: "only 1 inputs",
		},
		{
			name: "label consumed before produced",
			build: func(b *Builder) {
				b.AddInput("in.mp4")
				b.Add("pad", "padded", nil, "scaled")
			},
			want: "before it is produced",
		},
		{
			name: "label consumed twice",
			build: func(b *Builder) {
				b.AddInput("in.mp4")
				s := b.Add("scale", "scaled", nil, Ref(0, Video))
				b.Add("pad", "a", nil, s)
				b.Add("pad", "b", nil, s)
			},
			want: "already has a consumer",
		},
		{
			name: "dangling label",
			build: func(b *Builder) {
				b.AddInput("in.mp4")
				b.Add("scale", "scaled", nil, Ref(0, Video))
			},
			want: "neither consumed nor mapped",
		},
		{
			name: "mapped output missing",
			build: func(b *Builder) {
				b.AddInput("in.mp4")
				b.Add("scale", "scaled", nil, Ref(0, Video))
				b.MapVideo("nowhere")
			},
			want: "not produced",
		},
		{
			name: "mapped output also consumed",
			build: func(b *Builder) {
				b.AddInput("in.mp4")
				s := b.Add("scale", "scaled", nil, Ref(0, Video))
				b.Add("pad", "padded", nil, s)
				b.MapVideo(s)
			},
			want: "also consumed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBuilder()
			tt.build(b)
			_, err := b.Build()
			if err == nil {
				t.Fatalf("Build() = nil, want error containing %q", tt.want)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Build() error = %q, want %q", err, tt.want)
			}
		})
	}
}

func TestExternalReferencesMayBeReused(t *testing.T) {
	b := NewBuilder()
	b.AddInput("in.mp4")
	a := b.Add("scale", "a", nil, Ref(0, Video))
	c := b.Add("scale", "b", nil, Ref(0, Video))
	b.MapVideo(b.Add("hstack", "stacked", nil, a, c))
	b.MapAudio(Ref(0, Audio), true)
	if _, err := b.Build(); err != nil {
		t.Fatalf("Build() error = %v", err)
	}
}

func TestParseRef(t *testing.T) {
	idx, m, ok := ParseRef("12:a")
	if !ok || idx != 12 || m != Audio {
		t.Errorf("ParseRef(12:a) = %d, %q, %v", idx, m, ok)
	}
	for _, bad := range []string{"padded", "0:x", ":v", "0:v?"} {
		if _, _, ok := ParseRef(bad); ok {
			t.Errorf("ParseRef(%q) accepted", bad)
		}
	}
}

func TestString(t *testing.T) {
	b := NewBuilder()
	b.AddInput("in.mp4")
	b.AddInput("logo.png")
	logo := b.Add("scale", "scaled_logo", []Option{{"w", "iw*0.25"}, {"h", "ih*0.25"}}, Ref(1, Video))
	out := b.Add("overlay", "output", []Option{{"x", "(W-w)/2"}, {"enable", "between(t,2,5)"}}, Ref(0, Video), logo)
	b.MapVideo(out)
	b.MapAudio(Ref(0, Audio), true)

	g, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}

	want := "[1:v]scale=w=iw*0.25:h=ih*0.25[scaled_logo];" +
		"[0:v][scaled_logo]overlay=x=(W-w)/2:enable='between(t,2,5)'[output]"
	if got := g.String(); got != want {
		t.Errorf("String() =\n%s\nwant\n%s", got, want)
	}
	if got := g.Maps(); !reflect.DeepEqual(got, []string{"[output]", "0:a?"}) {
		t.Errorf("Maps() = %v", got)
	}
}

func TestFormatValueQuotesText(t *testing.T) {
	got := FormatOptions([]Option{{"text", "It's: here"}, {"fontsize", 70}, {"y", 370.5}})
	want := `text='It'\''s: here':fontsize=70:y=370.5`
	if got != want {
		t.Errorf("FormatOptions() = %s, want %s", got, want)
	}
}
