package preset

import (
	"reflect"
	"testing"

	"github.com/ZacxDev/video-composer/internal/graph"
	"github.com/ZacxDev/video-composer/pkg/types"
)

func TestGet(t *testing.T) {
	tests := []struct {
		name     types.PresetName
		textY    int
		fontSize int
		mask     bool
	}{
		{types.PresetWide, 300, 50, false},
		{types.PresetSquare, 300, 70, true},
	}
	for _, tt := range tests {
		p, err := Get(tt.name)
		if err != nil {
			t.Fatalf("Get(%s) error = %v", tt.name, err)
		}
		if p.TextPositionY() != tt.textY || p.FontSize() != tt.fontSize || p.UsesMask() != tt.mask {
			t.Errorf("%s = {%d %d %v}, want {%d %d %v}", tt.name,
				p.TextPositionY(), p.FontSize(), p.UsesMask(), tt.textY, tt.fontSize, tt.mask)
		}
	}

	if _, err := Get("portrait"); err == nil {
		t.Error("Get(portrait) should fail")
	}
}

func TestNames(t *testing.T) {
	if got := Names(); !reflect.DeepEqual(got, []string{"square", "wide"}) {
		t.Errorf("Names() = %v", got)
	}
}

func TestCropOffsetStaysInFrame(t *testing.T) {
	sizes := [][2]int{{1920, 1080}, {1280, 720}, {1081, 1080}, {1080, 1080}, {720, 1280}}
	biases := []float64{0, 0.001, 0.25, 0.5, 0.75, 0.999, 1}

	for _, size := range sizes {
		w, h := size[0], size[1]
		for _, bias := range biases {
			off := CropOffset(w, h, bias)
			limit := w - h
			if limit < 0 {
				limit = 0
			}
			if off < 0 || off > limit {
				t.Errorf("CropOffset(%d, %d, %v) = %d, want within [0,%d]", w, h, bias, off, limit)
			}
		}
	}

	if got := CropOffset(1920, 1080, 0); got != 0 {
		t.Errorf("bias 0 offset = %d, want 0", got)
	}
	if got := CropOffset(1920, 1080, 1); got != 840 {
		t.Errorf("bias 1 offset = %d, want 840", got)
	}
	if got := CropOffset(1920, 1080, 0.5); got != 420 {
		t.Errorf("bias 0.5 offset = %d, want 420", got)
	}
}

func TestCropOffsetExpr(t *testing.T) {
	tests := map[float64]string{
		0:   "max(0,min(iw-ih,(iw-ih)*0))",
		0.6: "max(0,min(iw-ih,(iw-ih)*0.6))",
		1:   "max(0,min(iw-ih,(iw-ih)*1))",
		1.7: "max(0,min(iw-ih,(iw-ih)*1))",
		-2:  "max(0,min(iw-ih,(iw-ih)*0))",
	}
	for bias, want := range tests {
		if got := CropOffsetExpr(bias); got != want {
			t.Errorf("CropOffsetExpr(%v) = %s, want %s", bias, got, want)
		}
	}
}

func TestWideGeometry(t *testing.T) {
	b := graph.NewBuilder()
	b.AddInput("clip.mp4")
	p, _ := Get(types.PresetWide)

	out := p.Geometry(b, graph.Ref(0, graph.Video), types.ClipConfig{}, "#202020")
	b.MapVideo(out)
	g, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}

	if out != "padded" {
		t.Errorf("output label = %q, want padded", out)
	}
	if len(g.Nodes) != 2 || g.Nodes[0].Operation != "scale" || g.Nodes[1].Operation != "pad" {
		t.Fatalf("nodes = %+v", g.Nodes)
	}
	if color, _ := g.Nodes[1].Option("color"); color != "#202020" {
		t.Errorf("pad color = %v", color)
	}
}

func TestSquareGeometry(t *testing.T) {
	b := graph.NewBuilder()
	b.AddInput("clip.mp4")
	p, _ := Get(types.PresetSquare)

	out := p.Geometry(b, graph.Ref(0, graph.Video), types.ClipConfig{HorizontalBiasFraction: 0.6}, "black")
	b.MapVideo(out)
	g, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}

	var ops []string
	for _, n := range g.Nodes {
		ops = append(ops, n.Operation)
	}
	want := []string{"crop", "scale", "pad", "scale", "pad"}
	if !reflect.DeepEqual(ops, want) {
		t.Errorf("operations = %v, want %v", ops, want)
	}
	if x, _ := g.Nodes[0].Option("x"); x != "max(0,min(iw-ih,(iw-ih)*0.6))" {
		t.Errorf("crop x = %v", x)
	}
	if w, _ := g.Nodes[2].Option("w"); w != 400 {
		t.Errorf("card width = %v, want 400", w)
	}
}
