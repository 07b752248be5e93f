package videoprocessor

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/ZacxDev/video-composer/internal/config"
	"github.com/ZacxDev/video-composer/pkg/types"
)

func TestGetSupportedPresets(t *testing.T) {
	if got := GetSupportedPresets(); !reflect.DeepEqual(got, []string{"square", "wide"}) {
		t.Errorf("presets = %v", got)
	}
}

func TestPresets(t *testing.T) {
	infos := Presets()
	if len(infos) != 2 {
		t.Fatalf("presets = %+v", infos)
	}
	if infos[0].Name != "square" || !infos[0].UsesMask || infos[1].UsesMask {
		t.Errorf("presets = %+v", infos)
	}
}

func TestPlanCompilesCommands(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "a.mp4")
	if err := os.WriteFile(source, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg := config.Default()
	cfg.OutputDir = filepath.Join(dir, "out")
	s := New(cfg, zerolog.Nop())

	req := &types.Request{
		Theme:  types.Theme{BackgroundColor: "black"},
		Preset: types.PresetWide,
		Clips: []types.ClipConfig{
			{SourcePath: source, EndTime: 2},
			{SourcePath: source, StartTime: 1, EndTime: 3},
		},
	}
	plans, err := s.Plan(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}

	var kinds []string
	for _, p := range plans {
		kinds = append(kinds, p.Kind)
		if !containsArg(p.Command, p.Output) {
			t.Errorf("%s command = %v", p.Name, p.Command)
		}
	}
	if !reflect.DeepEqual(kinds, []string{"clip", "clip", "concat"}) {
		t.Errorf("kinds = %v", kinds)
	}
	if !strings.Contains(plans[0].Graph, "scale") {
		t.Errorf("clip graph = %s", plans[0].Graph)
	}
}

func containsArg(args []string, want string) bool {
	for _, a := range args {
		if a == want {
			return true
		}
	}
	return false
}
