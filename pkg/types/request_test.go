package types

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func validRequest() Request {
	return Request{
		Theme:  Theme{BackgroundColor: "black"},
		Preset: PresetWide,
		Clips: []ClipConfig{
			{SourcePath: "a.mp4", StartTime: 0, EndTime: 5},
		},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(r *Request)
		wantErr string
	}{
		{"valid", func(r *Request) {}, ""},
		{"no background", func(r *Request) { r.Theme.BackgroundColor = "" }, "theme"},
		{"no preset", func(r *Request) { r.Preset = "" }, "preset"},
		{"no clips", func(r *Request) { r.Clips = nil }, "clip"},
		{"no source", func(r *Request) { r.Clips[0].SourcePath = "" }, "clip 0: must have either videoPath or imagePath"},
		{"end equals start", func(r *Request) { r.Clips[0].EndTime = 0 }, "endTime"},
		{"end before start", func(r *Request) { r.Clips[0].StartTime = 6 }, "endTime"},
		{"bias out of range", func(r *Request) { r.Clips[0].HorizontalBiasFraction = 1.5 }, "hPercentage"},
		{"NaN start", func(r *Request) { r.Clips[0].StartTime = math.NaN() }, "finite"},
		{"NaN end", func(r *Request) { r.Clips[0].EndTime = math.NaN() }, "finite"},
		{"infinite end", func(r *Request) { r.Clips[0].EndTime = math.Inf(1) }, "finite"},
		{"NaN bias", func(r *Request) { r.Clips[0].HorizontalBiasFraction = math.NaN() }, "finite"},
		{"image overlay NaN end", func(r *Request) {
			r.ImageOverlays = []ImageOverlayConfig{{ImagePath: "i.png", StartTime: 1, EndTime: math.NaN(), X: "1", Y: "1"}}
		}, "imageConfig[0] must have finite"},
		{"audio overlay NaN insert", func(r *Request) {
			r.AudioOverlays = []AudioOverlayConfig{{AudioPath: "a.mp3", AudioEndTime: 1, VideoInsertTime: math.NaN()}}
		}, "audioConfig[0]: audioStartTime, audioEndTime and videoInsertTime must be finite"},
		{"image overlay missing xy", func(r *Request) {
			r.ImageOverlays = []ImageOverlayConfig{{ImagePath: "i.png", StartTime: 1, EndTime: 2}}
		}, "imageConfig[0] must have x and y"},
		{"image overlay missing path", func(r *Request) {
			r.ImageOverlays = []ImageOverlayConfig{{StartTime: 1, EndTime: 2, X: "1", Y: "1"}}
		}, "imageConfig[0] must have imagePath"},
		{"audio overlay inverted window", func(r *Request) {
			r.AudioOverlays = []AudioOverlayConfig{{AudioPath: "a.mp3", AudioStartTime: 4, AudioEndTime: 1}}
		}, "audioConfig[0]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(&req)
			err := req.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() = nil, want error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %q, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestClipSourceAliases(t *testing.T) {
	if got := (ClipConfig{VideoPath: "v.mp4"}).Source(); got != "v.mp4" {
		t.Errorf("Source() = %q, want v.mp4", got)
	}
	if got := (ClipConfig{ImagePath: "i.png"}).Source(); got != "i.png" {
		t.Errorf("Source() = %q, want i.png", got)
	}
	if got := (ClipConfig{SourcePath: "s.mp4", VideoPath: "v.mp4"}).Source(); got != "s.mp4" {
		t.Errorf("Source() = %q, want s.mp4", got)
	}
}

func TestExprDecodesNumbersAndStrings(t *testing.T) {
	var overlay ImageOverlayConfig
	body := `{"imagePath":"i.png","startTime":2,"endTime":5,"x":100,"y":"H-h-20"}`
	if err := json.Unmarshal([]byte(body), &overlay); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if overlay.X != "100" {
		t.Errorf("X = %q, want 100", overlay.X)
	}
	if overlay.Y != "H-h-20" {
		t.Errorf("Y = %q, want H-h-20", overlay.Y)
	}
}

func TestLoadRequestYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "request.yaml")
	data := []byte(`
theme:
  backgroundColor: "#101010"
  maskPath: masks/black.png
preset: square
clipConfig:
  - videoPath: clip.mp4
    startTime: 5
    endTime: 15
    tagline: 'First line\nSecond line'
    hPercentage: 0.5
imageConfig:
  - imagePath: sticker.png
    startTime: 2
    endTime: 5
    x: 100
    y: 100
`)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	req, err := LoadRequest(path)
	if err != nil {
		t.Fatalf("LoadRequest() error = %v", err)
	}
	if req.Preset != PresetSquare {
		t.Errorf("Preset = %q", req.Preset)
	}
	if len(req.Clips) != 1 || req.Clips[0].Source() != "clip.mp4" {
		t.Fatalf("Clips = %+v", req.Clips)
	}
	if req.Clips[0].Tagline != `First line\nSecond line` {
		t.Errorf("Tagline = %q", req.Clips[0].Tagline)
	}
	if req.ImageOverlays[0].X != "100" {
		t.Errorf("X = %q", req.ImageOverlays[0].X)
	}
	if err := req.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestLoadRequestRejectsNaNTimes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "request.yaml")
	data := []byte(`
theme:
  backgroundColor: black
preset: wide
clipConfig:
  - videoPath: clip.mp4
    startTime: .nan
    endTime: 5
`)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	req, err := LoadRequest(path)
	if err != nil {
		t.Fatalf("LoadRequest() error = %v", err)
	}
	if err := req.Validate(); err == nil || !strings.Contains(err.Error(), "finite") {
		t.Errorf("Validate() = %v, want a finite-number error", err)
	}
}
