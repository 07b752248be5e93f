package types

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Expr is an overlay coordinate: a pixel count or an ffmpeg expression such
// as "W-w-20". Numbers and strings are both accepted when decoding.
type Expr string

func (e *Expr) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*e = Expr(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("coordinate must be a number or an expression: %s", data)
	}
	*e = Expr(n.String())
	return nil
}

func (e *Expr) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: coordinate must be a scalar", node.Line)
	}
	*e = Expr(node.Value)
	return nil
}

func (e Expr) String() string {
	return string(e)
}

// LoadRequest reads a composition request from a YAML or JSON file.
func LoadRequest(path string) (*Request, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read request")
	}

	req := &Request{}
	if err := yaml.Unmarshal(data, req); err != nil {
		return nil, errors.Wrapf(err, "failed to parse request %s", path)
	}
	return req, nil
}

// Validate checks that every required field is present and well formed.
// It does not touch the filesystem.
func (r *Request) Validate() error {
	if r.Theme.BackgroundColor == "" {
		return errors.New("Invalid theme configuration: backgroundColor is required")
	}
	if r.Preset == "" {
		return errors.New("Invalid preset configuration")
	}
	if len(r.Clips) == 0 {
		return errors.New("Invalid clip configuration: at least one clip is required")
	}

	for i, clip := range r.Clips {
		if err := clip.Validate(); err != nil {
			return errors.Wrapf(err, "clip %d", i)
		}
	}

	for i, overlay := range r.ImageOverlays {
		if overlay.ImagePath == "" {
			return fmt.Errorf("imageConfig[%d] must have imagePath", i)
		}
		if !finite(overlay.StartTime, overlay.EndTime) {
			return fmt.Errorf("imageConfig[%d] must have finite startTime and endTime", i)
		}
		if overlay.EndTime <= overlay.StartTime {
			return fmt.Errorf("imageConfig[%d] must have endTime after startTime", i)
		}
		if overlay.X == "" || overlay.Y == "" {
			return fmt.Errorf("imageConfig[%d] must have x and y coordinates", i)
		}
	}

	for i, overlay := range r.AudioOverlays {
		if err := overlay.Validate(); err != nil {
			return errors.Wrapf(err, "audioConfig[%d]", i)
		}
	}

	return nil
}

// Validate checks the clip's own fields.
func (c ClipConfig) Validate() error {
	if c.Source() == "" {
		return errors.New("must have either videoPath or imagePath")
	}
	if !finite(c.StartTime, c.EndTime, c.HorizontalBiasFraction) {
		return errors.New("startTime, endTime and hPercentage must be finite numbers")
	}
	if c.StartTime < 0 {
		return fmt.Errorf("startTime %.3f must not be negative", c.StartTime)
	}
	if c.EndTime <= c.StartTime {
		return fmt.Errorf("endTime %.3f must be after startTime %.3f", c.EndTime, c.StartTime)
	}
	if c.HorizontalBiasFraction < 0 || c.HorizontalBiasFraction > 1 {
		return fmt.Errorf("hPercentage %.3f must be within [0,1]", c.HorizontalBiasFraction)
	}
	return nil
}

// Validate checks the audio insert's own fields.
func (a AudioOverlayConfig) Validate() error {
	if a.AudioPath == "" {
		return errors.New("must have audioPath")
	}
	if !finite(a.AudioStartTime, a.AudioEndTime, a.VideoInsertTime) {
		return errors.New("audioStartTime, audioEndTime and videoInsertTime must be finite numbers")
	}
	if a.AudioStartTime < 0 || a.AudioEndTime <= a.AudioStartTime {
		return fmt.Errorf("must have audioEndTime after audioStartTime (got %.3f..%.3f)",
			a.AudioStartTime, a.AudioEndTime)
	}
	if a.VideoInsertTime < 0 {
		return errors.New("must have a non-negative videoInsertTime")
	}
	return nil
}

// finite reports whether no value is NaN or infinite. NaN fails every
// ordered comparison, so range checks alone let it through.
func finite(vals ...float64) bool {
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
