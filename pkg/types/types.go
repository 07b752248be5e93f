package types

type PresetName string

const (
	PresetWide   PresetName = "wide"
	PresetSquare PresetName = "square"
)

// Theme carries the visual identity applied to every clip of a composition.
type Theme struct {
	BackgroundColor string `json:"backgroundColor" yaml:"backgroundColor"`
	FontName        string `json:"fontName,omitempty" yaml:"fontName,omitempty"`
	TextColor       string `json:"textColor,omitempty" yaml:"textColor,omitempty"`
	FontSize        int    `json:"fontSize,omitempty" yaml:"fontSize,omitempty"` // overrides the preset size when > 0
	LogoPath        string `json:"logoPath,omitempty" yaml:"logoPath,omitempty"`
	MaskPath        string `json:"maskPath,omitempty" yaml:"maskPath,omitempty"`
}

// ClipConfig describes one segment of the final video.
type ClipConfig struct {
	SourcePath             string  `json:"sourcePath,omitempty" yaml:"sourcePath,omitempty"`
	VideoPath              string  `json:"videoPath,omitempty" yaml:"videoPath,omitempty"`
	ImagePath              string  `json:"imagePath,omitempty" yaml:"imagePath,omitempty"`
	StartTime              float64 `json:"startTime" yaml:"startTime"`
	EndTime                float64 `json:"endTime" yaml:"endTime"`
	Tagline                string  `json:"tagline,omitempty" yaml:"tagline,omitempty"`
	HorizontalBiasFraction float64 `json:"hPercentage,omitempty" yaml:"hPercentage,omitempty"`
	Muted                  bool    `json:"muted,omitempty" yaml:"muted,omitempty"`
}

// Source returns the clip's media path, honouring the videoPath/imagePath
// aliases accepted on the wire.
func (c ClipConfig) Source() string {
	switch {
	case c.SourcePath != "":
		return c.SourcePath
	case c.VideoPath != "":
		return c.VideoPath
	default:
		return c.ImagePath
	}
}

// Duration is the trimmed length of the clip in seconds.
func (c ClipConfig) Duration() float64 {
	return c.EndTime - c.StartTime
}

// ImageOverlayConfig places a still image over the composed video for a time window.
type ImageOverlayConfig struct {
	ImagePath string  `json:"imagePath" yaml:"imagePath"`
	StartTime float64 `json:"startTime" yaml:"startTime"`
	EndTime   float64 `json:"endTime" yaml:"endTime"`
	X         Expr    `json:"x" yaml:"x"`
	Y         Expr    `json:"y" yaml:"y"`
}

// AudioOverlayConfig mixes a trimmed slice of an audio file into the video timeline.
type AudioOverlayConfig struct {
	AudioPath       string  `json:"audioPath" yaml:"audioPath"`
	AudioStartTime  float64 `json:"audioStartTime" yaml:"audioStartTime"`
	AudioEndTime    float64 `json:"audioEndTime" yaml:"audioEndTime"`
	VideoInsertTime float64 `json:"videoInsertTime" yaml:"videoInsertTime"`
}

// Request is a complete composition: one theme and preset applied to an
// ordered list of clips, plus optional overlays on the joined result.
type Request struct {
	Theme         Theme                `json:"theme" yaml:"theme"`
	Preset        PresetName           `json:"preset" yaml:"preset"`
	Clips         []ClipConfig         `json:"clipConfig" yaml:"clipConfig"`
	ImageOverlays []ImageOverlayConfig `json:"imageConfig,omitempty" yaml:"imageConfig,omitempty"`
	AudioOverlays []AudioOverlayConfig `json:"audioConfig,omitempty" yaml:"audioConfig,omitempty"`
}
