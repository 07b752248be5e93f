package ffmpeg

import (
	"runtime"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// OutputOptions are the output-side settings of one engine invocation.
// Zero values are left out of the command line.
type OutputOptions struct {
	VideoCodec   string
	AudioCodec   string
	Preset       string
	CRF          int
	PixelFormat  string
	FrameRate    int
	AudioBitrate string
	MovFlags     string

	// Duration caps the output length (-t) when > 0.
	Duration float64
}

// Profile names the encoding settings used by each stage kind.
type Profile string

const (
	ProfileClip    Profile = "clip"
	ProfileImage   Profile = "image"
	ProfileConcat  Profile = "concat"
	ProfileOverlay Profile = "overlay"
	ProfileAudio   Profile = "audio"
)

var profiles = map[Profile]OutputOptions{
	ProfileClip: {
		VideoCodec:   "libx264",
		AudioCodec:   "aac",
		Preset:       "medium",
		CRF:          23,
		PixelFormat:  "yuv420p",
		FrameRate:    30,
		AudioBitrate: "128k",
		MovFlags:     "+faststart",
	},
	ProfileImage: {
		VideoCodec:   "libx264",
		AudioCodec:   "aac",
		Preset:       "medium",
		CRF:          23,
		PixelFormat:  "yuv420p",
		FrameRate:    30,
		AudioBitrate: "128k",
	},
	ProfileConcat: {
		VideoCodec:   "libx264",
		AudioCodec:   "aac",
		Preset:       "medium",
		CRF:          23,
		PixelFormat:  "yuv420p",
		AudioBitrate: "128k",
		MovFlags:     "+faststart",
	},
	ProfileOverlay: {
		VideoCodec:   "libx264",
		AudioCodec:   "copy",
		Preset:       "medium",
		CRF:          23,
		PixelFormat:  "yuv420p",
		MovFlags:     "+faststart",
	},
	ProfileAudio: {
		VideoCodec:   "copy",
		AudioCodec:   "aac",
		AudioBitrate: "192k",
		MovFlags:     "+faststart",
	},
}

// GetProfile returns the output options for a stage kind, falling back to
// the clip profile for unknown names.
func GetProfile(name Profile) OutputOptions {
	if opts, ok := profiles[name]; ok {
		return opts
	}
	return profiles[ProfileClip]
}

// KwArgs converts the options into ffmpeg-go output arguments.
func (o OutputOptions) KwArgs(threads int) ffmpeg.KwArgs {
	kw := ffmpeg.KwArgs{}
	if o.VideoCodec != "" {
		kw["c:v"] = o.VideoCodec
	}
	if o.AudioCodec != "" {
		kw["c:a"] = o.AudioCodec
	}
	if o.Preset != "" && o.VideoCodec != "copy" {
		kw["preset"] = o.Preset
	}
	if o.CRF > 0 && o.VideoCodec != "copy" {
		kw["crf"] = o.CRF
	}
	if o.PixelFormat != "" && o.VideoCodec != "copy" {
		kw["pix_fmt"] = o.PixelFormat
	}
	if o.FrameRate > 0 {
		kw["r"] = o.FrameRate
	}
	if o.AudioBitrate != "" && o.AudioCodec != "copy" {
		kw["b:a"] = o.AudioBitrate
	}
	if o.MovFlags != "" {
		kw["movflags"] = o.MovFlags
	}
	if o.Duration > 0 {
		kw["t"] = o.Duration
	}
	if threads > 0 {
		kw["threads"] = threads
	}
	return kw
}

// GetOptimalThreadCount leaves one core free on larger machines.
func GetOptimalThreadCount() int {
	numCPU := runtime.NumCPU()
	if numCPU > 4 {
		return numCPU - 1
	}
	return numCPU
}
