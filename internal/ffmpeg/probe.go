package ffmpeg

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// Metadata describes a probed media file.
type Metadata struct {
	Duration float64
	Width    int
	Height   int
	Codec    string
	HasAudio bool
}

type probeStream struct {
	CodecType  string `json:"codec_type"`
	CodecName  string `json:"codec_name"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	Duration   string `json:"duration"`
	NbFrames   string `json:"nb_frames"`
	RFrameRate string `json:"r_frame_rate"`
}

type probeOutput struct {
	Streams []probeStream `json:"streams"`
	Format  struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Probe retrieves metadata about a media file
func (p *Processor) Probe(ctx context.Context, path string) (*Metadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out, err := ffmpeg.Probe(path)
	if err != nil {
		return nil, errors.Wrapf(err, "error probing %s", path)
	}
	return parseProbe([]byte(out))
}

func parseProbe(data []byte) (*Metadata, error) {
	var probe probeOutput
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, errors.WithStack(err)
	}
	if len(probe.Streams) == 0 {
		return nil, errors.New("no streams found")
	}

	meta := &Metadata{}
	var video *probeStream
	for i := range probe.Streams {
		s := &probe.Streams[i]
		switch s.CodecType {
		case "video":
			if video == nil {
				video = s
			}
		case "audio":
			meta.HasAudio = true
		}
	}

	if video != nil {
		meta.Width = video.Width
		meta.Height = video.Height
		meta.Codec = video.CodecName
		meta.Duration = parseSeconds(video.Duration)
	}

	// Fall back to the container duration, then to frames / frame rate.
	if meta.Duration == 0 {
		meta.Duration = parseSeconds(probe.Format.Duration)
	}
	if meta.Duration == 0 && video != nil {
		frames := parseSeconds(video.NbFrames)
		if rate := parseRate(video.RFrameRate); frames > 0 && rate > 0 {
			meta.Duration = frames / rate
		}
	}

	return meta, nil
}

func parseSeconds(s string) float64 {
	d, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return d
}

func parseRate(s string) float64 {
	nums := strings.Split(s, "/")
	if len(nums) != 2 {
		return 0
	}
	num, err1 := strconv.ParseFloat(nums[0], 64)
	den, err2 := strconv.ParseFloat(nums[1], 64)
	if err1 != nil || err2 != nil || den == 0 {
		return 0
	}
	return num / den
}
