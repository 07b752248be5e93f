package processor

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// AssetRole is the part an external file plays in a composition. The role
// decides whether a missing file aborts the run or is skipped.
type AssetRole int

const (
	RoleClipSource AssetRole = iota
	RoleMask
	RoleLogo
	RoleOverlayImage
	RoleOverlayAudio
)

func (r AssetRole) String() string {
	switch r {
	case RoleClipSource:
		return "clip source"
	case RoleMask:
		return "mask"
	case RoleLogo:
		return "logo"
	case RoleOverlayImage:
		return "overlay image"
	case RoleOverlayAudio:
		return "overlay audio"
	default:
		return "asset"
	}
}

// Required reports whether a missing asset in this role is fatal.
func (r AssetRole) Required() bool {
	return r != RoleMask && r != RoleLogo
}

// Assets checks whether asset files exist.
type Assets struct {
	exists func(path string) bool
	logger zerolog.Logger
}

func NewAssets(logger zerolog.Logger) *Assets {
	return &Assets{exists: fileExists, logger: logger}
}

// Resolve reports whether path can be used for role. An empty path means the
// asset was not configured. A missing required asset is a
// KindMissingRequiredAsset error; a missing decorative asset is logged and
// skipped.
func (a *Assets) Resolve(stage string, role AssetRole, path string) (bool, error) {
	if path == "" {
		if role.Required() {
			return false, newError(KindMissingRequiredAsset, stage, errors.Errorf("%s path is empty", role))
		}
		return false, nil
	}
	if a.exists(path) {
		return true, nil
	}
	if role.Required() {
		return false, newError(KindMissingRequiredAsset, stage, errors.Errorf("%s not found: %s", role, path))
	}
	a.logger.Warn().Str("stage", stage).Str("path", path).Msgf("%s not found, skipping", role)
	return false, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".webp": true,
}

// IsImage reports whether path names a still image.
func IsImage(path string) bool {
	return imageExtensions[strings.ToLower(filepath.Ext(path))]
}
