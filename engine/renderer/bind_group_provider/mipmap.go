package bind_group_provider

import (
	"image"

	"github.com/Carmen-Shannon/oxy-compute/common"
	"github.com/disintegration/imaging"
)

// GenerateMipChain fills tex.MipLevels with every level below the base, each a box-filtered
// half of the previous level down to 1x1. The base pixels are not copied.
//
// Parameters:
//   - tex: the base level, tightly packed RGBA8
//
// Returns:
//   - common.TextureStagingData: tex with MipLevels populated
func GenerateMipChain(tex common.TextureStagingData) common.TextureStagingData {
	levels := common.MipLevelCount(int(tex.Width), int(tex.Height))
	if levels <= 1 || !tex.Valid() {
		return tex
	}

	prev := &image.NRGBA{
		Pix:    tex.Pixels,
		Stride: int(tex.Width) * 4,
		Rect:   image.Rect(0, 0, int(tex.Width), int(tex.Height)),
	}
	tex.MipLevels = make([][]byte, 0, levels-1)
	for level := 1; level < levels; level++ {
		w, h := tex.MipLevelSize(level)
		next := imaging.Resize(prev, int(w), int(h), imaging.Box)
		tex.MipLevels = append(tex.MipLevels, next.Pix)
		prev = next
	}
	return tex
}
