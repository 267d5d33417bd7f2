// internal/video/align.go

// Package video reconciles an uploaded video with its photo marker: a pure
// crop/resize plan plus an ffmpeg transcode that executes it.
package video

import "math"

// MaxDimension caps the aligned video's long edge. Matches the photo
// preparation ceiling so the overlay never outresolves its marker.
const MaxDimension = 1920

// arTolerance is the aspect-ratio difference below which no crop happens.
const arTolerance = 0.05

// CropRect is an ffmpeg-style crop region: W×H at offset (X, Y).
type CropRect struct {
	W, H, X, Y int
}

// Plan describes the full alignment: optional center crop, then resize.
type Plan struct {
	SrcWidth  int
	SrcHeight int
	Crop      *CropRect // nil when aspect ratios already match
	OutWidth  int
	OutHeight int
}

// ComputePlan aligns a srcW×srcH video with a targetW×targetH photo.
//
// The crop axis follows from the ratio comparison alone and always stays in
// bounds: a relatively wider video loses width (cropW = srcH·photoAR ≤ srcW),
// a relatively taller one loses height (cropH = srcW/photoAR ≤ srcH). The
// output is the photo's dimensions, scaled down proportionally when the long
// edge would exceed MaxDimension.
func ComputePlan(srcW, srcH, targetW, targetH int) Plan {
	plan := Plan{SrcWidth: srcW, SrcHeight: srcH}

	videoAR := float64(srcW) / float64(srcH)
	photoAR := float64(targetW) / float64(targetH)

	if math.Abs(videoAR-photoAR) > arTolerance {
		if videoAR > photoAR {
			cropW := int(math.Round(float64(srcH) * photoAR))
			plan.Crop = &CropRect{
				W: cropW,
				H: srcH,
				X: int(math.Round(float64(srcW-cropW) / 2)),
				Y: 0,
			}
		} else {
			cropH := int(math.Round(float64(srcW) / photoAR))
			plan.Crop = &CropRect{
				W: srcW,
				H: cropH,
				X: 0,
				Y: int(math.Round(float64(srcH-cropH) / 2)),
			}
		}
	}

	outW, outH := targetW, targetH
	if long := maxInt(targetW, targetH); long > MaxDimension {
		scale := float64(MaxDimension) / float64(long)
		outW = int(math.Round(float64(targetW) * scale))
		outH = int(math.Round(float64(targetH) * scale))
	}
	// Even dimensions keep libx264's yuv420p subsampling happy.
	plan.OutWidth = evenDown(outW)
	plan.OutHeight = evenDown(outH)

	return plan
}

func evenDown(v int) int {
	if v%2 == 1 {
		return v - 1
	}
	return v
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
