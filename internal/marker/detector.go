// internal/marker/detector.go
package marker

import "sort"

// featurePoint is one corner candidate on a pyramid level.
type featurePoint struct {
	X, Y  int
	Score int
}

// circleOffsets is the 16-point Bresenham circle of radius 3 used by the
// segment test, in clockwise order starting at 12 o'clock.
var circleOffsets = [16][2]int{
	{0, -3}, {1, -3}, {2, -2}, {3, -1},
	{3, 0}, {3, 1}, {2, 2}, {1, 3},
	{0, 3}, {-1, 3}, {-2, 2}, {-3, 1},
	{-3, 0}, {-3, -1}, {-2, -2}, {-1, -3},
}

// detectCorners runs a FAST-style segment test: a pixel is a corner when at
// least segLen contiguous circle pixels are all brighter or all darker than
// the center by threshold. Score is the total absolute contrast over the
// circle, which also drives non-max suppression.
func detectCorners(img *grayImage, threshold, segLen, margin int) []featurePoint {
	if img.w <= margin*2 || img.h <= margin*2 {
		return nil
	}

	scores := make([]int, img.w*img.h)
	for y := margin; y < img.h-margin; y++ {
		for x := margin; x < img.w-margin; x++ {
			if s := cornerScore(img, x, y, threshold, segLen); s > 0 {
				scores[y*img.w+x] = s
			}
		}
	}

	// 3x3 non-max suppression keeps the strongest corner of each cluster.
	var points []featurePoint
	for y := margin; y < img.h-margin; y++ {
		for x := margin; x < img.w-margin; x++ {
			s := scores[y*img.w+x]
			if s == 0 {
				continue
			}
			best := true
			for dy := -1; dy <= 1 && best; dy++ {
				for dx := -1; dx <= 1; dx++ {
					if dx == 0 && dy == 0 {
						continue
					}
					n := scores[(y+dy)*img.w+(x+dx)]
					if n > s || (n == s && (dy < 0 || (dy == 0 && dx < 0))) {
						best = false
						break
					}
				}
			}
			if best {
				points = append(points, featurePoint{X: x, Y: y, Score: s})
			}
		}
	}
	return points
}

func cornerScore(img *grayImage, x, y, threshold, segLen int) int {
	center := img.at(x, y)

	var brighter, darker [16]bool
	contrast := 0
	for i, off := range circleOffsets {
		v := img.at(x+off[0], y+off[1])
		d := v - center
		if d > threshold {
			brighter[i] = true
		} else if d < -threshold {
			darker[i] = true
		}
		if d < 0 {
			d = -d
		}
		contrast += d
	}

	if hasContiguousRun(brighter, segLen) || hasContiguousRun(darker, segLen) {
		return contrast
	}
	return 0
}

// hasContiguousRun checks for a run of at least n set flags on the circular
// 16-element ring.
func hasContiguousRun(flags [16]bool, n int) bool {
	run := 0
	// Walk twice around so runs crossing index 15->0 count.
	for i := 0; i < 32; i++ {
		if flags[i%16] {
			run++
			if run >= n {
				return true
			}
		} else {
			run = 0
		}
	}
	return false
}

// selectStrongest orders points by score descending (ties broken by raster
// position so output never depends on sort internals) and keeps at most max.
func selectStrongest(points []featurePoint, max int) []featurePoint {
	sort.Slice(points, func(i, j int) bool {
		if points[i].Score != points[j].Score {
			return points[i].Score > points[j].Score
		}
		if points[i].Y != points[j].Y {
			return points[i].Y < points[j].Y
		}
		return points[i].X < points[j].X
	})
	if len(points) > max {
		points = points[:max]
	}
	return points
}
