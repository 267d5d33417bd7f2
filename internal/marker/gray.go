// internal/marker/gray.go
package marker

import "image"

// grayImage is a plain luminance raster. All detection runs on integer
// luminance so output is bit-stable across platforms.
type grayImage struct {
	w, h int
	pix  []uint8
}

func (g *grayImage) at(x, y int) int {
	return int(g.pix[y*g.w+x])
}

// toGray converts NRGBA to luminance with the BT.601 integer weights.
func toGray(img *image.NRGBA) *grayImage {
	w := img.Bounds().Dx()
	h := img.Bounds().Dy()
	out := &grayImage{w: w, h: h, pix: make([]uint8, w*h)}
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride:]
		for x := 0; x < w; x++ {
			r := int(row[x*4])
			g := int(row[x*4+1])
			b := int(row[x*4+2])
			out.pix[y*w+x] = uint8((299*r + 587*g + 114*b) / 1000)
		}
	}
	return out
}

// halve box-downsamples by exactly 2. Odd trailing rows/columns are dropped;
// the scale chain stays a pure power of two.
func halve(src *grayImage) *grayImage {
	w := src.w / 2
	h := src.h / 2
	out := &grayImage{w: w, h: h, pix: make([]uint8, w*h)}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			sum := src.at(2*x, 2*y) + src.at(2*x+1, 2*y) + src.at(2*x, 2*y+1) + src.at(2*x+1, 2*y+1)
			out.pix[y*w+x] = uint8(sum / 4)
		}
	}
	return out
}

// smoothed returns the 5x5 box-filtered intensity at (x, y), clamping the
// window at image edges. Descriptor comparisons read smoothed values so one
// noisy pixel cannot flip a bit.
func (g *grayImage) smoothed(x, y int) int {
	sum := 0
	n := 0
	for dy := -2; dy <= 2; dy++ {
		yy := y + dy
		if yy < 0 || yy >= g.h {
			continue
		}
		for dx := -2; dx <= 2; dx++ {
			xx := x + dx
			if xx < 0 || xx >= g.w {
				continue
			}
			sum += g.at(xx, yy)
			n++
		}
	}
	return sum / n
}
