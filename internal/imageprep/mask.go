// internal/imageprep/mask.go
package imageprep

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"

	"github.com/photobooksgallery/ar-compiler/internal/arerr"
	"github.com/photobooksgallery/ar-compiler/pkg/schema"
)

// BuildShapeMask renders a w×h alpha mask for one of the built-in shapes.
// White (opaque) inside the shape, fully transparent outside.
func BuildShapeMask(shape schema.ShapeType, w, h int) (*image.NRGBA, error) {
	if w <= 0 || h <= 0 {
		return nil, arerr.Newf(arerr.MaskApply, "invalid mask dimensions %dx%d", w, h)
	}

	mask := imaging.New(w, h, color.NRGBA{0, 0, 0, 0})
	white := color.NRGBA{255, 255, 255, 255}

	switch shape {
	case schema.ShapeCircle:
		r := minInt(w, h) / 2
		fillEllipse(mask, w/2, h/2, r, r, white)
	case schema.ShapeOval:
		fillEllipse(mask, w/2, h/2, w/2, h/2, white)
	case schema.ShapeSquare:
		side := minInt(w, h)
		fillRect(mask, (w-side)/2, (h-side)/2, side, side, white)
	case schema.ShapeRect:
		// Rounded rectangle over the full frame, corner radius 10% of the
		// short edge (the storefront template proportions).
		radius := minInt(w, h) / 10
		fillRoundedRect(mask, 0, 0, w, h, radius, white)
	default:
		return nil, arerr.Newf(arerr.MaskApply, "unsupported mask shape %q", shape)
	}
	return mask, nil
}

// LoadCustomMask reads a user-supplied mask file and stretches it to exactly
// w×h. Nearest-neighbor keeps the mask edge crisp; shape fidelity wins over
// the mask source's own aspect ratio.
func LoadCustomMask(path string, w, h int) (*image.NRGBA, error) {
	if w <= 0 || h <= 0 {
		return nil, arerr.Newf(arerr.MaskApply, "invalid mask dimensions %dx%d", w, h)
	}
	src, err := imaging.Open(path)
	if err != nil {
		return nil, arerr.Newf(arerr.MaskApply, "open mask %s: %w", path, err)
	}
	stretched := imaging.Resize(src, w, h, imaging.NearestNeighbor)
	if stretched.Bounds().Dx() != w || stretched.Bounds().Dy() != h {
		return nil, arerr.Newf(arerr.MaskApply, "mask %s: cannot scale %dx%d to %dx%d",
			path, src.Bounds().Dx(), src.Bounds().Dy(), w, h)
	}
	return normalizeMask(stretched), nil
}

// normalizeMask converts an arbitrary mask image into pure alpha: pixels
// keep their own alpha when present, otherwise luminance acts as coverage
// (white = opaque, black = transparent).
func normalizeMask(src *image.NRGBA) *image.NRGBA {
	b := src.Bounds()
	out := imaging.New(b.Dx(), b.Dy(), color.NRGBA{0, 0, 0, 0})
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			px := src.NRGBAAt(b.Min.X+x, b.Min.Y+y)
			a := px.A
			if a == 255 {
				// Opaque source pixel: use luminance as coverage.
				a = uint8((299*int(px.R) + 587*int(px.G) + 114*int(px.B)) / 1000)
			}
			out.SetNRGBA(x, y, color.NRGBA{255, 255, 255, a})
		}
	}
	return out
}

// ApplyMask multiplies the photo's alpha channel by the mask coverage. The
// mask must already match the photo's pixel dimensions.
func ApplyMask(photo, mask *image.NRGBA) (*image.NRGBA, error) {
	pw, ph := photo.Bounds().Dx(), photo.Bounds().Dy()
	mw, mh := mask.Bounds().Dx(), mask.Bounds().Dy()
	if pw != mw || ph != mh {
		return nil, arerr.Newf(arerr.MaskApply, "mask %dx%d does not match photo %dx%d", mw, mh, pw, ph)
	}

	out := imaging.Clone(photo)
	for y := 0; y < ph; y++ {
		for x := 0; x < pw; x++ {
			px := out.NRGBAAt(x, y)
			ma := mask.NRGBAAt(x, y).A
			px.A = uint8(int(px.A) * int(ma) / 255)
			out.SetNRGBA(x, y, px)
		}
	}
	return out, nil
}

func fillEllipse(dst *image.NRGBA, cx, cy, rx, ry int, c color.NRGBA) {
	if rx <= 0 || ry <= 0 {
		return
	}
	b := dst.Bounds()
	rx2 := float64(rx) * float64(rx)
	ry2 := float64(ry) * float64(ry)
	for yy := cy - ry; yy <= cy+ry; yy++ {
		if yy < b.Min.Y || yy >= b.Max.Y {
			continue
		}
		dy := float64(yy - cy)
		for xx := cx - rx; xx <= cx+rx; xx++ {
			if xx < b.Min.X || xx >= b.Max.X {
				continue
			}
			dx := float64(xx - cx)
			if dx*dx/rx2+dy*dy/ry2 <= 1.0 {
				dst.SetNRGBA(xx, yy, c)
			}
		}
	}
}

func fillRoundedRect(dst *image.NRGBA, x, y, w, h, radius int, c color.NRGBA) {
	fillRect(dst, x+radius, y, w-radius*2, h, c)
	fillRect(dst, x, y+radius, w, h-radius*2, c)
	fillCircle(dst, x+radius, y+radius, radius, c)
	fillCircle(dst, x+w-radius-1, y+radius, radius, c)
	fillCircle(dst, x+radius, y+h-radius-1, radius, c)
	fillCircle(dst, x+w-radius-1, y+h-radius-1, radius, c)
}
