// internal/imageprep/prepare.go

// Package imageprep turns uploaded photos into marker-ready images: bounded
// resize, deterministic border enhancement, optional alpha-mask shaping, and
// the clean center crop handed to the marker compiler.
package imageprep

import (
	"bytes"
	"context"
	"image"
	"os"

	"github.com/disintegration/imaging"
	"golang.org/x/sync/errgroup"

	"github.com/photobooksgallery/ar-compiler/internal/arerr"
	"github.com/photobooksgallery/ar-compiler/pkg/schema"
)

// DefaultMaxDimension bounds the long edge of prepared photos. Phone uploads
// at 4-5k px compile 3-8x slower with no tracking benefit.
const DefaultMaxDimension = 1920

// Options control preparation for a whole job.
type Options struct {
	MaxDimension  int
	EnhanceBorder bool
	Shape         schema.ShapeType
	// Concurrency bounds parallel preparation of multi-target photo sets.
	Concurrency int
}

func (o Options) maxDimension() int {
	if o.MaxDimension > 0 {
		return o.MaxDimension
	}
	return DefaultMaxDimension
}

// PreparedImage is one photo after preparation.
type PreparedImage struct {
	Index int

	// CompileImage is the clean recognizable content for the marker
	// compiler: resized, border cropped back off, no mask.
	CompileImage *image.NRGBA

	// DisplayImage is the printable marker: CompileImage surrounded by the
	// enhancement border when enabled, otherwise identical content.
	DisplayImage *image.NRGBA

	// Mask and MaskedImage are set when the job requested shaping. Mask is
	// pure alpha at CompileImage dimensions; MaskedImage is CompileImage
	// with that alpha composited in.
	Mask        *image.NRGBA
	MaskedImage *image.NRGBA

	Width    int // CompileImage width
	Height   int // CompileImage height
	BorderPx int
	Seed     uint32
}

// AspectRatio of the compile image.
func (p *PreparedImage) AspectRatio() float64 {
	return float64(p.Width) / float64(p.Height)
}

// CanonicalBytes serializes the compile image into a stable byte form
// (dimensions header + raw NRGBA rows). Cache keys hash this instead of an
// encoder's output so the key never shifts with encoder versions.
func (p *PreparedImage) CanonicalBytes() []byte {
	img := p.CompileImage
	w := img.Bounds().Dx()
	h := img.Bounds().Dy()

	buf := make([]byte, 0, 12+w*h*4)
	buf = append(buf, 'A', 'R', 'P', '1')
	buf = append(buf,
		byte(w>>24), byte(w>>16), byte(w>>8), byte(w),
		byte(h>>24), byte(h>>16), byte(h>>8), byte(h))
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+w*4]
		buf = append(buf, row...)
	}
	return buf
}

// Prepare processes a single photo. maskPath is consulted only when
// opts.Shape is "custom".
func Prepare(path string, maskPath string, opts Options) (*PreparedImage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, arerr.Newf(arerr.ImageDecode, "read photo %s: %w", path, err)
	}

	decoded, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, arerr.Newf(arerr.ImageDecode, "decode photo %s: %w", path, err)
	}

	photo := resizeIfNeeded(imaging.Clone(decoded), opts.maxDimension())
	seed := ContentSeed(data)

	prepared := &PreparedImage{
		CompileImage: photo,
		DisplayImage: photo,
		Width:        photo.Bounds().Dx(),
		Height:       photo.Bounds().Dy(),
		Seed:         seed,
	}

	if opts.EnhanceBorder {
		enhanced, border := enhanceBorder(photo, seed)
		prepared.DisplayImage = enhanced
		prepared.BorderPx = border
	}

	if opts.Shape != schema.ShapeNone {
		mask, err := buildMask(opts.Shape, maskPath, prepared.Width, prepared.Height)
		if err != nil {
			return nil, err
		}
		masked, err := ApplyMask(photo, mask)
		if err != nil {
			return nil, err
		}
		prepared.Mask = mask
		prepared.MaskedImage = masked
	}

	return prepared, nil
}

// PrepareAll prepares every photo of a (possibly multi-target) job. Output
// order matches input order regardless of completion order; the cache key
// depends on it.
func PrepareAll(ctx context.Context, photos []string, masks []string, opts Options) ([]*PreparedImage, error) {
	out := make([]*PreparedImage, len(photos))

	g, _ := errgroup.WithContext(ctx)
	limit := opts.Concurrency
	if limit <= 0 {
		limit = 2
	}
	g.SetLimit(limit)

	for i, path := range photos {
		maskPath := ""
		if i < len(masks) {
			maskPath = masks[i]
		}
		g.Go(func() error {
			p, err := Prepare(path, maskPath, opts)
			if err != nil {
				return err
			}
			p.Index = i
			out[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func buildMask(shape schema.ShapeType, maskPath string, w, h int) (*image.NRGBA, error) {
	if shape == schema.ShapeCustom {
		if maskPath == "" {
			return nil, arerr.Newf(arerr.MaskApply, "custom mask requested but no mask file supplied")
		}
		return LoadCustomMask(maskPath, w, h)
	}
	return BuildShapeMask(shape, w, h)
}

func resizeIfNeeded(photo *image.NRGBA, maxDim int) *image.NRGBA {
	w := photo.Bounds().Dx()
	h := photo.Bounds().Dy()
	if w <= maxDim && h <= maxDim {
		return photo
	}
	return imaging.Fit(photo, maxDim, maxDim, imaging.Lanczos)
}
