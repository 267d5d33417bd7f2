// internal/marker/compiler.go

// Package marker compiles prepared photos into the binary target descriptor
// the browser runtime tracks against. Compilation is deterministic: the same
// image bytes and parameters always produce byte-identical output, which is
// what makes the content-addressed cache sound.
package marker

import (
	"fmt"
	"image"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/photobooksgallery/ar-compiler/internal/arerr"
)

// FormatVersion identifies the artifact layout and the extraction pipeline.
// Any change to detection, descriptors, or serialization bumps it, which
// also invalidates every cache entry.
const FormatVersion = 3

// Params tune feature extraction. The zero value is not usable; start from
// DefaultParams.
type Params struct {
	// Threshold is the minimum center-to-ring contrast for the segment test.
	Threshold int
	// SegmentLength is the contiguous arc length required on the 16-pixel ring.
	SegmentLength int
	// MaxPerLevel caps feature points kept on each pyramid level.
	MaxPerLevel int
	// MinFeatures is the viability floor for a whole target across levels.
	MinFeatures int
	// MinLevelSize stops the pyramid when either edge would drop below it.
	MinLevelSize int
	// MaxLevels bounds pyramid depth.
	MaxLevels int
}

// DefaultParams match the tracking runtime's expectations for printed
// photo markers.
func DefaultParams() Params {
	return Params{
		Threshold:     20,
		SegmentLength: 9,
		MaxPerLevel:   200,
		MinFeatures:   40,
		MinLevelSize:  64,
		MaxLevels:     5,
	}
}

// Fingerprint is folded into cache keys so parameter changes miss cleanly.
func (p Params) Fingerprint() string {
	return fmt.Sprintf("v%d:t%d:s%d:m%d:f%d:l%d:d%d",
		FormatVersion, p.Threshold, p.SegmentLength, p.MaxPerLevel, p.MinFeatures, p.MinLevelSize, p.MaxLevels)
}

// Point is one feature point in level-local pixel coordinates.
type Point struct {
	X     int `msgpack:"x"`
	Y     int `msgpack:"y"`
	Score int `msgpack:"s"`
}

// Level holds the features of one pyramid scale.
type Level struct {
	Scale       float64 `msgpack:"scale"`
	Width       int     `msgpack:"w"`
	Height      int     `msgpack:"h"`
	Points      []Point `msgpack:"pts"`
	Descriptors []byte  `msgpack:"desc"` // len(Points) * DescriptorBytes, packed in point order
}

// Target is one independently trackable image.
type Target struct {
	Index  int     `msgpack:"i"`
	Width  int     `msgpack:"w"`
	Height int     `msgpack:"h"`
	Levels []Level `msgpack:"levels"`
}

// FeatureCount totals feature points across levels.
func (t *Target) FeatureCount() int {
	n := 0
	for _, l := range t.Levels {
		n += len(l.Points)
	}
	return n
}

// TargetSet is the compiled artifact: one or more targets in a single
// binary, so the runtime can switch between photos without reloading.
type TargetSet struct {
	Version int      `msgpack:"version"`
	Params  string   `msgpack:"params"`
	Targets []Target `msgpack:"targets"`
}

// MultiTarget reports whether more than one photo is trackable.
func (ts *TargetSet) MultiTarget() bool { return len(ts.Targets) > 1 }

// Compiler runs feature extraction with fixed parameters.
type Compiler struct {
	params Params
}

func NewCompiler(params Params) *Compiler {
	return &Compiler{params: params}
}

func (c *Compiler) Params() Params { return c.params }

// Compile extracts features from every input independently and assembles the
// target set. Inputs are the prepared compile images in target order.
func (c *Compiler) Compile(images []*image.NRGBA) (ts *TargetSet, err error) {
	// The extractor is pure array math, but a malformed raster would panic
	// deep inside it. Surface that as a crash, which the queue retries.
	defer func() {
		if r := recover(); r != nil {
			ts = nil
			err = arerr.Newf(arerr.CompilerCrash, "feature extraction panic: %v", r)
		}
	}()

	if len(images) == 0 {
		return nil, arerr.Newf(arerr.CompilerCrash, "no images to compile")
	}

	ts = &TargetSet{Version: FormatVersion, Params: c.params.Fingerprint()}
	for i, img := range images {
		target, err := c.compileTarget(i, toGray(img))
		if err != nil {
			return nil, err
		}
		ts.Targets = append(ts.Targets, target)
	}
	return ts, nil
}

func (c *Compiler) compileTarget(index int, img *grayImage) (Target, error) {
	target := Target{Index: index, Width: img.w, Height: img.h}

	level := img
	scale := 1.0
	margin := patchRadius + 3 // descriptor patch plus detector ring
	for li := 0; li < c.params.MaxLevels; li++ {
		if level.w < c.params.MinLevelSize || level.h < c.params.MinLevelSize {
			break
		}

		points := detectCorners(level, c.params.Threshold, c.params.SegmentLength, margin)
		points = selectStrongest(points, c.params.MaxPerLevel)

		descriptors := make([]byte, 0, len(points)*DescriptorBytes)
		out := make([]Point, 0, len(points))
		for _, p := range points {
			d := describe(level, p.X, p.Y)
			descriptors = append(descriptors, d[:]...)
			out = append(out, Point{X: p.X, Y: p.Y, Score: p.Score})
		}

		target.Levels = append(target.Levels, Level{
			Scale:       scale,
			Width:       level.w,
			Height:      level.h,
			Points:      out,
			Descriptors: descriptors,
		})

		level = halve(level)
		scale /= 2
	}

	if target.FeatureCount() < c.params.MinFeatures {
		return Target{}, arerr.Newf(arerr.InsufficientFeatures,
			"target %d: %d feature points, need at least %d (photo not suitable for AR tracking)",
			index, target.FeatureCount(), c.params.MinFeatures)
	}
	return target, nil
}

// Encode serializes the target set. msgpack struct encoding writes fields in
// declaration order, so equal sets encode to equal bytes.
func (ts *TargetSet) Encode() ([]byte, error) {
	data, err := msgpack.Marshal(ts)
	if err != nil {
		return nil, arerr.Newf(arerr.CompilerCrash, "encode target set: %w", err)
	}
	return data, nil
}

// Decode parses a compiled artifact.
func Decode(data []byte) (*TargetSet, error) {
	var ts TargetSet
	if err := msgpack.Unmarshal(data, &ts); err != nil {
		return nil, fmt.Errorf("decode target set: %w", err)
	}
	return &ts, nil
}
