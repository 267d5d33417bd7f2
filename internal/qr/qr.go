// internal/qr/qr.go

// Package qr writes the share code for a compiled AR experience.
package qr

import (
	"os"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/photobooksgallery/ar-compiler/internal/arerr"
)

// Size is the QR image edge in pixels, sized for print on order inserts.
const Size = 512

// Generate encodes viewerURL into a PNG at outputPath.
func Generate(viewerURL, outputPath string) error {
	if viewerURL == "" {
		return arerr.Newf(arerr.QrEncode, "empty viewer url")
	}

	code, err := qrcode.New(viewerURL, qrcode.Medium)
	if err != nil {
		return arerr.Newf(arerr.QrEncode, "encode %q: %w", viewerURL, err)
	}
	code.DisableBorder = false

	png, err := code.PNG(Size)
	if err != nil {
		return arerr.Newf(arerr.QrEncode, "render %q: %w", viewerURL, err)
	}
	if err := os.WriteFile(outputPath, png, 0o644); err != nil {
		return arerr.Newf(arerr.QrEncode, "write %s: %w", outputPath, err)
	}
	return nil
}
