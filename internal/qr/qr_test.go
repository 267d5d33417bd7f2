package qr

import (
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/photobooksgallery/ar-compiler/internal/arerr"
)

func TestGenerateWritesPNG(t *testing.T) {
	out := filepath.Join(t.TempDir(), "qr-code.png")

	if err := Generate("https://photobooksgallery.am/ar/view/abc123", out); err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}

	f, err := os.Open(out)
	if err != nil {
		t.Fatalf("qr file not created: %v", err)
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("qr file is not a valid PNG: %v", err)
	}
	if b := img.Bounds(); b.Dx() != Size || b.Dy() != Size {
		t.Fatalf("qr image %dx%d, want %dx%d", b.Dx(), b.Dy(), Size, Size)
	}
}

func TestGenerateEmptyURL(t *testing.T) {
	err := Generate("", filepath.Join(t.TempDir(), "qr-code.png"))
	if err == nil {
		t.Fatal("expected error for empty url")
	}
	if arerr.KindOf(err) != arerr.QrEncode {
		t.Fatalf("unexpected error kind: %v", arerr.KindOf(err))
	}
}

func TestGenerateUnwritablePath(t *testing.T) {
	err := Generate("https://example.com/x", filepath.Join(t.TempDir(), "missing-dir", "qr.png"))
	if err == nil {
		t.Fatal("expected error for unwritable output path")
	}
}
