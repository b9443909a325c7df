package image

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

// pngDataURI builds a valid data URI holding a small solid-color PNG.
func pngDataURI(t *testing.T, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

func newProcessor(t *testing.T) *Processor {
	t.Helper()
	p, err := NewProcessor(filepath.Join(t.TempDir(), "uploads"))
	if err != nil {
		t.Fatalf("NewProcessor: %v", err)
	}
	return p
}

func TestAdmit_StoresDerivedPNG(t *testing.T) {
	p := newProcessor(t)

	name, err := p.Admit(pngDataURI(t, 10, 20))
	if err != nil {
		t.Fatalf("Admit: %v", err)
	}
	if filepath.Ext(name) != ".png" {
		t.Errorf("name: got %q, want .png extension", name)
	}

	f, err := os.Open(filepath.Join(p.Dir(), name))
	if err != nil {
		t.Fatalf("open derived image: %v", err)
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("decode derived image: %v", err)
	}
	b := img.Bounds()
	if b.Dx() != 400 || b.Dy() != 400 {
		t.Errorf("derived size: got %dx%d, want 400x400", b.Dx(), b.Dy())
	}
}

func TestAdmit_UniqueNames(t *testing.T) {
	p := newProcessor(t)
	uri := pngDataURI(t, 4, 4)

	a, err := p.Admit(uri)
	if err != nil {
		t.Fatalf("Admit: %v", err)
	}
	b, err := p.Admit(uri)
	if err != nil {
		t.Fatalf("Admit: %v", err)
	}
	if a == b {
		t.Errorf("Admit assigned the same name twice: %q", a)
	}
}

func TestAdmit_RejectsUnacceptedTag(t *testing.T) {
	p := newProcessor(t)
	_, err := p.Admit("data:image/svg+xml;base64,PHN2Zz48L3N2Zz4=")
	if !errors.Is(err, ErrBadFormat) {
		t.Fatalf("Admit: got %v, want ErrBadFormat", err)
	}
}

func TestAdmit_RejectsNonDataURI(t *testing.T) {
	p := newProcessor(t)
	_, err := p.Admit("https://example.com/cat.png")
	if !errors.Is(err, ErrBadFormat) {
		t.Fatalf("Admit: got %v, want ErrBadFormat", err)
	}
}

func TestAdmit_RejectsBadBase64(t *testing.T) {
	p := newProcessor(t)
	_, err := p.Admit("data:image/png;base64,!!!not-base64!!!")
	if !errors.Is(err, ErrBadFormat) {
		t.Fatalf("Admit: got %v, want ErrBadFormat", err)
	}
}

func TestAdmit_RejectsUndecodableContent(t *testing.T) {
	p := newProcessor(t)
	payload := "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("not a png"))
	_, err := p.Admit(payload)
	if !errors.Is(err, ErrBadFormat) {
		t.Fatalf("Admit: got %v, want ErrBadFormat", err)
	}
}

func TestAdmit_NothingStoredOnRejection(t *testing.T) {
	p := newProcessor(t)
	p.Admit("data:image/tiff;base64,AAAA") //nolint:errcheck

	entries, err := os.ReadDir(p.Dir())
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("uploads dir: got %d files after rejection, want 0", len(entries))
	}
}
