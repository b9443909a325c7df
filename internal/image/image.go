package image

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"regexp"

	"github.com/google/uuid"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
)

// ErrBadFormat reports an inline image payload whose encoding is not in the
// accepted set or whose content cannot be decoded. It is a client error.
var ErrBadFormat = errors.New("invalid image format")

// derivedSize is the edge length of derived images in pixels.
const derivedSize = 400

// dataURIPattern accepts the inline encodings the service admits.
var dataURIPattern = regexp.MustCompile(`^data:image/(png|jpeg|jpg|gif|bmp);base64,(.+)$`)

// Processor validates inline image payloads and writes fixed-size derived
// PNG images into a local directory.
type Processor struct {
	dir string
}

// NewProcessor creates a Processor writing into dir, creating it if needed.
func NewProcessor(dir string) (*Processor, error) {
	if dir == "" {
		return nil, fmt.Errorf("image: uploads dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("image: create uploads dir: %w", err)
	}
	return &Processor{dir: dir}, nil
}

// Dir returns the directory derived images are written to.
func (p *Processor) Dir() string { return p.dir }

// Admit validates payload as a base64 data URI, decodes it, scales it to
// 400×400, and stores the derived PNG under a fresh unique name. It returns
// the stored file name (not a URL — the HTTP layer owns URL construction).
//
// A payload that fails validation or decoding returns an error wrapping
// ErrBadFormat; a storage failure returns a plain error.
func (p *Processor) Admit(payload string) (string, error) {
	m := dataURIPattern.FindStringSubmatch(payload)
	if m == nil {
		return "", fmt.Errorf("image: %w: unaccepted encoding tag", ErrBadFormat)
	}

	raw, err := base64.StdEncoding.DecodeString(m[2])
	if err != nil {
		return "", fmt.Errorf("image: %w: bad base64 data", ErrBadFormat)
	}

	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("image: %w: decode: %v", ErrBadFormat, err)
	}

	dst := image.NewRGBA(image.Rect(0, 0, derivedSize, derivedSize))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)

	name := uuid.NewString() + ".png"
	path := filepath.Join(p.dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("image: create %s: %w", path, err)
	}
	if err := png.Encode(f, dst); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("image: encode %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("image: close %s: %w", path, err)
	}
	return name, nil
}
