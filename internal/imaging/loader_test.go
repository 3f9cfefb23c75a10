package imaging

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

// encodeTestImage renders a uniform image of the given size and returns it as PNG bytes.
func encodeTestImage(t *testing.T, width, height int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode image: %v", err)
	}
	return buf.Bytes()
}

func TestDecode(t *testing.T) {
	data := encodeTestImage(t, 40, 30, color.RGBA{255, 0, 0, 255})

	img, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	bounds := img.Bounds()
	if bounds.Dx() != 40 || bounds.Dy() != 30 {
		t.Errorf("unexpected dimensions: got %dx%d, want 40x30", bounds.Dx(), bounds.Dy())
	}
}

func TestDecode_ExtraFormats(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 12, 9))
	encoders := map[string]func(*bytes.Buffer) error{
		"bmp":  func(b *bytes.Buffer) error { return bmp.Encode(b, src) },
		"tiff": func(b *bytes.Buffer) error { return tiff.Encode(b, src, nil) },
	}
	for name, enc := range encoders {
		t.Run(name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := enc(&buf); err != nil {
				t.Fatalf("encode: %v", err)
			}
			img, err := Decode(buf.Bytes())
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if got := img.Bounds().Size(); got != image.Pt(12, 9) {
				t.Errorf("unexpected size %v", got)
			}
		})
	}
}

func TestDecode_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"text", []byte("this is not an image")},
		{"truncated png", encodeTestImage(t, 10, 10, color.White)[:20]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.data)
			if !errors.Is(err, ErrDecode) {
				t.Errorf("expected ErrDecode, got %v", err)
			}
		})
	}
}

func TestReadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "card.png")
	want := encodeTestImage(t, 8, 8, color.Black)
	if err := os.WriteFile(path, want, 0o644); err != nil {
		t.Fatalf("failed to write image: %v", err)
	}

	got, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Error("ReadFile returned different bytes")
	}
}

func TestReadFile_Missing(t *testing.T) {
	_, err := ReadFile("/nonexistent/path/to/card.jpg")
	if !errors.Is(err, ErrDecode) {
		t.Errorf("expected ErrDecode for missing file, got %v", err)
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	img, err := Decode(encodeTestImage(t, 16, 16, color.RGBA{0, 0, 255, 255}))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	for name, encode := range map[string]func(image.Image) ([]byte, error){
		"png":  EncodePNG,
		"jpeg": func(i image.Image) ([]byte, error) { return EncodeJPEG(i, 90) },
	} {
		t.Run(name, func(t *testing.T) {
			data, err := encode(img)
			if err != nil {
				t.Fatalf("encode failed: %v", err)
			}
			if _, err := Decode(data); err != nil {
				t.Errorf("re-decode failed: %v", err)
			}
		})
	}
}
