package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder
	"os"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"  // Register BMP format decoder
	_ "golang.org/x/image/tiff" // Register TIFF format decoder
	_ "golang.org/x/image/webp" // Register WebP format decoder, common for chat app photos
)

// ErrDecode is returned when input bytes are not a decodable image or the
// source file does not exist.
var ErrDecode = errors.New("image decode failed")

// Decode turns uploaded bytes into an image.
//
// Phone cameras usually store the sensor orientation in EXIF rather than
// rotating the pixels, so the EXIF orientation tag is applied before the image
// is returned. OCR engines expect upright text.
//
// Parameters:
//   - data: Raw file contents. Supported formats are PNG, JPEG, GIF, WebP, BMP
//     and TIFF.
//
// Returns:
//   - image.Image: The decoded, upright image.
//   - error: Wraps ErrDecode when data is empty or not an image.
func Decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrDecode)
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, fmt.Errorf("%w: zero-sized image", ErrDecode)
	}

	return img, nil
}

// ReadFile reads an image file from disk and verifies that it decodes.
//
// The raw bytes are returned (not the decoded image) because the intake
// pipeline stores the original upload alongside its extracted fields.
//
// # Errors
//
//   - Wraps ErrDecode if the file does not exist or cannot be read
//   - Wraps ErrDecode if the file is not a valid PNG, JPEG, or GIF image
func ReadFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open image: %v", ErrDecode, err)
	}
	if _, err := Decode(data); err != nil {
		return nil, err
	}
	return data, nil
}

// EncodePNG encodes img losslessly for engines that consume bytes.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}

// EncodeJPEG encodes img for storage of the original upload.
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}
