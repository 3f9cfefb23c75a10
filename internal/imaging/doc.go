// Package imaging decodes uploaded document photos and prepares them for OCR.
//
// # Decoding
//
// Decode and ReadFile accept PNG, JPEG, GIF, WebP, BMP and TIFF input and apply
// the EXIF orientation tag so text is upright. Any failure wraps ErrDecode.
//
// # Enhancement
//
// An Enhancer runs a fixed sequence on every photo:
//  1. Fit the longest side to Options.MaxDimension (Lanczos).
//  2. Upscale by UpscaleFactor (Lanczos).
//  3. Denoise: bilateral in CIE-Lab space, median, or none.
//  4. Sharpen with a 3x3 kernel.
//
// The context is checked between stages and between bilateral rows.
// Failures and cancellations wrap ErrEnhancement; the caller must not run OCR
// on the unenhanced image.
//
// # Thread Safety
//
// An Enhancer holds only its options and may be shared between goroutines.
// Input images are never modified.
package imaging
