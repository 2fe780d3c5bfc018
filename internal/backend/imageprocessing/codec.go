package imageprocessing

import (
	"bytes"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"path/filepath"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Format names an output encoding
type Format string

const (
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"
	FormatGIF  Format = "gif"
	FormatBMP  Format = "bmp"
	FormatTIFF Format = "tiff"
)

const jpegQuality = 95

var extensionFormats = map[string]Format{
	".jpg":  FormatJPEG,
	".jpeg": FormatJPEG,
	".png":  FormatPNG,
	".gif":  FormatGIF,
	".bmp":  FormatBMP,
	".tif":  FormatTIFF,
	".tiff": FormatTIFF,
}

// FormatForPath infers the output format from the file extension; unknown extensions encode as JPEG.
func FormatForPath(path string) Format {
	if format, ok := extensionFormats[strings.ToLower(filepath.Ext(path))]; ok {
		return format
	}
	return FormatJPEG
}

// outputExtension keeps ext when it names an encodable format; anything else is written as JPEG
func outputExtension(ext string) string {
	if _, ok := extensionFormats[strings.ToLower(ext)]; ok {
		return ext
	}
	return ".jpg"
}

// decodeImage decodes raster data via the registered decoders and rasterizes SVG documents.
// The second return value reports whether the source was SVG.
func decodeImage(data []byte) (image.Image, bool, error) {
	if isSVGData(data) {
		img, err := rasterizeSVG(data)
		if err != nil {
			return nil, true, err
		}
		return img, true, nil
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, false, fmt.Errorf("failed to decode image: %w", err)
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, false, fmt.Errorf("decoded %s image has empty bounds", format)
	}
	return img, false, nil
}

// encodeImage writes img in the given format
func encodeImage(w io.Writer, img image.Image, format Format) error {
	switch format {
	case FormatPNG:
		return png.Encode(w, img)
	case FormatGIF:
		return gif.Encode(w, img, nil)
	case FormatBMP:
		return bmp.Encode(w, img)
	case FormatTIFF:
		return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	default:
		return jpeg.Encode(w, img, &jpeg.Options{Quality: jpegQuality})
	}
}
