package asset

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"

	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Decoding errors.
var (
	ErrNotImage    = errors.New("asset: content is not an image")
	ErrCorruptData = errors.New("asset: image data is corrupt")
)

// Image is an embeddable raster.
type Image struct {
	Data []byte
	// Format is the drawing-surface image type: "PNG" or "JPG".
	Format string
	Width  int
	Height int
}

// Decode fully decodes data as a raster image. JPEG is kept as it is; every
// other format is re-encoded to an 8-bit PNG the drawing surface can embed.
func Decode(data []byte) (Image, error) {
	if len(data) == 0 {
		return Image{}, ErrNotImage
	}
	mtype := mimetype.Detect(data)
	switch {
	case mtype.Is("image/png"), mtype.Is("image/jpeg"), mtype.Is("image/gif"),
		mtype.Is("image/webp"), mtype.Is("image/bmp"), mtype.Is("image/tiff"):
	default:
		return Image{}, fmt.Errorf("%w: %s", ErrNotImage, mtype.String())
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Image{}, fmt.Errorf("%w: %v", ErrCorruptData, err)
	}
	b := img.Bounds()
	if b.Empty() {
		return Image{}, fmt.Errorf("%w: empty bounds", ErrCorruptData)
	}
	if mtype.Is("image/jpeg") {
		return Image{Data: data, Format: "JPG", Width: b.Dx(), Height: b.Dy()}, nil
	}
	out, err := EncodePNG(img)
	if err != nil {
		return Image{}, err
	}
	return Image{Data: out, Format: "PNG", Width: b.Dx(), Height: b.Dy()}, nil
}

// EncodePNG encodes img as an 8-bit PNG. Deep-colour images are reduced
// first because the drawing surface rejects 16-bit PNGs.
func EncodePNG(img image.Image) ([]byte, error) {
	switch img.(type) {
	case *image.Gray, *image.Paletted, *image.NRGBA, *image.RGBA:
	case *image.Gray16:
		gray := image.NewGray(img.Bounds())
		draw.Draw(gray, gray.Bounds(), img, img.Bounds().Min, draw.Src)
		img = gray
	default:
		rgba := image.NewNRGBA(img.Bounds())
		draw.Draw(rgba, rgba.Bounds(), img, img.Bounds().Min, draw.Src)
		img = rgba
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("asset: encode png: %w", err)
	}
	return buf.Bytes(), nil
}
