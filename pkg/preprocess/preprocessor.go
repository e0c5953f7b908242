// Package preprocess turns raw image bytes into the fixed-size 4-channel
// pixel tensor that classification models consume.
//
// The pipeline is, in order: decode (with EXIF orientation applied), center
// crop to a square, resize to the target size, render into a premultiplied
// BGRA or RGBA byte buffer, and optionally normalize the colour channels.
package preprocess

import (
	"bytes"
	"errors"
	"fmt"
	"image"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	xdraw "golang.org/x/image/draw"

	// Additional decoders registered with image.Decode
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var (
	// ErrInvalidImageData is returned when the bytes are not a decodable image
	ErrInvalidImageData = errors.New("unable to decode image data")
	// ErrBufferCreationFailed is returned when the output buffer cannot be allocated
	ErrBufferCreationFailed = errors.New("failed to create pixel buffer")
)

// DefaultMaxPixels caps the output tensor at 4096x4096
const DefaultMaxPixels = 4096 * 4096

// DefaultInputSize is used when neither the caller nor the model names a size
var DefaultInputSize = image.Pt(224, 224)

// Config holds configuration for the preprocessor
type Config struct {
	Resampler Resampler
	Order     ChannelOrder
	MaxPixels int
}

// DefaultConfig returns the default preprocessing configuration
func DefaultConfig() Config {
	return Config{
		Resampler: defaultResampler(),
		Order:     BGRA,
		MaxPixels: DefaultMaxPixels,
	}
}

// Preprocessor converts encoded images into pixel tensors
type Preprocessor struct {
	config Config
}

// New creates a new Preprocessor with default configuration
func New() *Preprocessor {
	return &Preprocessor{config: DefaultConfig()}
}

// NewWithConfig creates a new Preprocessor; zero fields fall back to defaults
func NewWithConfig(config Config) *Preprocessor {
	if config.Resampler == nil {
		config.Resampler = defaultResampler()
	}
	if config.MaxPixels <= 0 {
		config.MaxPixels = DefaultMaxPixels
	}
	return &Preprocessor{config: config}
}

// Resampler returns the resampling filter in use
func (p *Preprocessor) Resampler() Resampler {
	return p.config.Resampler
}

// PixelBuffer decodes data and produces a size.X x size.Y tensor with four
// channels. The same bytes and size always produce byte-identical output.
func (p *Preprocessor) PixelBuffer(data []byte, size image.Point, normalize bool) (*Tensor, error) {
	img, err := p.Decode(data)
	if err != nil {
		return nil, err
	}

	squared, err := CenterCropSquare(img)
	if err != nil {
		return nil, err
	}

	if size.X <= 0 || size.Y <= 0 || size.X*size.Y > p.config.MaxPixels {
		return nil, fmt.Errorf("%w: invalid target size %dx%d", ErrBufferCreationFailed, size.X, size.Y)
	}
	resized := p.config.Resampler.Resample(squared, size.X, size.Y)

	tensor, err := p.render(resized, size)
	if err != nil {
		return nil, err
	}

	if normalize {
		tensor.normalize()
	}
	return tensor, nil
}

// Decode decodes an image and applies its EXIF orientation so that the
// returned pixels are stored upright
func (p *Preprocessor) Decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrInvalidImageData)
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err == nil {
		return img, nil
	}

	// Fallback: explicit WebP decode for variants x/image/webp rejects
	if wimg, werr := webp.Decode(bytes.NewReader(data)); werr == nil {
		return wimg, nil
	}

	return nil, fmt.Errorf("%w: %v", ErrInvalidImageData, err)
}

// CenterCropSquare crops the longer dimension symmetrically so that the
// result is min(width, height) on each side
func CenterCropSquare(img image.Image) (*image.NRGBA, error) {
	bounds := img.Bounds()
	side := min(bounds.Dx(), bounds.Dy())
	if side <= 0 {
		return nil, fmt.Errorf("%w: empty image", ErrInvalidImageData)
	}
	return imaging.CropCenter(img, side, side), nil
}

// render draws img into a premultiplied 4-channel buffer in the configured order
func (p *Preprocessor) render(img image.Image, size image.Point) (*Tensor, error) {
	width, height := size.X, size.Y
	if b := img.Bounds(); b.Dx() != width || b.Dy() != height {
		return nil, fmt.Errorf("%w: resampler produced %dx%d, want %dx%d",
			ErrBufferCreationFailed, b.Dx(), b.Dy(), width, height)
	}

	rgba := image.NewRGBA(image.Rect(0, 0, width, height))
	xdraw.Draw(rgba, rgba.Bounds(), img, img.Bounds().Min, xdraw.Src)

	tensor := &Tensor{
		Width:  width,
		Height: height,
		Stride: width * Channels,
		Order:  p.config.Order,
		Pix:    make([]byte, width*height*Channels),
	}

	for y := 0; y < height; y++ {
		src := rgba.Pix[y*rgba.Stride : y*rgba.Stride+width*4]
		dst := tensor.Pix[y*tensor.Stride : (y+1)*tensor.Stride]
		for i := 0; i < len(src); i += 4 {
			r, g, b, a := src[i], src[i+1], src[i+2], src[i+3]
			switch tensor.Order {
			case RGBA:
				dst[i], dst[i+1], dst[i+2], dst[i+3] = r, g, b, a
			default:
				dst[i], dst[i+1], dst[i+2], dst[i+3] = b, g, r, a
			}
		}
	}

	return tensor, nil
}

// ImageInfo contains basic metadata about an encoded image
type ImageInfo struct {
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	Format      string  `json:"format"`
	AspectRatio float64 `json:"aspect_ratio"`
}

// Inspect reads the image header without decoding pixel data
func Inspect(data []byte) (ImageInfo, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return ImageInfo{}, fmt.Errorf("%w: %v", ErrInvalidImageData, err)
	}
	info := ImageInfo{Width: cfg.Width, Height: cfg.Height, Format: format}
	if cfg.Height > 0 {
		info.AspectRatio = float64(cfg.Width) / float64(cfg.Height)
	}
	return info, nil
}
