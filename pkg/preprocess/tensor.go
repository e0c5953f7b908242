package preprocess

import (
	"fmt"
	"image"
	"strings"
)

// Channels is the number of bytes per pixel in a Tensor
const Channels = 4

// ChannelOrder describes the byte layout of a pixel
type ChannelOrder int

const (
	// BGRA stores blue, green, red, alpha
	BGRA ChannelOrder = iota
	// RGBA stores red, green, blue, alpha
	RGBA
)

func (o ChannelOrder) String() string {
	switch o {
	case RGBA:
		return "rgba"
	default:
		return "bgra"
	}
}

// ParseChannelOrder parses "bgra" or "rgba"
func ParseChannelOrder(s string) (ChannelOrder, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "bgra":
		return BGRA, nil
	case "rgba":
		return RGBA, nil
	default:
		return BGRA, fmt.Errorf("unknown channel order: %s", s)
	}
}

// Tensor is a Height x Width x 4 byte buffer of premultiplied pixels
type Tensor struct {
	Width  int
	Height int
	Stride int
	Order  ChannelOrder
	Pix    []byte
}

// Shape returns the tensor dimensions as height, width, channels
func (t *Tensor) Shape() [3]int {
	return [3]int{t.Height, t.Width, Channels}
}

// Size returns the spatial dimensions
func (t *Tensor) Size() image.Point {
	return image.Pt(t.Width, t.Height)
}

// offsets returns the byte offsets of red, green and blue within a pixel
func (t *Tensor) offsets() (r, g, b int) {
	if t.Order == RGBA {
		return 0, 1, 2
	}
	return 2, 1, 0
}

// At returns the channel values of pixel (x, y)
func (t *Tensor) At(x, y int) (r, g, b, a uint8) {
	i := y*t.Stride + x*Channels
	ri, gi, bi := t.offsets()
	return t.Pix[i+ri], t.Pix[i+gi], t.Pix[i+bi], t.Pix[i+3]
}

// normalize rewrites the first three channels of every pixel through the
// normalization table; alpha is untouched
func (t *Tensor) normalize() {
	for y := 0; y < t.Height; y++ {
		row := t.Pix[y*t.Stride : y*t.Stride+t.Width*Channels]
		for i := 0; i < len(row); i += Channels {
			row[i] = normalizeTable[row[i]]
			row[i+1] = normalizeTable[row[i+1]]
			row[i+2] = normalizeTable[row[i+2]]
		}
	}
}

// RGB returns the pixels as packed height x width x 3 bytes
func (t *Tensor) RGB() []uint8 {
	out := make([]uint8, 0, t.Width*t.Height*3)
	ri, gi, bi := t.offsets()
	for y := 0; y < t.Height; y++ {
		for x := 0; x < t.Width; x++ {
			i := y*t.Stride + x*Channels
			out = append(out, t.Pix[i+ri], t.Pix[i+gi], t.Pix[i+bi])
		}
	}
	return out
}

// Float32CHW returns planar RGB values scaled to [-1, 1], shaped 3 x H x W
func (t *Tensor) Float32CHW() []float32 {
	plane := t.Width * t.Height
	out := make([]float32, 3*plane)
	ri, gi, bi := t.offsets()
	for y := 0; y < t.Height; y++ {
		for x := 0; x < t.Width; x++ {
			i := y*t.Stride + x*Channels
			p := y*t.Width + x
			out[p] = toUnit(t.Pix[i+ri])
			out[plane+p] = toUnit(t.Pix[i+gi])
			out[2*plane+p] = toUnit(t.Pix[i+bi])
		}
	}
	return out
}

// Float32HWC returns interleaved RGB values scaled to [-1, 1], shaped H x W x 3
func (t *Tensor) Float32HWC() []float32 {
	out := make([]float32, 0, t.Width*t.Height*3)
	ri, gi, bi := t.offsets()
	for y := 0; y < t.Height; y++ {
		for x := 0; x < t.Width; x++ {
			i := y*t.Stride + x*Channels
			out = append(out, toUnit(t.Pix[i+ri]), toUnit(t.Pix[i+gi]), toUnit(t.Pix[i+bi]))
		}
	}
	return out
}

// Image returns the tensor as an RGBA image, e.g. for re-encoding
func (t *Tensor) Image() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, t.Width, t.Height))
	for y := 0; y < t.Height; y++ {
		for x := 0; x < t.Width; x++ {
			r, g, b, a := t.At(x, y)
			o := img.PixOffset(x, y)
			img.Pix[o], img.Pix[o+1], img.Pix[o+2], img.Pix[o+3] = r, g, b, a
		}
	}
	return img
}

func toUnit(v uint8) float32 {
	return float32(v)/127.5 - 1
}
