package preprocess

import (
	"fmt"
	"image"
	"sort"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/nfnt/resize"
	xdraw "golang.org/x/image/draw"
)

// DefaultFilter is the resampler used when none is configured
const DefaultFilter = "lanczos"

// Resampler scales an image to exact dimensions. Implementations must be
// deterministic: the same input always yields the same output.
type Resampler interface {
	Resample(img image.Image, width, height int) *image.NRGBA
	Name() string
}

type imagingResampler struct {
	name   string
	filter imaging.ResampleFilter
}

func (r imagingResampler) Name() string { return r.name }

func (r imagingResampler) Resample(img image.Image, width, height int) *image.NRGBA {
	return imaging.Resize(img, width, height, r.filter)
}

type nfntResampler struct {
	name   string
	interp resize.InterpolationFunction
}

func (r nfntResampler) Name() string { return r.name }

func (r nfntResampler) Resample(img image.Image, width, height int) *image.NRGBA {
	return imaging.Clone(resize.Resize(uint(width), uint(height), img, r.interp))
}

type drawResampler struct {
	name   string
	kernel xdraw.Interpolator
}

func (r drawResampler) Name() string { return r.name }

func (r drawResampler) Resample(img image.Image, width, height int) *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, width, height))
	r.kernel.Scale(dst, dst.Bounds(), img, img.Bounds(), xdraw.Src, nil)
	return dst
}

var resamplers = map[string]Resampler{
	"lanczos":          imagingResampler{"lanczos", imaging.Lanczos},
	"catmullrom":       imagingResampler{"catmullrom", imaging.CatmullRom},
	"linear":           imagingResampler{"linear", imaging.Linear},
	"nearest":          imagingResampler{"nearest", imaging.NearestNeighbor},
	"nfnt-lanczos3":    nfntResampler{"nfnt-lanczos3", resize.Lanczos3},
	"nfnt-bilinear":    nfntResampler{"nfnt-bilinear", resize.Bilinear},
	"xdraw-catmullrom": drawResampler{"xdraw-catmullrom", xdraw.CatmullRom},
	"xdraw-bilinear":   drawResampler{"xdraw-bilinear", xdraw.BiLinear},
}

func defaultResampler() Resampler {
	return resamplers[DefaultFilter]
}

// ResamplerByName looks up a resampler; an empty name selects the default
func ResamplerByName(name string) (Resampler, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return defaultResampler(), nil
	}
	r, ok := resamplers[name]
	if !ok {
		return nil, fmt.Errorf("unknown resample filter %q (available: %s)", name, strings.Join(ResamplerNames(), ", "))
	}
	return r, nil
}

// ResamplerNames lists the registered filter names in sorted order
func ResamplerNames() []string {
	names := make([]string, 0, len(resamplers))
	for name := range resamplers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
