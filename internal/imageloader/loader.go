// Package imageloader turns an image file into the normalized grayscale
// tensor a digit classifier expects.
package imageloader

import (
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"strings"

	"github.com/nfnt/resize"
	"github.com/pkg/errors"
	"golang.org/x/image/draw"
	"gorgonia.org/tensor"
)

// Size is the side length of the square classifier input.
const Size = 28

var (
	ErrNotFound = errors.New("image not found")
	ErrDecode   = errors.New("image decode failed")
)

var interpolations = map[string]resize.InterpolationFunction{
	"nearest":  resize.NearestNeighbor,
	"bilinear": resize.Bilinear,
	"bicubic":  resize.Bicubic,
	"lanczos":  resize.Lanczos3,
}

// Options controls the target size and resampling kernel.
type Options struct {
	Width         uint
	Height        uint
	Interpolation resize.InterpolationFunction
}

// DefaultOptions returns a 28x28 nearest neighbour resize.
func DefaultOptions() Options {
	return Options{
		Width:         Size,
		Height:        Size,
		Interpolation: resize.NearestNeighbor,
	}
}

// ParseInterpolation maps a kernel name to its resize function. An empty
// name selects nearest neighbour.
func ParseInterpolation(name string) (resize.InterpolationFunction, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return resize.NearestNeighbor, nil
	}
	fn, ok := interpolations[name]
	if !ok {
		return 0, errors.Errorf("unknown interpolation %q (want nearest, bilinear, bicubic or lanczos)", name)
	}
	return fn, nil
}

// Load reads path and returns a (1, 28, 28, 1) float32 tensor scaled to [0, 1].
func Load(path string) (*tensor.Dense, error) {
	return LoadWithOptions(path, DefaultOptions())
}

// LoadWithOptions is Load with an explicit target size and kernel.
func LoadWithOptions(path string, opts Options) (*tensor.Dense, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(ErrNotFound, "%s", path)
		}
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	t, err := Decode(f, opts)
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", path)
	}
	return t, nil
}

// Decode reads a JPEG or PNG image from r and preprocesses it.
func Decode(r io.Reader, opts Options) (*tensor.Dense, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, errors.Wrap(ErrDecode, err.Error())
	}
	return Preprocess(img, opts)
}

// Preprocess converts img to grayscale, resizes it to the target size
// regardless of aspect ratio and lays it out as (1, H, W, 1).
func Preprocess(img image.Image, opts Options) (*tensor.Dense, error) {
	if opts.Width == 0 || opts.Height == 0 {
		return nil, errors.Errorf("invalid target size %dx%d", opts.Width, opts.Height)
	}

	resized := scale(Grayscale(img), opts)

	bounds := resized.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width != int(opts.Width) || height != int(opts.Height) {
		return nil, errors.Errorf("resize produced %dx%d, want %dx%d", width, height, opts.Width, opts.Height)
	}

	data := make([]float32, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			g := color.GrayModel.Convert(resized.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.Gray)
			data[y*width+x] = float32(g.Y) / 255.0
		}
	}

	return tensor.New(
		tensor.WithShape(1, height, width, 1),
		tensor.WithBacking(data),
	), nil
}

// scale resizes gray to the target size. Nearest neighbour picks the source
// pixel under each destination pixel centre and never averages.
func scale(gray *image.Gray, opts Options) image.Image {
	if opts.Interpolation == resize.NearestNeighbor {
		dst := image.NewGray(image.Rect(0, 0, int(opts.Width), int(opts.Height)))
		draw.NearestNeighbor.Scale(dst, dst.Rect, gray, gray.Bounds(), draw.Src, nil)
		return dst
	}
	return resize.Resize(opts.Width, opts.Height, gray, opts.Interpolation)
}

// Grayscale returns img as a single channel image using ITU-R 601 luma on
// straight (non-premultiplied) colour, so alpha is dropped rather than
// blended towards black. Gray inputs are returned unchanged.
func Grayscale(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	b := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			c := color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			luma := (19595*uint32(c.R) + 38470*uint32(c.G) + 7471*uint32(c.B) + 1<<15) >> 16
			gray.Pix[y*gray.Stride+x] = uint8(luma)
		}
	}
	return gray
}
