package dataset

import (
	"bytes"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"github.com/pkg/errors"
)

// Features decodes an image payload into a channel-major tensor of the given shape,
// resampling with nearest-neighbour lookup. One channel yields grey intensity, three
// channels yield red, green and blue planes. Values lie in [0, 1].
func Features(raw []byte, channels, height, width int) ([]float64, error) {
	if channels != 1 && channels != 3 {
		return nil, errors.Errorf("features: unsupported channel count %d", channels)
	}
	if height <= 0 || width <= 0 {
		return nil, errors.Errorf("features: bad size %dx%d", height, width)
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, errors.Wrap(err, "decode image")
	}
	bounds := img.Bounds()
	srcW, srcH := bounds.Dx(), bounds.Dy()
	if srcW == 0 || srcH == 0 {
		return nil, errors.New("empty image")
	}

	plane := height * width
	out := make([]float64, channels*plane)
	for y := 0; y < height; y++ {
		py := bounds.Min.Y + y*srcH/height
		for x := 0; x < width; x++ {
			px := bounds.Min.X + x*srcW/width
			r, g, b, _ := img.At(px, py).RGBA()
			i := y*width + x
			if channels == 1 {
				out[i] = (float64(r) + float64(g) + float64(b)) / (3 * 65535.0)
				continue
			}
			out[i] = float64(r) / 65535.0
			out[plane+i] = float64(g) / 65535.0
			out[2*plane+i] = float64(b) / 65535.0
		}
	}
	return out, nil
}
