package preprocessing

import (
	"image"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
)

// Processor converts decoded images into fixed-size CHW float32 tensors.
// A Processor carries no mutable state, so one instance can serve many
// goroutines.
type Processor struct {
	targetSize int
}

// NewProcessor creates a processor that emits targetSize x targetSize
// tensors.
func NewProcessor(targetSize int) *Processor {
	return &Processor{targetSize: targetSize}
}

// ProcessedImage represents a preprocessed image ready for model input
type ProcessedImage struct {
	Data     []float32
	Width    int
	Height   int
	Channels int
}

// Process resizes the image to the target square and converts it to CHW
// float32 data normalized to [0, 1].
func (p *Processor) Process(img image.Image) (*ProcessedImage, error) {
	if p.targetSize <= 0 {
		return nil, errors.Errorf("invalid target size %d", p.targetSize)
	}

	resized := imaging.Resize(img, p.targetSize, p.targetSize, imaging.Linear)

	side := p.targetSize
	plane := side * side
	data := make([]float32, 3*plane)

	for y := 0; y < side; y++ {
		for x := 0; x < side; x++ {
			// NRGBA pixels, 4 bytes per pixel, row-major.
			off := y*resized.Stride + x*4
			idx := y*side + x

			data[0*plane+idx] = clamp01(float32(resized.Pix[off]) / 255.0)
			data[1*plane+idx] = clamp01(float32(resized.Pix[off+1]) / 255.0)
			data[2*plane+idx] = clamp01(float32(resized.Pix[off+2]) / 255.0)
		}
	}

	return &ProcessedImage{
		Data:     data,
		Width:    side,
		Height:   side,
		Channels: 3,
	}, nil
}

// ProcessFile opens and decodes an image file, then processes it.
func (p *Processor) ProcessFile(path string) (*ProcessedImage, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decode %s", path)
	}
	return p.Process(img)
}

// clamp01 guards against NaN and out-of-range values.
func clamp01(v float32) float32 {
	if v != v || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
