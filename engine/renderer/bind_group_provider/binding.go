package bind_group_provider

import (
	"context"

	"github.com/Carmen-Shannon/oxy-compute/common"
	"github.com/pkg/errors"
)

// Binding is one named program input. The set of implementations is closed: Scalar, Array2D
// and ImageRef.
type Binding interface {
	// BindingName returns the WGSL name the input binds to.
	//
	// Returns:
	//   - string: the uniform or texture variable name
	BindingName() string

	binding()
}

// Scalar binds a single number to a named uniform scalar. The value is written as f32, or
// truncated toward zero when the uniform is declared i32 or u32.
type Scalar struct {
	Name  string
	Value float32
}

// Array2D binds a Width x Height grid of RGBA-packed bytes to a named texture. Data holds
// Width*Height*4 bytes with row r at Data[r*Width*4:(r+1)*Width*4]. Texels are sampled without
// filtering or wrapping.
type Array2D struct {
	Name          string
	Width, Height int
	Data          []byte
}

// ImageRef binds an externally loaded image to a named texture. Power-of-two images are
// uploaded with a full mip chain.
type ImageRef struct {
	Name  string
	Image ImageSource
}

// ImageSource is an image that becomes available asynchronously.
type ImageSource interface {
	// Wait blocks until the image is decoded or ctx is done.
	//
	// Parameters:
	//   - ctx: bounds the wait, it does not cancel the load itself
	//
	// Returns:
	//   - common.TextureStagingData: tightly packed RGBA8 pixels
	//   - error: the load failure or ctx.Err()
	Wait(ctx context.Context) (common.TextureStagingData, error)
}

func (s Scalar) BindingName() string   { return s.Name }
func (a Array2D) BindingName() string  { return a.Name }
func (i ImageRef) BindingName() string { return i.Name }

func (Scalar) binding()   {}
func (Array2D) binding()  {}
func (ImageRef) binding() {}

// Validate checks a list of inputs before any GPU work: every input is named, names are unique,
// Array2D data matches its dimensions, and ImageRef carries an image.
//
// Parameters:
//   - inputs: the inputs in binding order
//
// Returns:
//   - error: a description of the first invalid input, nil if all are valid
func Validate(inputs []Binding) error {
	seen := make(map[string]int, len(inputs))
	for i, in := range inputs {
		if in == nil {
			return errors.Errorf("input %d is nil", i)
		}
		name := in.BindingName()
		if name == "" {
			return errors.Errorf("input %d has no name", i)
		}
		if prev, ok := seen[name]; ok {
			return errors.Errorf("inputs %d and %d are both named %q", prev, i, name)
		}
		seen[name] = i

		switch b := in.(type) {
		case Scalar:
		case Array2D:
			if b.Width <= 0 || b.Height <= 0 {
				return errors.Errorf("array %q has invalid size %dx%d", name, b.Width, b.Height)
			}
			if len(b.Data) != b.Width*b.Height*4 {
				return errors.Errorf("array %q holds %d bytes, %dx%d RGBA needs %d", name, len(b.Data), b.Width, b.Height, b.Width*b.Height*4)
			}
		case ImageRef:
			if b.Image == nil {
				return errors.Errorf("image %q has no source", name)
			}
		}
	}
	return nil
}
