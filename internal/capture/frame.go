// Package capture pulls frames from a network video source.
//
// Frames are normalised to tightly packed RGB24 as soon as they are
// decoded; alpha never leaves this package.
package capture

import (
	"image"
	"sync"

	"golang.org/x/image/draw"
)

// Placeholder dimensions served before the first real frame arrives.
const (
	PlaceholderWidth  = 640
	PlaceholderHeight = 480
)

// Frame is an immutable RGB24 image. Pix holds Width*Height*3 bytes,
// row-major with no padding.
type Frame struct {
	Width  int
	Height int
	Pix    []byte
}

// FromImage converts img to an RGB24 frame, dropping any alpha channel.
func FromImage(img image.Image) *Frame {
	b := img.Bounds()
	rgba, ok := img.(*image.RGBA)
	if !ok || rgba.Rect.Min != (image.Point{}) {
		rgba = image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(rgba, rgba.Rect, img, b.Min, draw.Src)
	}

	w, h := rgba.Rect.Dx(), rgba.Rect.Dy()
	pix := make([]byte, w*h*3)
	for y := 0; y < h; y++ {
		src := rgba.Pix[y*rgba.Stride : y*rgba.Stride+w*4]
		dst := pix[y*w*3 : (y+1)*w*3]
		for x := 0; x < w; x++ {
			dst[x*3] = src[x*4]
			dst[x*3+1] = src[x*4+1]
			dst[x*3+2] = src[x*4+2]
		}
	}
	return &Frame{Width: w, Height: h, Pix: pix}
}

// RGBA expands the frame to an opaque *image.RGBA.
func (f *Frame) RGBA() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	for i, j := 0, 0; i < len(f.Pix); i, j = i+3, j+4 {
		img.Pix[j] = f.Pix[i]
		img.Pix[j+1] = f.Pix[i+1]
		img.Pix[j+2] = f.Pix[i+2]
		img.Pix[j+3] = 0xff
	}
	return img
}

// Scaled returns the frame resized to w x h. The frame itself is returned
// as RGBA when it already has that size.
func (f *Frame) Scaled(w, h int) *image.RGBA {
	src := f.RGBA()
	if f.Width == w && f.Height == h {
		return src
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Rect, src, src.Rect, draw.Src, nil)
	return dst
}

var (
	placeholderOnce sync.Once
	placeholder     *Frame
)

// Placeholder returns the shared black 640x480 frame. Callers must not
// modify it.
func Placeholder() *Frame {
	placeholderOnce.Do(func() {
		placeholder = &Frame{
			Width:  PlaceholderWidth,
			Height: PlaceholderHeight,
			Pix:    make([]byte, PlaceholderWidth*PlaceholderHeight*3),
		}
	})
	return placeholder
}
