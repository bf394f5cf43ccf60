package capture

import (
	"image"
	"image/color"
	"testing"
)

func TestFromImageDropsAlpha(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	src.SetNRGBA(0, 0, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
	src.SetNRGBA(1, 0, color.NRGBA{R: 200, G: 100, B: 50, A: 255})

	f := FromImage(src)
	if f.Width != 2 || f.Height != 1 {
		t.Fatalf("size = %dx%d, want 2x1", f.Width, f.Height)
	}
	want := []byte{10, 20, 30, 200, 100, 50}
	if string(f.Pix) != string(want) {
		t.Errorf("Pix = %v, want %v", f.Pix, want)
	}
}

func TestFromImageHandlesOffsetBounds(t *testing.T) {
	src := image.NewRGBA(image.Rect(5, 5, 8, 7))
	for y := 5; y < 7; y++ {
		for x := 5; x < 8; x++ {
			src.SetRGBA(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 1, A: 255})
		}
	}

	f := FromImage(src)
	if f.Width != 3 || f.Height != 2 {
		t.Fatalf("size = %dx%d, want 3x2", f.Width, f.Height)
	}
	if len(f.Pix) != 3*2*3 {
		t.Fatalf("len(Pix) = %d", len(f.Pix))
	}
	if f.Pix[0] != 5 || f.Pix[1] != 5 {
		t.Errorf("first pixel = %v, want R=5 G=5", f.Pix[:3])
	}
}

func TestRGBARoundTripIsOpaque(t *testing.T) {
	f := &Frame{Width: 1, Height: 2, Pix: []byte{1, 2, 3, 4, 5, 6}}
	img := f.RGBA()
	if got := img.RGBAAt(0, 1); got != (color.RGBA{R: 4, G: 5, B: 6, A: 255}) {
		t.Errorf("pixel (0,1) = %v", got)
	}
}

func TestScaled(t *testing.T) {
	f := &Frame{Width: 4, Height: 2, Pix: make([]byte, 4*2*3)}
	for i := range f.Pix {
		f.Pix[i] = 128
	}

	img := f.Scaled(8, 4)
	if img.Rect.Dx() != 8 || img.Rect.Dy() != 4 {
		t.Fatalf("scaled size = %v", img.Rect)
	}
	if got := img.RGBAAt(3, 2); got.R != 128 || got.A != 255 {
		t.Errorf("scaled pixel = %v, want uniform grey", got)
	}

	same := f.Scaled(4, 2)
	if same.Rect.Dx() != 4 {
		t.Errorf("unscaled size = %v", same.Rect)
	}
}

func TestPlaceholder(t *testing.T) {
	p := Placeholder()
	if p.Width != 640 || p.Height != 480 {
		t.Fatalf("placeholder = %dx%d, want 640x480", p.Width, p.Height)
	}
	if len(p.Pix) != 640*480*3 {
		t.Fatalf("len(Pix) = %d", len(p.Pix))
	}
	for i, b := range p.Pix {
		if b != 0 {
			t.Fatalf("Pix[%d] = %d, want black", i, b)
		}
	}
	if Placeholder() != p {
		t.Error("placeholder should be shared")
	}
}
