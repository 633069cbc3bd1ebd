package thumbnail

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const (
	DefaultWidth  = 600
	DefaultHeight = 400
	MaxDimension  = 1920

	// maxSourceSide bounds the decoded source so a small compressed file
	// cannot expand into gigabytes of pixels.
	maxSourceSide = 4 * MaxDimension

	circleRatio  = 0.15
	triangleSize = 0.6
)

var (
	ErrDimensions     = errors.New("thumbnail dimensions out of range")
	ErrSourceTooLarge = errors.New("thumbnail source image too large")
)

// Size clamps requested dimensions, substituting defaults for zero values.
func Size(w, h int) (int, int, error) {
	if w == 0 {
		w = DefaultWidth
	}
	if h == 0 {
		h = DefaultHeight
	}
	if w < 1 || h < 1 || w > MaxDimension || h > MaxDimension {
		return 0, 0, fmt.Errorf("%w: %dx%d", ErrDimensions, w, h)
	}
	return w, h, nil
}

// Compose stretches src over a black w x h canvas and stamps a centred
// play button: a translucent dark disc with a white triangle pointing right.
func Compose(src image.Image, w, h int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)
	if src != nil {
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)
	}

	cx, cy := float64(w)/2, float64(h)/2
	r := circleRatio * float64(min(w, h))
	disc := &circle{cx: cx, cy: cy, r: r}
	draw.DrawMask(dst, disc.Bounds(), image.NewUniform(color.NRGBA{A: 204}), image.Point{}, disc, disc.Bounds().Min, draw.Over)

	s := r * triangleSize
	tri := &playTriangle{left: cx - 0.3*s, right: cx + 0.7*s, cy: cy, half: 0.5 * s}
	draw.DrawMask(dst, tri.Bounds(), image.NewUniform(color.White), image.Point{}, tri, tri.Bounds().Min, draw.Over)
	return dst
}

// Decode reads a JPEG, PNG, GIF or WebP image. The header is checked
// before any pixels are allocated.
func Decode(data []byte) (image.Image, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	if cfg.Width > maxSourceSide || cfg.Height > maxSourceSide {
		return nil, fmt.Errorf("%w: %dx%d", ErrSourceTooLarge, cfg.Width, cfg.Height)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

func EncodePNG(w io.Writer, img image.Image) error {
	return png.Encode(w, img)
}

// circle is an alpha mask that is opaque inside the disc.
type circle struct {
	cx, cy, r float64
}

func (c *circle) ColorModel() color.Model { return color.AlphaModel }

func (c *circle) Bounds() image.Rectangle {
	return image.Rect(int(c.cx-c.r), int(c.cy-c.r), int(c.cx+c.r)+1, int(c.cy+c.r)+1)
}

func (c *circle) At(x, y int) color.Color {
	dx, dy := float64(x)+0.5-c.cx, float64(y)+0.5-c.cy
	if dx*dx+dy*dy <= c.r*c.r {
		return color.Alpha{A: 255}
	}
	return color.Alpha{}
}

// playTriangle has a vertical left edge and its tip at (right, cy).
type playTriangle struct {
	left, right, cy, half float64
}

func (t *playTriangle) ColorModel() color.Model { return color.AlphaModel }

func (t *playTriangle) Bounds() image.Rectangle {
	return image.Rect(int(t.left), int(t.cy-t.half), int(t.right)+1, int(t.cy+t.half)+1)
}

func (t *playTriangle) At(x, y int) color.Color {
	px, py := float64(x)+0.5, float64(y)+0.5
	if px < t.left || px > t.right {
		return color.Alpha{}
	}
	reach := t.half * (t.right - px) / (t.right - t.left)
	if py-t.cy > reach || t.cy-py > reach {
		return color.Alpha{}
	}
	return color.Alpha{A: 255}
}
