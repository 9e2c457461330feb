// Package imageproc prepares page images for re-OCR fallback passes:
// re-binarization, region crops, and upscaling.
package imageproc

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"

	"github.com/sells-group/invoice-audit/internal/model"
)

// Binarize converts the image to grayscale, stretches its contrast to
// the full range, and applies a fixed brightness threshold, producing
// a black-and-white image that often recovers text the primary OCR
// pass missed.
func Binarize(img image.Image, threshold uint8) *image.NRGBA {
	gray := imaging.Grayscale(img)
	gray = autocontrast(gray)
	return imaging.AdjustFunc(gray, func(c color.NRGBA) color.NRGBA {
		if c.R < threshold {
			return color.NRGBA{A: c.A}
		}
		return color.NRGBA{R: 255, G: 255, B: 255, A: c.A}
	})
}

// autocontrast linearly stretches pixel intensity so the darkest pixel
// maps to 0 and the brightest to 255.
func autocontrast(img *image.NRGBA) *image.NRGBA {
	lo, hi := uint8(255), uint8(0)
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			v := img.NRGBAAt(x, y).R
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}
	}
	if hi <= lo {
		return img
	}
	span := float64(hi - lo)
	return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		v := uint8(float64(c.R-lo) / span * 255)
		return color.NRGBA{R: v, G: v, B: v, A: c.A}
	})
}

// Crop extracts the region, clamped to the image bounds. Returns
// (nil, false) when the clamped region is empty.
func Crop(img image.Image, box model.BBox) (*image.NRGBA, bool) {
	b := img.Bounds()
	x1, y1, x2, y2 := box.X1, box.Y1, box.X2, box.Y2
	if x1 < b.Min.X {
		x1 = b.Min.X
	}
	if y1 < b.Min.Y {
		y1 = b.Min.Y
	}
	if x2 > b.Max.X {
		x2 = b.Max.X
	}
	if y2 > b.Max.Y {
		y2 = b.Max.Y
	}
	if x2 <= x1 || y2 <= y1 {
		return nil, false
	}
	return imaging.Crop(img, image.Rect(x1, y1, x2, y2)), true
}

// Upscale resizes the image by an integer factor. Used to recover
// small totals-block text on a second OCR pass.
func Upscale(img image.Image, factor int) *image.NRGBA {
	if factor <= 1 {
		return imaging.Clone(img)
	}
	b := img.Bounds()
	return imaging.Resize(img, b.Dx()*factor, b.Dy()*factor, imaging.Lanczos)
}
