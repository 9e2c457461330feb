package ocr

import (
	"bytes"
	"context"
	"image"
	"image/png"

	"github.com/otiai10/gosseract/v2"
	"github.com/rotisserie/eris"

	"github.com/sells-group/invoice-audit/internal/model"
)

// TesseractEngine implements Engine over a gosseract client. A new
// client is created per Recognize call; the engine itself carries only
// immutable settings and may be reused sequentially, but never across
// concurrent invoices.
type TesseractEngine struct {
	languages   []string
	tessdataDir string

	clientFactory func() *gosseract.Client // injectable for testing
}

// NewTesseract constructs a Tesseract-backed OCR engine.
func NewTesseract(languages []string, tessdataDir string) *TesseractEngine {
	if len(languages) == 0 {
		languages = []string{"eng"}
	}
	return &TesseractEngine{
		languages:     languages,
		tessdataDir:   tessdataDir,
		clientFactory: gosseract.NewClient,
	}
}

// Recognize runs Tesseract over the image in single-block page
// segmentation mode and returns word tokens grouped into lines.
func (e *TesseractEngine) Recognize(ctx context.Context, img image.Image) (model.Page, error) {
	select {
	case <-ctx.Done():
		return model.Page{}, ctx.Err()
	default:
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return model.Page{}, eris.Wrap(err, "ocr: encode png")
	}

	c := e.clientFactory()
	defer c.Close()

	if e.tessdataDir != "" {
		if err := c.SetTessdataPrefix(e.tessdataDir); err != nil {
			return model.Page{}, eris.Wrap(err, "ocr: set tessdata prefix")
		}
	}
	if err := c.SetLanguage(e.languages...); err != nil {
		return model.Page{}, eris.Wrap(err, "ocr: set language")
	}
	if err := c.SetPageSegMode(gosseract.PSM_SINGLE_BLOCK); err != nil {
		return model.Page{}, eris.Wrap(err, "ocr: set page seg mode")
	}
	if err := c.SetImageFromBytes(buf.Bytes()); err != nil {
		return model.Page{}, eris.Wrap(err, "ocr: set image")
	}

	boxes, err := c.GetBoundingBoxesVerbose()
	if err != nil {
		return model.Page{}, eris.Wrap(err, "ocr: bounding boxes")
	}

	bounds := img.Bounds()
	page := model.Page{Width: bounds.Dx(), Height: bounds.Dy()}
	for _, b := range boxes {
		word := b.Word
		if word == "" {
			continue
		}
		var conf *float64
		if b.Confidence >= 0 {
			v := b.Confidence / 100.0
			conf = &v
		}
		page.Tokens = append(page.Tokens, model.Token{
			Text:       word,
			Confidence: conf,
			BBox: model.BBox{
				X1: b.Box.Min.X,
				Y1: b.Box.Min.Y,
				X2: b.Box.Max.X,
				Y2: b.Box.Max.Y,
			},
			LineNum:  b.LineNum,
			BlockNum: b.BlockNum,
			ParNum:   b.ParNum,
		})
	}
	page.Lines = GroupLines(page.Tokens, 1, 0, 0)
	return page, nil
}
