package extract

import (
	"context"
	"image"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/invoice-audit/internal/imageproc"
	"github.com/sells-group/invoice-audit/internal/model"
	"github.com/sells-group/invoice-audit/internal/ocr"
)

// recognize runs one engine pass, honoring the re-OCR rate limit.
func (e *Extractor) recognize(ctx context.Context, img image.Image) (model.Page, error) {
	if e.engine == nil {
		return model.Page{}, eris.New("extract: no OCR engine configured")
	}
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return model.Page{}, eris.Wrap(err, "extract: rate limit wait")
		}
	}
	return e.engine.Recognize(ctx, img)
}

// remapLines maps crop-local line geometry back into page coordinates.
func remapLines(lines []model.Line, scale float64, offsetX, offsetY int) []model.Line {
	if scale <= 0 {
		scale = 1
	}
	out := make([]model.Line, len(lines))
	for i, l := range lines {
		l.X1 = int(float64(l.X1)/scale) + offsetX
		l.Y1 = int(float64(l.Y1)/scale) + offsetY
		l.X2 = int(float64(l.X2)/scale) + offsetX
		l.Y2 = int(float64(l.Y2)/scale) + offsetY
		out[i] = l
	}
	return out
}

// fullPageLines re-binarizes the whole page and runs a second OCR
// pass. Recovers fields the primary pass lost to low contrast.
func (e *Extractor) fullPageLines(ctx context.Context, img image.Image) ([]model.Line, error) {
	bw := imageproc.Binarize(img, e.threshold)
	page, err := e.recognize(ctx, bw)
	if err != nil {
		return nil, eris.Wrap(err, "extract: full-page fallback pass")
	}
	return page.Lines, nil
}

// totalsBlockFields crops the region around the total's box, where
// subtotal and tax usually sit, and re-reads it binarized.
func (e *Extractor) totalsBlockFields(ctx context.Context, img image.Image, totalBox model.BBox) (subtotal, tax *fieldResult, err error) {
	b := img.Bounds()
	x1 := totalBox.X1 - 300
	if x1 < b.Min.X {
		x1 = b.Min.X
	}
	y1 := totalBox.Y1 - 260
	if y1 < b.Min.Y {
		y1 = b.Min.Y
	}
	region := model.BBox{X1: x1, Y1: y1, X2: totalBox.X2 + 50, Y2: totalBox.Y2 + 20}
	crop, ok := imageproc.Crop(img, region)
	if !ok {
		return nil, nil, nil
	}

	page, err := e.recognize(ctx, imageproc.Binarize(crop, e.threshold))
	if err != nil {
		return nil, nil, eris.Wrap(err, "extract: totals-block pass")
	}
	lines := remapLines(page.Lines, 1, x1, y1)
	subtotal = e.extractAmount(lines, e.labels.Subtotal, nil)
	tax = e.extractAmount(lines, e.labels.Tax, e.labels.TaxExclude)
	return subtotal, tax, nil
}

// taxFromCrop reads the thin band between subtotal and total at 2x
// scale, the last resort for a tax amount the other passes missed.
func (e *Extractor) taxFromCrop(ctx context.Context, img image.Image, subtotalBox, totalBox model.BBox) (*fieldResult, error) {
	x1 := subtotalBox.X1
	if totalBox.X1 < x1 {
		x1 = totalBox.X1
	}
	x2 := subtotalBox.X2
	if totalBox.X2 > x2 {
		x2 = totalBox.X2
	}
	region := model.BBox{X1: x1 - 80, Y1: subtotalBox.Y2 - 5, X2: x2 + 80, Y2: totalBox.Y1 + 30}
	if region.X2 <= region.X1 || region.Y2 <= region.Y1 {
		return nil, nil
	}
	b := img.Bounds()
	if region.X1 < b.Min.X {
		region.X1 = b.Min.X
	}
	if region.Y1 < b.Min.Y {
		region.Y1 = b.Min.Y
	}
	crop, ok := imageproc.Crop(img, region)
	if !ok {
		return nil, nil
	}

	const scale = 2
	page, err := e.recognize(ctx, imageproc.Upscale(crop, scale))
	if err != nil {
		return nil, eris.Wrap(err, "extract: tax crop pass")
	}
	for _, line := range remapLines(page.Lines, scale, region.X1, region.Y1) {
		if !strings.Contains(e.normLine(line.Text), "tax") {
			continue
		}
		if amt, ok := lastAmountInLine(line.Text); ok {
			return &fieldResult{value: amt, conf: line.Confidence, bbox: bboxOf(line)}, nil
		}
	}
	return nil, nil
}

// extractLeftColumnAddress recovers an address from raw word tokens in
// the column under a label line, for templates whose bill-to block has
// no caption of its own. Works on the primary pass tokens.
func (e *Extractor) extractLeftColumnAddress(tokens []model.Token, labelLine *model.Line, pageWidth int) *fieldResult {
	if len(tokens) == 0 || labelLine == nil || pageWidth == 0 {
		return nil
	}
	splitX := pageWidth / 2
	labelH := labelLine.Height()
	if labelH < 1 {
		labelH = 1
	}
	yMin := labelLine.Y2 - labelH/10
	yMax := labelLine.Y2 + labelH*5

	var filtered []model.Token
	for _, t := range tokens {
		if t.X1 < splitX && t.Y1 >= yMin && t.Y1 <= yMax {
			filtered = append(filtered, t)
		}
	}
	if len(filtered) == 0 {
		return nil
	}

	lines := ocr.GroupLines(filtered, 1, 0, 0)
	var addrLines []model.Line
	for _, l := range lines {
		if isAddressCandidate(l.Text) {
			addrLines = append(addrLines, l)
		}
		if len(addrLines) >= 2 {
			break
		}
	}
	if addr, conf, box := joinAddress(addrLines); addr != "" {
		return &fieldResult{value: addr, conf: conf, bbox: box}
	}
	return nil
}
