// Package ocr defines the boundary to the OCR collaborator. The
// extractor depends only on the Engine interface; the Tesseract
// implementation lives alongside it. Engines are not safe to share
// across concurrent invoices; create one per worker.
package ocr

import (
	"context"
	"image"
	"sort"

	"github.com/sells-group/invoice-audit/internal/model"
)

// Engine recognizes text on a single image. Calls are opaque,
// potentially slow, and synchronous; there is no cancellation contract
// beyond honoring ctx before work starts.
type Engine interface {
	Recognize(ctx context.Context, img image.Image) (model.Page, error)
}

// GroupLines buckets word tokens into physical lines by their
// block/paragraph/line indices, ordering words left to right. Token
// geometry is mapped back into page coordinates by dividing by scale
// and adding the crop offset. Line confidence is the average of the
// known word confidences.
func GroupLines(tokens []model.Token, scale float64, offsetX, offsetY int) []model.Line {
	if scale <= 0 {
		scale = 1
	}
	type lineKey struct{ block, par, line int }
	buckets := make(map[lineKey][]model.Token)
	var order []lineKey
	for _, t := range tokens {
		k := lineKey{t.BlockNum, t.ParNum, t.LineNum}
		if _, ok := buckets[k]; !ok {
			order = append(order, k)
		}
		buckets[k] = append(buckets[k], t)
	}

	lines := make([]model.Line, 0, len(buckets))
	for _, k := range order {
		items := buckets[k]
		sort.Slice(items, func(i, j int) bool { return items[i].X1 < items[j].X1 })

		text := ""
		box := items[0].BBox
		var confSum float64
		var confN int
		for i, t := range items {
			if i > 0 {
				text += " "
			}
			text += t.Text
			box = box.Union(t.BBox)
			if t.Confidence != nil {
				confSum += *t.Confidence
				confN++
			}
		}

		var conf *float64
		if confN > 0 {
			avg := confSum / float64(confN)
			conf = &avg
		}
		lines = append(lines, model.Line{
			Text:       text,
			Confidence: conf,
			BBox: model.BBox{
				X1: int(float64(box.X1)/scale) + offsetX,
				Y1: int(float64(box.Y1)/scale) + offsetY,
				X2: int(float64(box.X2)/scale) + offsetX,
				Y2: int(float64(box.Y2)/scale) + offsetY,
			},
		})
	}

	sort.Slice(lines, func(i, j int) bool {
		if lines[i].Y1 != lines[j].Y1 {
			return lines[i].Y1 < lines[j].Y1
		}
		return lines[i].X1 < lines[j].X1
	})
	return lines
}
