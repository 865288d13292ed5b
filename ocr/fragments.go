package ocr

import "github.com/hyeonwoo/redactkit/extractor"

// FragmentsFromResult converts recognized words into extractor fragments.
// Word bounds are pixels of a bitmap rendered at scale; fragments are render
// space at scale 1.0, so the matcher and the redactors treat OCR text exactly
// like extracted text.
func FragmentsFromResult(res Result, page int, scale float64) []extractor.Fragment {
	if scale <= 0 {
		return nil
	}
	var out []extractor.Fragment
	for _, block := range res.Blocks {
		for _, line := range block.Lines {
			for _, w := range line.Words {
				if w.Text == "" {
					continue
				}
				out = append(out, extractor.Fragment{
					Page: page,
					Text: w.Text,
					X:    w.Bounds.X / scale,
					Y:    w.Bounds.Y / scale,
					W:    w.Bounds.Width / scale,
					H:    w.Bounds.Height / scale,
				})
			}
		}
	}
	return out
}
