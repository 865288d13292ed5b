package filters

import (
	"errors"

	"github.com/hyeonwoo/redactkit/ir/raw"
)

// applyPredictor undoes the predictor declared in DecodeParms. Cross-reference
// streams almost always use PNG Up (predictor 12).
func applyPredictor(data []byte, params raw.Dictionary) ([]byte, error) {
	if params == nil {
		return data, nil
	}
	predictor, ok := raw.DictInt(params, "Predictor")
	if !ok || predictor <= 1 {
		return data, nil
	}

	columns := int64(1)
	if c, ok := raw.DictInt(params, "Columns"); ok && c > 0 {
		columns = c
	}
	colors := int64(1)
	if c, ok := raw.DictInt(params, "Colors"); ok && c > 0 {
		colors = c
	}
	bpc := int64(8)
	if b, ok := raw.DictInt(params, "BitsPerComponent"); ok && b > 0 {
		bpc = b
	}

	if predictor == 2 {
		return applyTIFFPredictor(data, int(columns), int(colors), int(bpc))
	}
	if predictor >= 10 && predictor <= 15 {
		bpp := int((colors*bpc + 7) / 8)
		rowLen := int((colors*bpc*columns + 7) / 8)
		return applyPNGPredictor(data, rowLen, bpp)
	}
	return nil, errors.New("unsupported predictor")
}

// applyPNGPredictor reverses per-row PNG filtering. Each row is preceded by a
// filter type byte.
func applyPNGPredictor(data []byte, rowLen, bpp int) ([]byte, error) {
	if rowLen <= 0 {
		return nil, errors.New("invalid predictor row length")
	}
	stride := rowLen + 1
	if len(data)%stride != 0 {
		return nil, errors.New("predictor data not a whole number of rows")
	}
	rows := len(data) / stride
	out := make([]byte, 0, rows*rowLen)
	prev := make([]byte, rowLen)

	for r := 0; r < rows; r++ {
		ft := data[r*stride]
		row := make([]byte, rowLen)
		copy(row, data[r*stride+1:(r+1)*stride])

		switch ft {
		case 0: // None
		case 1: // Sub
			for i := bpp; i < rowLen; i++ {
				row[i] += row[i-bpp]
			}
		case 2: // Up
			for i := 0; i < rowLen; i++ {
				row[i] += prev[i]
			}
		case 3: // Average
			for i := 0; i < rowLen; i++ {
				var left byte
				if i >= bpp {
					left = row[i-bpp]
				}
				row[i] += byte((int(left) + int(prev[i])) / 2)
			}
		case 4: // Paeth
			for i := 0; i < rowLen; i++ {
				var left, upLeft byte
				if i >= bpp {
					left = row[i-bpp]
					upLeft = prev[i-bpp]
				}
				row[i] += paeth(left, prev[i], upLeft)
			}
		default:
			return nil, errors.New("unknown PNG filter type")
		}
		out = append(out, row...)
		prev = row
	}
	return out, nil
}

func paeth(a, b, c byte) byte {
	p := int(a) + int(b) - int(c)
	pa, pb, pc := abs(p-int(a)), abs(p-int(b)), abs(p-int(c))
	if pa <= pb && pa <= pc {
		return a
	}
	if pb <= pc {
		return b
	}
	return c
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// applyTIFFPredictor reverses horizontal differencing. Only the 8-bit case is
// handled; other depths do not appear in the streams this library reads.
func applyTIFFPredictor(data []byte, columns, colors, bpc int) ([]byte, error) {
	if bpc != 8 {
		return nil, errors.New("unsupported TIFF predictor depth")
	}
	rowLen := columns * colors
	if rowLen <= 0 || len(data)%rowLen != 0 {
		return nil, errors.New("predictor data not a whole number of rows")
	}
	out := make([]byte, len(data))
	copy(out, data)
	for r := 0; r < len(data)/rowLen; r++ {
		row := out[r*rowLen : (r+1)*rowLen]
		for i := colors; i < rowLen; i++ {
			row[i] += row[i-colors]
		}
	}
	return out, nil
}
