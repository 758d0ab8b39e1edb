package filters

import (
	"errors"

	"github.com/tekikaito/stapler/ir/raw"
)

var ErrPredictor = errors.New("invalid predictor data")

type predictorParams struct {
	predictor int
	colors    int
	bpc       int
	columns   int
}

func readPredictorParams(params *raw.DictObj) predictorParams {
	p := predictorParams{predictor: 1, colors: 1, bpc: 8, columns: 1}
	if params == nil {
		return p
	}
	if v, ok := params.Int("Predictor"); ok {
		p.predictor = int(v)
	}
	if v, ok := params.Int("Colors"); ok && v > 0 {
		p.colors = int(v)
	}
	if v, ok := params.Int("BitsPerComponent"); ok && v > 0 {
		p.bpc = int(v)
	}
	if v, ok := params.Int("Columns"); ok && v > 0 {
		p.columns = int(v)
	}
	return p
}

// applyPredictor undoes TIFF (2) or PNG (10-15) prediction.
func applyPredictor(data []byte, params *raw.DictObj) ([]byte, error) {
	p := readPredictorParams(params)
	switch {
	case p.predictor <= 1:
		return data, nil
	case p.predictor == 2:
		return tiffPredict(data, p)
	case p.predictor >= 10:
		return pngPredict(data, p)
	default:
		return nil, ErrPredictor
	}
}

func (p predictorParams) rowBytes() int { return (p.colors*p.bpc*p.columns + 7) / 8 }
func (p predictorParams) pixelBytes() int {
	if n := (p.colors*p.bpc + 7) / 8; n > 0 {
		return n
	}
	return 1
}

func pngPredict(data []byte, p predictorParams) ([]byte, error) {
	rowLen := p.rowBytes()
	bpp := p.pixelBytes()
	stride := rowLen + 1
	out := make([]byte, 0, len(data)/stride*rowLen)
	prev := make([]byte, rowLen)
	cur := make([]byte, rowLen)
	for off := 0; off+1 < len(data); off += stride {
		end := off + stride
		if end > len(data) {
			// short last row
			end = len(data)
		}
		filter := data[off]
		row := data[off+1 : end]
		for i := range cur {
			cur[i] = 0
		}
		copy(cur, row)
		switch filter {
		case 0:
		case 1: // Sub
			for i := bpp; i < rowLen; i++ {
				cur[i] += cur[i-bpp]
			}
		case 2: // Up
			for i := 0; i < rowLen; i++ {
				cur[i] += prev[i]
			}
		case 3: // Average
			for i := 0; i < rowLen; i++ {
				var left byte
				if i >= bpp {
					left = cur[i-bpp]
				}
				cur[i] += byte((int(left) + int(prev[i])) / 2)
			}
		case 4: // Paeth
			for i := 0; i < rowLen; i++ {
				var left, upLeft byte
				if i >= bpp {
					left = cur[i-bpp]
					upLeft = prev[i-bpp]
				}
				cur[i] += paeth(left, prev[i], upLeft)
			}
		default:
			return nil, ErrPredictor
		}
		out = append(out, cur[:len(row)]...)
		prev, cur = cur, prev
	}
	return out, nil
}

func paeth(a, b, c byte) byte {
	p := int(a) + int(b) - int(c)
	pa, pb, pc := abs(p-int(a)), abs(p-int(b)), abs(p-int(c))
	switch {
	case pa <= pb && pa <= pc:
		return a
	case pb <= pc:
		return b
	default:
		return c
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func tiffPredict(data []byte, p predictorParams) ([]byte, error) {
	if p.bpc != 8 {
		// only byte-aligned samples are supported
		return nil, ErrPredictor
	}
	rowLen := p.rowBytes()
	out := append([]byte(nil), data...)
	for off := 0; off < len(out); off += rowLen {
		end := off + rowLen
		if end > len(out) {
			end = len(out)
		}
		for i := off + p.colors; i < end; i++ {
			out[i] += out[i-p.colors]
		}
	}
	return out, nil
}
