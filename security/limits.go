package security

// Limits defines resource boundaries for parsing PDFs.
// These limits help prevent resource exhaustion (e.g., zip bombs, stack overflows).
type Limits struct {
	// Maximum decompressed stream size (prevent zip bombs). Default: 256 MB.
	MaxDecompressedSize int64

	// Maximum nesting depth of arrays and dictionaries. Default: 100.
	MaxNestingDepth int

	// Maximum XRef chain depth (Prev entries). Default: 50.
	MaxXRefDepth int

	// Maximum string length (bytes). Default: 10 MB.
	MaxStringLength int64

	// Maximum raw stream length (bytes). Default: 256 MB.
	MaxStreamLength int64

	// Maximum number of objects per document. Default: 8,388,607 (PDF 1.7 Annex C).
	MaxObjects int
}

// DefaultLimits returns a Limits struct with safe default values.
func DefaultLimits() Limits {
	return Limits{
		MaxDecompressedSize: 256 * 1024 * 1024,
		MaxNestingDepth:     100,
		MaxXRefDepth:        50,
		MaxStringLength:     10 * 1024 * 1024,
		MaxStreamLength:     256 * 1024 * 1024,
		MaxObjects:          8388607,
	}
}

// WithDefaults fills zero fields of l from DefaultLimits.
func (l Limits) WithDefaults() Limits {
	def := DefaultLimits()
	if l.MaxDecompressedSize == 0 {
		l.MaxDecompressedSize = def.MaxDecompressedSize
	}
	if l.MaxNestingDepth == 0 {
		l.MaxNestingDepth = def.MaxNestingDepth
	}
	if l.MaxXRefDepth == 0 {
		l.MaxXRefDepth = def.MaxXRefDepth
	}
	if l.MaxStringLength == 0 {
		l.MaxStringLength = def.MaxStringLength
	}
	if l.MaxStreamLength == 0 {
		l.MaxStreamLength = def.MaxStreamLength
	}
	if l.MaxObjects == 0 {
		l.MaxObjects = def.MaxObjects
	}
	return l
}
