package dtb

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// Per-blob outcome of an extraction run, in discovery order
type ExtractionResult struct {
	Index    int
	Filename string
	Decoded  bool
}

// Extractor runs the whole pipeline for one input buffer: scan, split,
// decode, name, write. The decoder is pluggable so tests don't need a real
// dtc installed.
type Extractor struct {
	Decoder Decoder
	Logger  zerolog.Logger
}

func NewExtractor(decoder Decoder) *Extractor {
	return &Extractor{Decoder: decoder, Logger: zerolog.Nop()}
}

func (e *Extractor) decoder() Decoder {
	if e.Decoder == nil {
		return &DtcDecoder{}
	}
	return e.Decoder
}

// Read the input file and extract every embedded blob into outdir. An
// unreadable input is the only fatal error; see Extract for the rest.
func (e *Extractor) ExtractFile(input string, outdir string) ([]ExtractionResult, error) {
	data, err := os.ReadFile(input)
	if err != nil {
		return nil, fmt.Errorf("read input %s: %w", input, err)
	}
	return e.Extract(data, outdir)
}

// Extract every embedded blob from data into outdir, one file per blob,
// named from its decoded metadata (or the index fallback when decoding
// fails). Blobs are processed strictly in discovery order since both the
// fallback index and the collision counters depend on it. Finding no blobs
// is not an error: nothing is written, not even the output folder. A failed
// write is logged and the remaining blobs are still attempted.
func (e *Extractor) Extract(data []byte, outdir string) ([]ExtractionResult, error) {
	offsets := ScanMagic(data)
	results := make([]ExtractionResult, 0, len(offsets))
	if len(offsets) == 0 {
		e.Logger.Info().Msg("No device tree blobs found")
		return results, nil
	}
	e.Logger.Info().Int("count", len(offsets)).Msg("Found device tree blobs, extracting")
	if err := os.MkdirAll(outdir, 0770); err != nil {
		return nil, fmt.Errorf("create output folder %s: %w", outdir, err)
	}
	registry := make(NameRegistry)
	decoder := e.decoder()
	for i, region := range SplitRegions(offsets, len(data)) {
		chunk := region.Bytes(data)
		text, decoded := decoder.Decode(chunk)
		var name string
		if decoded {
			name = registry.Resolve(ExtractTokens(text).CanonicalName())
			e.Logger.Info().Int("index", i).Str("name", name).Msg("Extracted")
		} else {
			name = FallbackName(i)
			e.Logger.Warn().Int("index", i).Str("name", name).Msg("Extracted (parsing failed)")
		}
		if err := os.WriteFile(filepath.Join(outdir, name), chunk, 0644); err != nil {
			e.Logger.Warn().Err(err).Str("name", name).Msg("Couldn't write blob")
		}
		results = append(results, ExtractionResult{Index: i, Filename: name, Decoded: decoded})
	}
	return results, nil
}
