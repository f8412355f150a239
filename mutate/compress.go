package mutate

import (
	"context"
	"fmt"
	"strings"

	"github.com/wudi/pdftools/document"
	"github.com/wudi/pdftools/optimize"
)

type Quality int

const (
	// QualityLow keeps the classic layout.
	QualityLow Quality = iota
	// QualityMedium packs objects into object streams behind a
	// cross-reference stream.
	QualityMedium
	// QualityHigh adds Flate for unfiltered streams, merges duplicate
	// streams and drops unreachable objects.
	QualityHigh
)

func (q Quality) String() string {
	switch q {
	case QualityLow:
		return "low"
	case QualityHigh:
		return "high"
	default:
		return "medium"
	}
}

// ParseQuality maps "low", "medium" and "high". Anything else is medium.
func ParseQuality(s string) Quality {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return QualityLow
	case "high":
		return QualityHigh
	default:
		return QualityMedium
	}
}

// Compress sets doc's save preferences for q and returns doc. Images are
// never recompressed. QualityHigh merges duplicate streams and drops
// unreachable objects right away; that is the only step that can fail,
// and only when ctx is done.
func Compress(ctx context.Context, doc *document.Document, q Quality) (*document.Document, error) {
	switch q {
	case QualityLow:
		doc.SaveOptions = document.SaveOptions{}
	case QualityHigh:
		doc.SaveOptions = document.SaveOptions{
			ObjectStreams:   true,
			CompressStreams: true,
			Deduplicate:     true,
			GarbageCollect:  true,
		}
		opt := optimize.New(optimize.Config{DeduplicateStreams: true, GarbageCollect: true})
		if err := opt.Optimize(ctx, doc); err != nil {
			return nil, fmt.Errorf("compress: %w", err)
		}
	default:
		doc.SaveOptions = document.SaveOptions{ObjectStreams: true}
	}
	return doc, nil
}
