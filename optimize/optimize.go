// Package optimize shrinks a raw object graph by combining indirect objects
// that serialise identically. Merging documents that share fonts or images
// is the common case.
package optimize

import (
	"context"

	"github.com/wudi/pdfstudio/ir/raw"
	"github.com/wudi/pdfstudio/observability"
)

type Config struct {
	// CombineDuplicateStreams folds streams with equal dictionaries and
	// data: font files, images, and repeated content.
	CombineDuplicateStreams bool
	// CombineResources folds resource dictionaries (fonts, descriptors,
	// graphics states, encodings) that are equal once their references
	// have been combined.
	CombineResources bool
	Logger           observability.Logger
}

// DefaultConfig enables every pass.
func DefaultConfig() Config {
	return Config{CombineDuplicateStreams: true, CombineResources: true}
}

// Stats reports what Optimize changed.
type Stats struct {
	Before, After int
	Combined      int
}

type Optimizer struct {
	config Config
	log    observability.Logger
}

func New(config Config) *Optimizer {
	return &Optimizer{config: config, log: observability.OrNop(config.Logger)}
}

// Optimize rewrites doc in place. Pages, the page tree, the catalog and
// form fields are never combined.
func (o *Optimizer) Optimize(ctx context.Context, doc *raw.Document) (Stats, error) {
	stats := Stats{Before: len(doc.Objects)}
	if o.config.CombineDuplicateStreams || o.config.CombineResources {
		n, err := o.combineObjects(ctx, doc)
		if err != nil {
			return stats, err
		}
		stats.Combined = n
	}
	stats.After = len(doc.Objects)
	o.log.Debug("optimized", observability.Int("before", stats.Before),
		observability.Int("after", stats.After), observability.Int("combined", stats.Combined))
	return stats, nil
}
