package ocr

import (
	"context"
	"fmt"
	"sync"
)

var (
	defaultMu     sync.RWMutex
	defaultEngine Engine = noopEngine{}
)

// DefaultEngine returns the registered engine. Without one the engine
// recognises nothing.
func DefaultEngine() Engine {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultEngine
}

// SetDefaultEngine registers engine as the default. Engines register
// themselves from init when their package is linked in.
func SetDefaultEngine(engine Engine) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if engine == nil {
		engine = noopEngine{}
	}
	defaultEngine = engine
}

// RecognizeAll runs engine over inputs. Batch engines get a single call;
// others are invoked sequentially.
func RecognizeAll(ctx context.Context, engine Engine, inputs []Input) ([]Result, error) {
	if b, ok := engine.(BatchEngine); ok {
		return b.RecognizeBatch(ctx, inputs)
	}
	results := make([]Result, 0, len(inputs))
	for _, in := range inputs {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		res, err := engine.Recognize(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("recognize %s: %w", in.ID, err)
		}
		results = append(results, res)
	}
	return results, nil
}

// IsNoop reports whether engine is the placeholder that recognises nothing.
func IsNoop(engine Engine) bool {
	_, ok := engine.(noopEngine)
	return ok
}

type noopEngine struct{}

func (noopEngine) Name() string { return "noop" }

func (noopEngine) Recognize(ctx context.Context, input Input) (Result, error) {
	return Result{InputID: input.ID}, nil
}
