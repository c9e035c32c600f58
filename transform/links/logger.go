package links

import (
	"github.com/jrife/vault/transform"
	"go.uber.org/zap"
)

// Logger passes text through unchanged and logs each pass at debug level
func Logger(logger *zap.Logger) transform.Link {
	if logger == nil {
		logger = zap.L()
	}

	return transform.LinkFuncs{
		Fwd: func(text string) (string, error) {
			logger.Debug("transform", zap.Stringer("direction", transform.Forward), zap.Int("length", len(text)))

			return text, nil
		},
		Bwd: func(text string) (string, error) {
			logger.Debug("transform", zap.Stringer("direction", transform.Backward), zap.Int("length", len(text)))

			return text, nil
		},
	}
}
