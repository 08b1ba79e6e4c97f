package history

import (
	"context"
	"fmt"

	"github.com/matheus3301/storechat/internal/chat"
	"github.com/matheus3301/storechat/internal/logging"
	"go.uber.org/zap"
)

// DefaultLimit caps how many messages one fetch returns.
const DefaultLimit = 200

// Loader fetches the persisted history of a conversation.
type Loader struct {
	backend Backend
	limit   int
	logger  *zap.Logger
}

// NewLoader creates a loader. A non-positive limit uses DefaultLimit.
func NewLoader(backend Backend, limit int, logger *zap.Logger) *Loader {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Loader{backend: backend, limit: limit, logger: logging.OrNop(logger)}
}

// Load returns the persisted messages of key in ascending order.
func (l *Loader) Load(ctx context.Context, key string) ([]chat.Record, error) {
	if key == "" {
		return nil, fmt.Errorf("load history: empty conversation key")
	}
	records, err := l.backend.FetchHistory(ctx, key, l.limit)
	if err != nil {
		return nil, fmt.Errorf("load history %s: %w", key, err)
	}
	l.logger.Debug("history loaded", zap.String("key", key), zap.Int("count", len(records)))
	return records, nil
}
