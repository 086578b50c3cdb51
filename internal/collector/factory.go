package collector

import (
	"context"
	"fmt"
	"time"

	"github.com/nishimvki/coverdiscover/internal/config"
	"github.com/nishimvki/coverdiscover/internal/domain"
)

// NewCollector selects the correct implementation based on the mode
func NewCollector(ctx context.Context, p config.Provider) (domain.Provider, error) {
	switch p.Mode {
	case config.ModeAPI:
		return NewAPIClient(ctx, p)
	case config.ModeMock:
		return NewMockClient(50 * time.Millisecond), nil
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownMode, p.Mode)
	}
}
