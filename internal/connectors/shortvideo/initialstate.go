// Package shortvideo implements the client-state-dump extraction strategy
// (spec §4.E strategy 1) against a short-video/lifestyle social network,
// grounded on original_source/services/sniper/connectors/xiaohongshu.py.
package shortvideo

import (
	"context"
	"fmt"
	"time"

	"github.com/nextlevelbuilder/harvestgate/internal/pagedriver"
)

// InitialStateMaxAttempts and InitialStateDelay implement spec §9's
// "initial-state polling" design note: (max_attempts=3, delay=250ms).
const (
	InitialStateMaxAttempts = 3
	InitialStateDelay       = 250 * time.Millisecond
)

// extractInitialState walks window.__INITIAL_STATE__ at keyPath (dot
// separated, e.g. "user.notes" or "search.feeds"), preferring `.value`
// over `._value` as the original's `_extract_initial_state` does, and
// polling up to InitialStateMaxAttempts times since the client-side store
// populates asynchronously after DOMContentLoaded.
func extractInitialState(ctx context.Context, driver pagedriver.Driver, keyPath string) (any, error) {
	script := initialStateScript(keyPath)
	for attempt := 0; attempt < InitialStateMaxAttempts; attempt++ {
		v, err := driver.Evaluate(ctx, script)
		if err != nil {
			return nil, fmt.Errorf("shortvideo: evaluate initial state %q: %w", keyPath, err)
		}
		if v != nil {
			return v, nil
		}
		if attempt < InitialStateMaxAttempts-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(InitialStateDelay):
			}
		}
	}
	return nil, nil
}

// initialStateScript builds the guarded-access JS the original Python
// assembles per key segment, so a missing intermediate key returns null
// instead of throwing.
func initialStateScript(keyPath string) string {
	return fmt.Sprintf(`() => {
		try {
			const target = window.__INITIAL_STATE__ && window.__INITIAL_STATE__.%s;
			if (!target) return null;
			return target.value !== undefined ? target.value : target._value;
		} catch (e) {
			return null;
		}
	}`, keyPath)
}
