package connectorsvc

import "time"

// OperationLimit is one row of the static (platform, operation) → gate
// config table (spec §4.F), sourced verbatim from RATE_LIMIT_CONFIGS in
// original_source/services/sniper/connectors/connector_service.py.
type OperationLimit struct {
	MaxRequests int
	Window      time.Duration
	LockTimeout time.Duration
}

// rateLimitConfigs is keyed by platform then operation name. An absent
// (platform, operation) pair means the operation bypasses gating entirely
// (spec §4.F gate algorithm step 1).
var rateLimitConfigs = map[string]map[string]OperationLimit{
	"shortvideo": {
		"login":                 {MaxRequests: 3, Window: 60 * time.Second, LockTimeout: 120 * time.Second},
		"get_note_detail":       {MaxRequests: 10, Window: 60 * time.Second, LockTimeout: 180 * time.Second},
		"harvest_user_content":  {MaxRequests: 5, Window: 60 * time.Second, LockTimeout: 300 * time.Second},
		"search_and_extract":    {MaxRequests: 10, Window: 60 * time.Second, LockTimeout: 180 * time.Second},
		"publish_content":       {MaxRequests: 2, Window: 60 * time.Second, LockTimeout: 300 * time.Second},
	},
	"messaging": {
		"get_note_detail":      {MaxRequests: 10, Window: 60 * time.Second, LockTimeout: 180 * time.Second},
		"harvest_user_content": {MaxRequests: 5, Window: 60 * time.Second, LockTimeout: 300 * time.Second},
	},
	"videoshare": {
		"search_and_extract": {MaxRequests: 10, Window: 60 * time.Second, LockTimeout: 180 * time.Second},
	},
}

// limitFor looks up the gate config for (platform, operation). ok is false
// when no row exists, meaning the caller must bypass gating.
func limitFor(platform, operation string) (OperationLimit, bool) {
	platformLimits, ok := rateLimitConfigs[platform]
	if !ok {
		return OperationLimit{}, false
	}
	limit, ok := platformLimits[operation]
	return limit, ok
}
