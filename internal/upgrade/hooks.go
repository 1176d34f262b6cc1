package upgrade

// Data migration hooks are registered here.
// Add new hooks when a schema migration requires Go-based data transformation.
//
// Example:
//
//	func init() {
//		RegisterDataHook(2, "002_backfill_api_key_labels", func(ctx context.Context, db *sql.DB) error {
//			// transform data after migration 0002 is applied
//			return nil
//		})
//	}

// RequiredSchemaVersion is the highest SQL migration number under
// migrations/ this binary expects applied before it will serve traffic.
const RequiredSchemaVersion = 2
