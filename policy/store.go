/*
store.go - Persistence interfaces for policy rules

PURPOSE:
  Defines what the domain needs from persistence, not how it is stored.
  The import pipeline needs only the narrow Store (existence probe plus
  insert); the admin API uses the wider AdminStore. Implementations:

    store/sqlite: production SQLite store
    store/memory: in-memory store for tests (with failure injection)

CONVENTIONS:
  - FindRule returns (nil, nil) when no rule matches; a non-nil error
    means the store itself failed
  - InsertRule returns the stored record (with store-assigned timestamps)
    and ErrRuleExists when the (city, year, period) triple is taken

SEE ALSO:
  - ingest/importer.go: consumes Store
  - api/handlers.go: consumes AdminStore
*/
package policy

import "context"

// Store is the narrow interface the import pipeline reconciles against.
type Store interface {
	// FindRule returns the persisted rule for the triple, or (nil, nil)
	// when none exists.
	FindRule(ctx context.Context, city string, year int, period Period) (*Rule, error)

	// InsertRule persists a rule and returns the stored record.
	InsertRule(ctx context.Context, rule Rule) (*Rule, error)
}

// AdminStore adds the list/get/delete operations the admin API needs.
type AdminStore interface {
	Store

	ListRules(ctx context.Context) ([]Rule, error)
	GetRule(ctx context.Context, id string) (*Rule, error)
	DeleteRule(ctx context.Context, id string) error
}
