// Package ports defines the interfaces that connect the rescript actions to
// infrastructure adapters.
//
// # Port Interfaces
//
//   - [Fetcher]: retrieves remote database files with retry and verification
//   - [RunRepository]: persists action runs and downloads in the catalog
//   - [Logger]: structured logging abstraction
//   - [HTTPClient]: HTTP request abstraction for dependency injection
//
// Sources (internal/sources) and curation steps (internal/curate) depend
// only on these interfaces. Adapters (internal/adapters) implement them with
// net/http, SQLite and zerolog.
package ports
