// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - CatalogClient: Lists and fetches records from the remote catalog
//   - RecordStore: Local record persistence
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - ImageMirror: Copies artwork to S3-compatible storage
//   - Notifier: Delivers run summaries after a sync
//   - HistoryStore: Keeps scheduled run results
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or connector package
package driven
