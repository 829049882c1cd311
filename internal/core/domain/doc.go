// Package domain defines the core business entities for catalog-sync.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - RemoteRecord: A record as listed by the remote catalog
//   - DetailRecord: The full payload for one remote record
//   - LocalRecord: The reconciled row held by the local store
//   - SyncRun: The aggregate result of one sync invocation
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
