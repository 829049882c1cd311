// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters).
//
// The sync orchestrator lists the remote catalog page by page on the
// calling goroutine. Records that lack detail are streamed into a single
// backfill queue served by a bounded worker pool, so detail fetches for
// early pages overlap with listing of later ones.
//
// Services are pure Go with no CGO dependencies.
package services
