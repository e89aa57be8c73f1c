// Package domain defines the core business entities for classmate.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Course: A classroom course mirrored from the remote platform
//   - ContentUnit: A text-bearing artefact (assignment, announcement, material)
//   - Chunk: A bounded, embedded window of a ContentUnit
//   - SyncRun: One append-only record of a course synchronisation
//   - Answer: The attributed, confidence-scored result of a question
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
