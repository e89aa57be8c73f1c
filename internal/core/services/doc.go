// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters).
//
//   - SyncEngine: paginated, resumable, single-flight course sync
//   - Indexer: dirty unit chunking, embedding and atomic index replace
//   - QAEngine: access-filtered retrieval with confidence scoring
//   - Scheduler: periodic sync of every known user
//
// Services are pure Go with no CGO or external service dependencies.
package services
