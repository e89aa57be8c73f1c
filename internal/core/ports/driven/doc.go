// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Interfaces
//
//   - RemoteClient: Paginated listing of the remote classroom platform
//   - RemoteClientFactory: Builds a RemoteClient from a user's credentials
//   - CourseStore: Course, membership and cursor persistence
//   - ContentStore: ContentUnit and submission persistence with page commits
//   - SyncRunStore: Append-only sync run history
//   - IndexStore: Chunk vectors with access-filtered similarity search
//   - EmbeddingService: Pinned embedding model
//   - Chunker: Splits a ContentUnit into chunk windows
//   - CredentialsStore: OAuth token persistence
//   - AccessResolver: Resolves a user's accessible-course set
//   - ConfigStore: Application configuration
//   - Clock: Time source for backoff and run timestamps
//
// # Import Rules
//
//   - Can Import: internal/core/domain, standard library
//   - Cannot Import: services, adapters, external dependencies
package driven
