// Package google provides shared infrastructure for the Google Classroom connector.
//
// It contains:
//   - A persisting oauth2.TokenSource backed by the credentials store
//   - Service construction for the Classroom API
//   - Classification of Google API errors into listing signals and domain errors
//   - Per-user rate limiting to respect Classroom quotas
//
// # OAuth2 Scopes
//
// The connector only reads. It requests:
//   - https://www.googleapis.com/auth/classroom.courses.readonly
//   - https://www.googleapis.com/auth/classroom.announcements.readonly
//   - https://www.googleapis.com/auth/classroom.coursework.me.readonly
//   - https://www.googleapis.com/auth/classroom.coursework.students.readonly
//   - https://www.googleapis.com/auth/classroom.courseworkmaterials.readonly
//
// Token issuance happens outside classmate. Stored tokens are refreshed here.
package google
