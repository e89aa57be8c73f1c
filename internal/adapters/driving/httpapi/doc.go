// Package httpapi exposes the sync and question-answering services over HTTP.
//
// Routes:
//
//	POST /courses/sync        sync the caller's courses, or one course
//	POST /qa                  answer a question from the caller's courses
//	GET  /courses/{id}/runs   sync run history of an accessible course
//	GET  /healthz             liveness
//
// The caller's identity comes from an Authenticator; the default trusts a
// header set by the gateway in front of this server.
package httpapi
