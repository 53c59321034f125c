// Package lifecycle provides server startup and shutdown orchestration.
//
// The Service loads runtime settings and enabled extensions, starts the
// background jobs and the HTTP servers, then tears everything down in
// reverse order once the context is cancelled or a server fails.
package lifecycle
