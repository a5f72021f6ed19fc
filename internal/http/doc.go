// Package http provides HTTP handlers and middleware for the scheduling store API.
//
// The router exposes the following endpoints:
//   - GET /sessions/{id}/schedule: returns {"scheduling_status","insights":{"session_datetime",
//     "meeting_link","coach_id"}}. Sessions without a stored schedule report not_scheduled.
//   - POST /sessions/{id}/schedule: body {"session_datetime"} (RFC 3339). Moves the session to
//     pending. 422 for a past or malformed instant, 409 when a schedule already exists.
//   - PUT /sessions/{id}/schedule: body {"status":"completed"}. Idempotent completion write;
//     409 when the session was never scheduled.
//   - PUT /sessions/{id}/schedule/assignment: body {"coach_id","meeting_link"}. Assigner only.
//   - DELETE /sessions/{id}/schedule: resets a session to not_scheduled. Assigner only.
//   - GET /schedules?status=&coach_id=&limit=: lists stored schedules. Assigner only.
//   - GET /healthz and GET /metrics.
//
// Assigner endpoints authenticate the X-Assigner-Key header. Every response
// carries X-Request-ID and every error body has the shape {"error": "..."}.
//
// Request/response DTOs live alongside their respective handlers so tests and
// documentation share the same ground truth.
package http
