// ABOUTME: Package documentation for the formgate HTTP surface
// ABOUTME: Describes the public form, the gated admin view, and session handling

// Package web serves the two faces of formgate: the public lead-capture form
// and the password-gated admin view.
//
// Submissions are forwarded to the external automation webhook; when that
// fails they are queued in the local spool so the visitor never sees the
// outage. The admin view fetches its lead list live from the read webhook on
// every load.
//
// Admin access is decided entirely by the gate package. The session cookie is
// an HS256-signed wrapper around the gate's opaque session token, signed with
// a per-process random secret; the 30-minute validity window, the attempt
// counter, and the lockout all live in the gate, checked lazily on every
// request.
package web
