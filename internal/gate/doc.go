// ABOUTME: Package documentation for the admin access gate
// ABOUTME: Describes the password check, attempt counting, lockout, and session rules

// Package gate decides whether the admin view may render, based on a password
// check against a stored digest, with attempt counting, a time-boxed lockout,
// and a time-boxed session once access is granted.
//
// # State
//
// The gate keeps all of its state in an injected ephemeral Bucket under three
// keys:
//
//   - adminAuth: the opaque session token minted on successful authentication
//   - adminAuthTime: the session issue time as a millisecond timestamp string
//   - loginAttempts: JSON {count, lockoutUntil} tracking failed attempts
//
// Because the bucket is ephemeral, every state the gate can reach is discarded
// when the process ends; the machine restarts in the logged-out state.
//
// # Rules
//
//   - A wrong password increments the attempt counter. The fifth consecutive
//     failure locks the gate for 15 minutes; during lockout every attempt is
//     rejected without comparison and without consuming an attempt.
//   - A correct password clears the counter and mints a session valid for
//     30 minutes.
//   - Expiry is lazy. Sessions and lockouts are checked against the clock on
//     read; no background timer deletes anything.
//
// Authentication failure is a return value (AuthResult), never an error. Only
// bucket access failures propagate as errors.
package gate
