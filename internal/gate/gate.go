// ABOUTME: Access gate with password digest check, attempt lockout, and sessions
// ABOUTME: Holds all state in an injected ephemeral bucket under fixed keys

package gate

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/formgate/formgate/internal/bucket"
)

// Ephemeral bucket keys used by the gate.
const (
	KeySession     = "adminAuth"     // opaque session token
	KeySessionTime = "adminAuthTime" // millisecond timestamp string
	KeyAttempts    = "loginAttempts" // JSON {count, lockoutUntil}
)

// Gate policy constants.
const (
	// MaxAttempts is the number of consecutive failed attempts that triggers
	// a lockout.
	MaxAttempts = 5

	// LockoutDuration is how long the gate stays locked after MaxAttempts
	// consecutive failures.
	LockoutDuration = 15 * time.Minute

	// SessionDuration is how long a minted session stays valid.
	SessionDuration = 30 * time.Minute
)

// ErrNotConfigured is returned by Authenticate when no password digest is
// configured. Callers should direct the user to the settings flow rather than
// treat this as a failed attempt.
var ErrNotConfigured = errors.New("no admin password configured")

// AuthResult is the outcome of a single authentication attempt. Failure is a
// value, not an error: only bucket access failures surface as errors.
type AuthResult struct {
	// OK is true when the attempted password matched and a session was minted.
	OK bool

	// Token is the minted session token. Set only when OK is true.
	Token string

	// Message is a human-readable description of the outcome, suitable for
	// inline display.
	Message string

	// AttemptsRemaining is how many attempts are left before lockout. Set
	// only on a counted failure.
	AttemptsRemaining int

	// Locked reports that the gate is locked out, either because the attempt
	// arrived during an active lockout or because this failure triggered one.
	Locked bool

	// RetryAfterSeconds is the remaining lockout time, rounded up. Set only
	// when Locked is true.
	RetryAfterSeconds int
}

// attemptState is the JSON shape stored under KeyAttempts. LockoutUntil is a
// millisecond timestamp, zero when no lockout is pending.
type attemptState struct {
	Count        int   `json:"count"`
	LockoutUntil int64 `json:"lockoutUntil,omitempty"`
}

// Gate guards the admin view. All state lives in the injected bucket; the
// mutex serializes the read-modify-write of the attempt counter so concurrent
// login posts cannot race past the lockout.
type Gate struct {
	mu     sync.Mutex
	bucket bucket.Bucket
	now    func() time.Time
	logger *slog.Logger
}

// New creates a gate over the given ephemeral bucket.
func New(b bucket.Bucket) *Gate {
	return &Gate{
		bucket: b,
		now:    time.Now,
		logger: slog.Default().With("component", "gate"),
	}
}

// Digest returns the stored form of a password: the lowercase hex encoding of
// its SHA-256 digest.
func Digest(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

// Authenticate checks attemptedPassword against storedHash.
//
// During an active lockout the attempt is rejected without comparison and
// without consuming an attempt. A mismatch increments the counter; the
// MaxAttempts-th consecutive mismatch starts a lockout. A match clears the
// counter and mints a session, whose token is returned in the result.
//
// Returns ErrNotConfigured when storedHash is empty.
func (g *Gate) Authenticate(attemptedPassword, storedHash string) (AuthResult, error) {
	if storedHash == "" {
		return AuthResult{}, ErrNotConfigured
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	state, err := g.readAttempts()
	if err != nil {
		return AuthResult{}, err
	}

	now := g.now()
	if state.LockoutUntil > 0 {
		if remaining := remainingSeconds(state.LockoutUntil, now); remaining > 0 {
			return AuthResult{
				Locked:            true,
				RetryAfterSeconds: remaining,
				Message:           lockoutMessage(remaining),
			}, nil
		}
		// Lockout has passed; the counter self-heals on read.
		state = attemptState{}
		if err := g.bucket.Remove(KeyAttempts); err != nil {
			return AuthResult{}, err
		}
	}

	attempted := Digest(attemptedPassword)
	if subtle.ConstantTimeCompare([]byte(attempted), []byte(storedHash)) == 1 {
		if err := g.bucket.Remove(KeyAttempts); err != nil {
			return AuthResult{}, err
		}
		token, err := g.startSession(now)
		if err != nil {
			return AuthResult{}, err
		}
		g.logger.Info("admin authenticated")
		return AuthResult{OK: true, Token: token, Message: "Access granted"}, nil
	}

	state.Count++
	if state.Count >= MaxAttempts {
		state.LockoutUntil = now.Add(LockoutDuration).UnixMilli()
		if err := g.writeAttempts(state); err != nil {
			return AuthResult{}, err
		}
		remaining := remainingSeconds(state.LockoutUntil, now)
		g.logger.Warn("admin locked out", "attempts", state.Count)
		return AuthResult{
			Locked:            true,
			RetryAfterSeconds: remaining,
			Message:           lockoutMessage(remaining),
		}, nil
	}

	if err := g.writeAttempts(state); err != nil {
		return AuthResult{}, err
	}
	left := MaxAttempts - state.Count
	g.logger.Info("failed admin login", "attempts_remaining", left)
	return AuthResult{
		AttemptsRemaining: left,
		Message:           attemptsMessage(left),
	}, nil
}

// IsSessionValid reports whether a live session exists. An expired session is
// deleted as a side effect, so a second call after expiry is still false.
func (g *Gate) IsSessionValid() (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok, err := g.validSession()
	return ok, err
}

// MatchesSession reports whether token names the current live session. Expiry
// is checked exactly as in IsSessionValid.
func (g *Gate) MatchesSession(token string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	current, ok, err := g.validSession()
	if err != nil || !ok {
		return false, err
	}
	return subtle.ConstantTimeCompare([]byte(current), []byte(token)) == 1, nil
}

// IsLockedOut reports whether a lockout is active. A lockout that has passed
// clears the attempt counter as a side effect, so no separate reset is needed.
func (g *Gate) IsLockedOut() (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	state, err := g.readAttempts()
	if err != nil {
		return false, err
	}
	if state.LockoutUntil == 0 {
		return false, nil
	}
	if remainingSeconds(state.LockoutUntil, g.now()) > 0 {
		return true, nil
	}
	if err := g.bucket.Remove(KeyAttempts); err != nil {
		return false, err
	}
	return false, nil
}

// LockoutRemainingSeconds returns the remaining lockout time rounded up to
// whole seconds, or 0 when no lockout is active. Read-only; safe to poll.
func (g *Gate) LockoutRemainingSeconds() (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	state, err := g.readAttempts()
	if err != nil {
		return 0, err
	}
	if state.LockoutUntil == 0 {
		return 0, nil
	}
	return remainingSeconds(state.LockoutUntil, g.now()), nil
}

// ClearSession deletes the current session unconditionally (logout).
func (g *Gate) ClearSession() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.removeSession()
}

// startSession mints a fresh opaque token and records the issue time.
func (g *Gate) startSession(now time.Time) (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generating session token: %w", err)
	}
	token := hex.EncodeToString(raw)

	if err := g.bucket.Set(KeySession, token); err != nil {
		return "", err
	}
	if err := g.bucket.Set(KeySessionTime, strconv.FormatInt(now.UnixMilli(), 10)); err != nil {
		return "", err
	}
	return token, nil
}

// validSession returns the current session token if one exists and has not
// expired. An expired or malformed session is deleted before returning.
func (g *Gate) validSession() (string, bool, error) {
	token, ok, err := g.bucket.Get(KeySession)
	if err != nil {
		return "", false, err
	}
	if !ok {
		return "", false, nil
	}

	issuedRaw, ok, err := g.bucket.Get(KeySessionTime)
	if err != nil {
		return "", false, err
	}
	if !ok {
		return "", false, g.removeSession()
	}

	issuedMillis, err := strconv.ParseInt(issuedRaw, 10, 64)
	if err != nil {
		return "", false, g.removeSession()
	}

	issued := time.UnixMilli(issuedMillis)
	if g.now().Sub(issued) >= SessionDuration {
		return "", false, g.removeSession()
	}
	return token, true, nil
}

func (g *Gate) removeSession() error {
	if err := g.bucket.Remove(KeySession); err != nil {
		return err
	}
	return g.bucket.Remove(KeySessionTime)
}

func (g *Gate) readAttempts() (attemptState, error) {
	raw, ok, err := g.bucket.Get(KeyAttempts)
	if err != nil {
		return attemptState{}, err
	}
	if !ok {
		return attemptState{}, nil
	}

	var state attemptState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		// A corrupt counter cannot be trusted; start over rather than guess.
		return attemptState{}, g.bucket.Remove(KeyAttempts)
	}
	return state, nil
}

func (g *Gate) writeAttempts(state attemptState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encoding attempt counter: %w", err)
	}
	return g.bucket.Set(KeyAttempts, string(raw))
}

// remainingSeconds returns the whole seconds until the millisecond timestamp
// until, rounded up, or 0 if it has passed.
func remainingSeconds(until int64, now time.Time) int {
	millis := until - now.UnixMilli()
	if millis <= 0 {
		return 0
	}
	return int((millis + 999) / 1000)
}

func lockoutMessage(remaining int) string {
	if remaining >= 120 {
		return fmt.Sprintf("Too many failed attempts. Try again in %d minutes.", (remaining+59)/60)
	}
	return fmt.Sprintf("Too many failed attempts. Try again in %d seconds.", remaining)
}

func attemptsMessage(left int) string {
	if left == 1 {
		return "Incorrect password. 1 attempt remaining."
	}
	return fmt.Sprintf("Incorrect password. %d attempts remaining.", left)
}
