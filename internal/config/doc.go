// ABOUTME: Package documentation for formgate configuration
// ABOUTME: Covers the YAML server config and the sealed settings blob

// Package config loads the formgate server configuration and manages the
// sealed settings blob.
//
// The server configuration is a YAML file with ${VAR} environment expansion,
// locating the settings blob, its key file, and the submission spool.
//
// The settings blob is the durable store for the two webhook URLs and the
// admin password digest. It is sealed with XChaCha20-Poly1305 using a key
// derived from a key file next to the server's data. A blob that fails to
// open is reported as ErrSettingsCorrupt; it is never silently reset, so key
// mix-ups and corruption stay visible.
package config
