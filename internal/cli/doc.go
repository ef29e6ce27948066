// Package cli holds the error types and output helpers shared by the sfauth
// commands.
//
// AuthRequiredError and AuthFailedError carry user-facing remediation text
// and map to the semantic exit codes in cmd (2 and 3 respectively).
// ClassifyConnectionError buckets transport failures so status output can
// name the kind of problem instead of dumping a raw dial error.
// PlainTableWriter renders pipe-friendly column output for scripting.
package cli
