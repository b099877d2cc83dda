// Package diag defines the diagnostic model shared by the manifest loader,
// the hook analyzer, and the relocation checker.
//
// Diagnostic is the central record: severity, a stable numeric code, a short
// message, a primary source span, and optional notes pointing at related
// declarations. Producers emit through a Reporter so they stay decoupled from
// storage; BagReporter aggregates into a Bag, which supports sorting,
// deduplication, and capping for deterministic output.
//
// The package performs no formatting or IO. Rendering lives in
// internal/diagfmt; orchestration lives in internal/driver.
package diag
