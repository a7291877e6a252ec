// Package cli constructs the deps-update command-line interface, wiring the
// Cobra command hierarchy, configuration loader, and structured logging
// primitives around the dependency update workflow.
package cli
