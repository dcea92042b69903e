// Package cmd provides the command-line interface for cascade.
//
// This package implements all CLI commands using the Cobra framework.
//
// # Available Commands
//
//   - plan: Decide which packages to release and at which versions
//   - apply: Rewrite manifests to the plan and optionally publish in batches
//   - check: Lint package metadata and validate the stored plan
//   - status: Compare local versions with the registry
//   - changed: List packages changed since a git revision
//   - doctor: Diagnose tools, credentials and registry access
//   - config: Validate and show configuration
//   - version: Show build information
//
// # Command Examples
//
//	// Plan a release of core and its dependents
//	cascade plan core
//
//	// Plan a prerelease of everything changed since the last tag
//	cascade plan --since v1.4.0 --pre rc.1
//
//	// Publish with small batches and a pause between them
//	cascade apply --publish --batch-size 5 --batch-delay 30s
//
// # Configuration System
//
// Settings come from several sources with clear precedence:
//  1. Command-line flags (--max-concurrent, --root, etc.) - highest priority
//  2. Individual environment variables (CASCADE_APPLY_BATCH_SIZE, etc.)
//  3. The configuration file (.cascade.yml, --config or CASCADE_CONFIG_FILE)
//  4. Built-in defaults - lowest priority
//
// # Environment Variables
//
//	CASCADE_CONFIG_FILE: Path to a custom configuration file
//	CASCADE_REGISTRY_TOKEN: Registry token used by `apply --publish`
//	CASCADE_APPLY_MAX_CONCURRENT: Override publishes in flight per batch
//	And every other key following the CASCADE_<SECTION>_<OPTION> pattern
//
// Errors returned by commands carry the structured codes of the internal
// errors package; main exits non-zero on any of them.
package cmd
