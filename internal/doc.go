// Package internal contains the implementation packages for cascade.
//
// # Package Organization
//
// The internal packages are organized by functional domain:
//
//   - types: Packages, release entries, plans and bump kinds
//   - interfaces: Collaborators the core depends on (registry, editor, detector, classifier)
//   - cargo: Workspace discovery, manifest metadata and manifest rewriting
//   - workspace: Dependency graph with reverse edges and topological order
//   - registry: Sparse index queries, publish command and version snapshots
//   - plan: Release planning, version arithmetic and plan validation
//   - planstore: Plan file persistence in TOML
//   - schedule: Dependency ordered batches
//   - publish: Batched concurrent publish executor with availability polling
//   - report: Run reports written to files or object storage
//   - git: Change detection since a revision
//   - classify: Compatibility classification of changed packages
//   - services: Operations composed for the command line
//   - config, logging, errors, watcher, version: Ambient infrastructure
//
// # Inter-Package Communication
//
// Data flows one way:
//
//   - cargo reads the workspace and workspace builds the graph
//   - plan combines the graph with a registry snapshot into a types.Plan
//   - planstore persists the plan between plan and apply
//   - schedule turns the publishing entries into batches
//   - publish executes the batches and returns a Summary for report
package internal
