// Package site defines the core types and collaborator interfaces shared by the
// enrichment orchestrator, the submission queue, and the storage adapters.
package site
