// Package services holds cross-cutting helpers shared by pipeline stages:
// sentinel error markers with context-aware wrapping, and context annotation
// helpers for job, stage, and correlation identifiers.
//
// Subpackages wrap the external command-line tools the pipeline shells out to.
package services
