// Package store decorates cctv.MetadataStore implementations with the
// retry policy the pipeline and read path rely on. Concrete stores live in
// the postgres and memory subpackages.
package store
