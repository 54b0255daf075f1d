// Package submission defines the data model shared across the processing
// pipeline: uploaded files, processing options, content fingerprints, and the
// recognition results the pipeline hands back to callers. The types are plain
// values with JSON tags so they can cross the worker process boundary without
// a separate wire schema.
package submission
