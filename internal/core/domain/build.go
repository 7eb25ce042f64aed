package domain

import "time"

// BuildRequest describes one indexing run.
type BuildRequest struct {
	// CorpusPath is the directory to scan. Empty means the configured corpus.
	CorpusPath string

	// Rebuild drops and fully repopulates an existing collection.
	Rebuild bool

	// Progress, if set, is called after each document is processed.
	Progress func(BuildProgress)
}

// BuildProgress reports indexing progress.
type BuildProgress struct {
	Processed int
	Total     int
	Skipped   int
	Current   string
}

// DocumentOutcome records what happened to one document during a build.
type DocumentOutcome struct {
	// Path is the document path.
	Path string

	// Chunks is the number of chunks written.
	Chunks int

	// Err is set when the document was skipped.
	Err error
}

// Skipped returns true if the document could not be extracted.
func (o DocumentOutcome) Skipped() bool {
	return o.Err != nil
}

// BuildResult summarises an indexing run.
type BuildResult struct {
	// ChunksWritten is the number of chunks now in the collection.
	// On a short-circuit this is the existing count.
	ChunksWritten int

	// DocumentsIndexed is the number of documents that were extracted.
	DocumentsIndexed int

	// DocumentsSkipped is the number of documents that failed extraction.
	DocumentsSkipped int

	// DocumentsIgnored is the number of files outside the supported extensions.
	DocumentsIgnored int

	// Outcomes holds one entry per discovered document, in scan order.
	Outcomes []DocumentOutcome

	// ShortCircuited is true when an existing collection was reused.
	ShortCircuited bool

	// Collection is the collection metadata after the run.
	Collection *CollectionInfo

	// Warnings holds non-fatal notices, such as stale chunking settings.
	Warnings []string

	// Duration is the wall time of the run.
	Duration time.Duration
}

// SkippedOutcomes returns only the outcomes for skipped documents.
func (r *BuildResult) SkippedOutcomes() []DocumentOutcome {
	var out []DocumentOutcome
	for _, o := range r.Outcomes {
		if o.Skipped() {
			out = append(out, o)
		}
	}
	return out
}

// CorpusScan is the result of discovering documents under a corpus root.
type CorpusScan struct {
	// Documents are the files matching the supported extensions, in lexical path order.
	Documents []Document

	// Ignored counts regular files outside the supported extensions.
	Ignored int
}
