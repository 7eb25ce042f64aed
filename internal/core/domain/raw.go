package domain

// RawDocument represents opaque bytes read from the corpus.
// It is the parser input before normalisation.
type RawDocument struct {
	// URI is the original location (file path).
	URI string

	// MIMEType is the content type (e.g., "application/pdf").
	MIMEType string

	// Content is the raw bytes.
	Content []byte

	// Metadata contains scanner-provided key-value pairs.
	Metadata map[string]any
}

// ChangeType represents the type of corpus change.
type ChangeType int

const (
	// ChangeCreated indicates a new document.
	ChangeCreated ChangeType = iota

	// ChangeUpdated indicates a modified document.
	ChangeUpdated

	// ChangeDeleted indicates a removed document.
	ChangeDeleted
)

// String returns a short label for the change.
func (c ChangeType) String() string {
	switch c {
	case ChangeCreated:
		return "created"
	case ChangeUpdated:
		return "updated"
	case ChangeDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// CorpusChange is emitted when a file under the corpus root changes.
// The index is never updated automatically; the change only prompts a rebuild.
type CorpusChange struct {
	Type ChangeType
	Path string
}
