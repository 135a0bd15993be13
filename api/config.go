package api

// Config holds the API server settings.
type Config struct {
	// ListenAddr is the address the server listens on.
	ListenAddr string

	// CORSOrigins are the allowed cross-origin request origins.
	CORSOrigins []string

	// CodeVersion is stamped into search interaction records.
	CodeVersion string

	// CorpusPath is the corpus JSON file used by corpus reinitialization.
	CorpusPath string
}
