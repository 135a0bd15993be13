package store

// ErrNotFound is returned when a document or partition doesn't exist.
type ErrNotFound struct {
	Index string
	ID    string
}

func (e ErrNotFound) Error() string {
	switch {
	case e.ID != "":
		return "document not found: " + e.Index + "/" + e.ID
	case e.Index != "":
		return "index not found: " + e.Index
	default:
		return "not found"
	}
}
