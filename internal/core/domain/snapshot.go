package domain

import "time"

// Snapshot is an immutable export of the sanitized catalog written to a durable artifact.
// The next export supersedes it; nothing mutates it in place.
type Snapshot struct {
	// Path locates the artifact (a file path for the file store)
	Path string `json:"path"`

	// Digest is the hex blake2b-256 digest of the artifact bytes
	Digest string `json:"digest"`

	RecordCount int       `json:"recordCount"`
	CreatedAt   time.Time `json:"createdAt"`

	// Report summarizes sanitization of structured fields
	Report *SanitizeReport `json:"report,omitempty"`

	// ProductIDs lists the exported ids in artifact order
	ProductIDs []string `json:"productIds"`

	// ProductNames maps product id to name for agent instructions and presentation
	ProductNames map[string]string `json:"productNames,omitempty"`
}

// HasProduct reports whether the snapshot contains the given product id.
func (s *Snapshot) HasProduct(id string) bool {
	for _, pid := range s.ProductIDs {
		if pid == id {
			return true
		}
	}
	return false
}
