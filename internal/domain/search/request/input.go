package request

import "github.com/kailas-cloud/mmdex/internal/domain"

// Input is the raw search request as decoded at the HTTP boundary.
// It is one of JSONInput or MultipartInput.
type Input interface {
	isInput()
}

// JSONInput is an application/json search body.
type JSONInput struct {
	URL         *string
	Description *string
	Threshold   *float64
	TopK        *int
}

func (JSONInput) isInput() {}

// Upload is an inline image from a multipart form.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// MultipartInput is a multipart/form-data search body.
type MultipartInput struct {
	Image       *Upload
	Description *string
	Threshold   *float64
	TopK        *int
}

func (MultipartInput) isInput() {}

// Validate checks the multipart form before any image is staged.
func (m MultipartInput) Validate() error {
	hasImage := m.Image != nil && len(m.Image.Data) > 0
	if !hasImage && trimmed(m.Description) == "" {
		return domain.Validationf("image or description is required")
	}
	_, err := NewParams(m.Threshold, m.TopK)
	return err
}

// HasImage reports whether the form carries a non-empty image part.
func (m MultipartInput) HasImage() bool { return m.Image != nil && len(m.Image.Data) > 0 }

// Staged is an uploaded image parked in temporary storage for the duration of
// one search. URL is fetchable like any document image URL.
type Staged struct {
	Key string
	URL string
}
