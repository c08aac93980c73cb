package chi

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"

	"github.com/oapi-codegen/runtime"

	"github.com/kailas-cloud/mmdex/internal/domain"
	"github.com/kailas-cloud/mmdex/internal/domain/search/request"
)

// Search handles POST /api/search with either a JSON body or a multipart form.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	in, ok := s.readSearchInput(w, r)
	if !ok {
		return
	}

	hits, err := s.search.Search(r.Context(), in)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, hitsToResponse(hits))
}

// Recommend handles POST /api/document/{id}/recommend. The body is optional.
func (s *Server) Recommend(w http.ResponseWriter, r *http.Request) {
	id, ok := bindID(w, r)
	if !ok {
		return
	}
	var req recommendRequest
	if !s.decodeJSON(w, r, &req, true) {
		return
	}

	hits, err := s.search.Recommend(r.Context(), id, req.Threshold, req.TopK)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, hitsToResponse(hits))
}

func (s *Server) readSearchInput(w http.ResponseWriter, r *http.Request) (request.Input, bool) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/json":
		var req searchJSONRequest
		if !s.decodeJSON(w, r, &req, false) {
			return nil, false
		}
		return request.JSONInput{
			URL:         req.URL,
			Description: req.Description,
			Threshold:   req.Threshold,
			TopK:        req.TopK,
		}, true

	case "multipart/form-data":
		in, err := s.readMultipart(w, r)
		if err != nil {
			s.handleDomainError(w, r, err)
			return nil, false
		}
		return in, true

	default:
		writeError(w, http.StatusUnsupportedMediaType, msgUnsupportedMedia)
		return nil, false
	}
}

func (s *Server) readMultipart(w http.ResponseWriter, r *http.Request) (request.MultipartInput, error) {
	var in request.MultipartInput
	limit := s.maxImageBytes + multipartOverhead
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return in, domain.UnsupportedMediaf("File size exceeds the limit of %d MB.", s.maxImageBytes>>20)
		}
		return in, domain.Validationf("invalid multipart form: %v", err)
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	form := url.Values(r.MultipartForm.Value)
	if v := form.Get("description"); v != "" {
		in.Description = &v
	}
	if err := runtime.BindQueryParameter("form", true, false, "threshold", form, &in.Threshold); err != nil {
		return in, domain.Validationf("invalid threshold: %v", err)
	}
	if err := runtime.BindQueryParameter("form", true, false, "topK", form, &in.TopK); err != nil {
		return in, domain.Validationf("invalid topK: %v", err)
	}

	img, err := readImagePart(r.MultipartForm.File["image"], s.maxImageBytes)
	if err != nil {
		return in, err
	}
	in.Image = img
	return in, nil
}

// readImagePart loads the first "image" part. An absent or zero-length part
// means a text-only query.
func readImagePart(parts []*multipart.FileHeader, maxBytes int64) (*request.Upload, error) {
	if len(parts) == 0 || parts[0].Size == 0 {
		return nil, nil
	}
	fh := parts[0]
	if fh.Size > maxBytes {
		return nil, domain.UnsupportedMediaf("File size exceeds the limit of %d MB.", maxBytes>>20)
	}

	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open image part: %w", err)
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(io.LimitReader(f, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read image part: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return nil, domain.UnsupportedMediaf("File size exceeds the limit of %d MB.", maxBytes>>20)
	}

	return &request.Upload{
		Filename:    fh.Filename,
		ContentType: partContentType(fh.Header.Get("Content-Type"), data),
		Data:        data,
	}, nil
}

// partContentType trusts the declared part type unless it is missing or generic.
func partContentType(declared string, data []byte) string {
	mt, _, err := mime.ParseMediaType(declared)
	if err != nil || mt == "" || mt == "application/octet-stream" {
		mt, _, _ = mime.ParseMediaType(http.DetectContentType(data))
	}
	return mt
}
