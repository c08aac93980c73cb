package dispatch

import "github.com/kailas-cloud/mmdex/internal/domain/document"

// ItemStatus is the outcome of submitting a single document.
type ItemStatus string

// Dispatch item status values.
const (
	StatusOK    ItemStatus = "ok"
	StatusError ItemStatus = "error"
)

// Result is the outcome for one submitted document, positionally correlated
// to the submission by Index.
type Result struct {
	index     int
	candidate document.Candidate
	status    ItemStatus
	err       error
}

// NewOK creates a successful result.
func NewOK(index int, c document.Candidate) Result {
	return Result{index: index, candidate: c, status: StatusOK}
}

// NewError creates a failed result.
func NewError(index int, c document.Candidate, err error) Result {
	return Result{index: index, candidate: c, status: StatusError, err: err}
}

// Index returns the position of the document in the submission.
func (r Result) Index() int { return r.index }

// Candidate returns the echoed input.
func (r Result) Candidate() document.Candidate { return r.candidate }

// Status returns the processing outcome.
func (r Result) Status() ItemStatus { return r.status }

// OK reports whether the document was accepted.
func (r Result) OK() bool { return r.status == StatusOK }

// Err returns the error, if any.
func (r Result) Err() error { return r.err }

// Entry is a validated document tagged with its submission-wide index.
// The index is unique across chunks and is the correlation key for queue results.
type Entry struct {
	Index     int
	Candidate document.Candidate
}

// Chunk splits entries into consecutive slices of at most size items.
func Chunk(entries []Entry, size int) [][]Entry {
	if size <= 0 {
		size = 1
	}
	chunks := make([][]Entry, 0, (len(entries)+size-1)/size)
	for start := 0; start < len(entries); start += size {
		end := min(start+size, len(entries))
		chunks = append(chunks, entries[start:end])
	}
	return chunks
}
