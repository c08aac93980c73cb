package validation

import "context"

// Prober checks a remote image without downloading it.
type Prober interface {
	Probe(ctx context.Context, url string) error
}
