package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kailas-cloud/mmdex/internal/domain"
	domdoc "github.com/kailas-cloud/mmdex/internal/domain/document"
	"github.com/kailas-cloud/mmdex/internal/domain/ingestion"
)

const payloadField = "payload"

// payload is the wire format of an ingestion message.
type payload struct {
	URL         *string        `json:"url,omitempty"`
	Description *string        `json:"description,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
}

func encodeMessage(m ingestion.Message) (map[string]string, error) {
	data, err := json.Marshal(payload{
		URL:         m.Candidate.URL,
		Description: m.Candidate.Description,
		Metadata:    m.Candidate.Metadata,
		Timestamp:   m.Timestamp,
	})
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	return map[string]string{payloadField: string(data)}, nil
}

// decodeMessage parses a stream entry. Undecodable payloads are validation errors
// so the worker treats them as terminal.
func decodeMessage(fields map[string]string) (ingestion.Message, error) {
	raw, ok := fields[payloadField]
	if !ok {
		return ingestion.Message{}, fmt.Errorf("missing %q field: %w", payloadField, domain.ErrValidation)
	}
	var p payload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return ingestion.Message{}, fmt.Errorf("decode payload: %w", errors.Join(domain.ErrValidation, err))
	}
	return ingestion.Message{
		Candidate: domdoc.Candidate{URL: p.URL, Description: p.Description, Metadata: p.Metadata},
		Timestamp: p.Timestamp,
	}, nil
}
