package commit

import (
	"bytes"
	"encoding/json"
	"fmt"
)

const (
	// BodyNamespace discriminates queue bodies from any other JSON a commit may carry.
	BodyNamespace = "git-queue.commit-body"

	// BodyVersion is the envelope version written by this build.
	BodyVersion = 1
)

// Metadata is the version 1 bookkeeping object. job_number is mandatory.
type Metadata struct {
	JobNumber int    `json:"job_number"`
	JobCommit string `json:"job_commit,omitempty"` // hash of the job's new-job commit
	WorkerID  string `json:"worker_id,omitempty"`
}

// Body is the JSON envelope stored as the commit message body.
type Body struct {
	Namespace string   `json:"namespace"`
	Version   int      `json:"version"`
	Metadata  Metadata `json:"metadata"`
	Payload   string   `json:"payload"`
}

// NewBody builds a current-version envelope.
func NewBody(metadata Metadata, payload string) Body {
	return Body{
		Namespace: BodyNamespace,
		Version:   BodyVersion,
		Metadata:  metadata,
		Payload:   payload,
	}
}

// ParseBody validates and decodes an envelope. Unknown top-level keys are
// tolerated; namespace, version and metadata are mandatory.
func ParseBody(text string) (Body, error) {
	fail := func(reason string, cause error) (Body, error) {
		return Body{}, &BodyError{Body: text, Reason: reason, Cause: cause}
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &envelope); err != nil {
		return fail("not a JSON object", err)
	}

	rawNamespace, ok := envelope["namespace"]
	if !ok {
		return fail("missing namespace", nil)
	}
	var namespace string
	if err := json.Unmarshal(rawNamespace, &namespace); err != nil || namespace != BodyNamespace {
		return fail(fmt.Sprintf("unexpected namespace %s", rawNamespace), nil)
	}

	rawVersion, ok := envelope["version"]
	if !ok {
		return fail("missing version", nil)
	}
	var version int
	if err := json.Unmarshal(rawVersion, &version); err != nil {
		return fail("version is not an integer", err)
	}

	rawMetadata, ok := envelope["metadata"]
	if !ok || string(rawMetadata) == "null" {
		return fail("missing metadata", nil)
	}

	var payload string
	if rawPayload, ok := envelope["payload"]; ok {
		if err := json.Unmarshal(rawPayload, &payload); err != nil {
			return fail("payload is not a string", err)
		}
	}

	switch version {
	case 1:
		metadata, reason, err := parseMetadataV1(rawMetadata)
		if reason != "" {
			return fail(reason, err)
		}
		return Body{Namespace: namespace, Version: version, Metadata: metadata, Payload: payload}, nil
	default:
		return fail(fmt.Sprintf("version %d", version), ErrUnsupportedBodyVersion)
	}
}

func parseMetadataV1(raw json.RawMessage) (Metadata, string, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Metadata{}, "metadata is not an object", err
	}
	if _, ok := fields["job_number"]; !ok {
		return Metadata{}, "metadata.job_number is required", nil
	}

	var m Metadata
	if err := json.Unmarshal(raw, &m); err != nil {
		return Metadata{}, "malformed metadata", err
	}
	if m.JobNumber <= 0 {
		return Metadata{}, fmt.Sprintf("metadata.job_number must be positive, got %d", m.JobNumber), nil
	}
	return m, "", nil
}

// Text encodes the envelope as a single JSON line.
func (b Body) Text() string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	// Body holds only strings and ints; encoding cannot fail.
	_ = enc.Encode(b)
	return string(bytes.TrimSpace(buf.Bytes()))
}

func (b Body) Equal(other Body) bool {
	return b == other
}
