// Package worker implements the request protocol between a viewer and the
// tree engine: debounced loads with progress snapshots and lazy opens.
package worker

import (
	"encoding/json"

	apperrors "github.com/size-analysis/pkg/errors"
	"github.com/size-analysis/pkg/model"
)

// Actions understood by the dispatcher.
const (
	ActionLoad = "load"
	ActionOpen = "open"
)

// ProgressID is the message id carried by load progress messages.
const ProgressID = 0

// Request is one inbound message.
type Request struct {
	ID     int64           `json:"id"`
	Action string          `json:"action"`
	Data   json.RawMessage `json:"data"`

	// Blob is uploaded bytes that travel with a load outside the JSON body.
	Blob []byte `json:"-"`
}

// LoadRequest is the payload of a load action.
type LoadRequest struct {
	Input   string `json:"input"`
	Options string `json:"options"`

	// Blob holds uploaded bytes. It takes precedence over Input and is never
	// read from the wire.
	Blob []byte `json:"-"`
}

// Message is one outbound message. Load progress uses Percent, Root and
// DiffMode; open replies use Result.
type Message struct {
	ID       int64           `json:"id"`
	Percent  float64         `json:"percent,omitempty"`
	Root     *model.TreeNode `json:"root,omitempty"`
	DiffMode bool            `json:"diffMode,omitempty"`
	Result   *model.TreeNode `json:"result,omitempty"`
	Error    string          `json:"error,omitempty"`
	Code     string          `json:"code,omitempty"`
	LoadID   string          `json:"loadId,omitempty"`
}

// Final reports whether m ends a load.
func (m *Message) Final() bool {
	return m.ID == ProgressID && m.Percent >= 1
}

// setError fills the error fields of m from err.
func (m *Message) setError(err error) {
	m.Error = err.Error()
	m.Code = apperrors.GetErrorCode(err)
}

// Sink receives outbound messages. Post may be called from several
// goroutines; implementations serialize as needed.
type Sink interface {
	Post(msg *Message) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(msg *Message) error

// Post calls f.
func (f SinkFunc) Post(msg *Message) error {
	return f(msg)
}

// DecodeLoad parses the data of a load request.
func DecodeLoad(data json.RawMessage) (*LoadRequest, error) {
	var req LoadRequest
	if len(data) == 0 {
		return nil, apperrors.New(apperrors.CodeInvalidInput, "load requires data")
	}
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInvalidInput, "invalid load data", err)
	}
	return &req, nil
}

// DecodeOpen parses the data of an open request, a bare id path string.
func DecodeOpen(data json.RawMessage) (string, error) {
	var path string
	if err := json.Unmarshal(data, &path); err != nil {
		return "", apperrors.Wrap(apperrors.CodeInvalidInput, "open requires a path string", err)
	}
	return path, nil
}
