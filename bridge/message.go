package bridge

import (
	"encoding/json"
	"fmt"
)

// MessageType discriminates the frames on the wire.
type MessageType string

const (
	MessageRequest  MessageType = "request"
	MessageResponse MessageType = "response"
	MessageEvent    MessageType = "event"
)

// Message is one newline-delimited JSON frame. Requests carry Method
// and Params; responses echo the request ID with Result or Error;
// events carry Method and Params with no ID.
type Message struct {
	Type   MessageType      `json:"type"`
	ID     string           `json:"id,omitempty"`
	Method string           `json:"method,omitempty"`
	Params json.RawMessage  `json:"params,omitempty"`
	Result json.RawMessage  `json:"result,omitempty"`
	Error  *RemoteErrorInfo `json:"error,omitempty"`
}

// RemoteErrorInfo is the structured error payload of a failed response.
type RemoteErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// Event is a notification pushed by the editor.
type Event struct {
	Method  string
	Payload json.RawMessage
}

// Path marks a call argument as a filesystem path. Path arguments are
// canonicalized against the workspace before serialization, so the
// editor only ever sees one spelling of each file.
type Path string

func encodeMessage(m *Message) ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

func decodeMessage(line []byte) (*Message, error) {
	var m Message
	if err := json.Unmarshal(line, &m); err != nil {
		return nil, fmt.Errorf("malformed frame: %w", err)
	}
	if m.Type == "" {
		return nil, fmt.Errorf("frame missing type")
	}
	return &m, nil
}
