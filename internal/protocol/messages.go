// Package protocol defines the JSON messages pushed over the live-progress
// websocket feed, shared by the server and the rehearse driver.
package protocol

import (
	"encoding/json"
	"fmt"
)

// MessageType identifies websocket payload variants.
type MessageType string

const (
	TypeProgress  MessageType = "progress"
	TypeRecording MessageType = "recording_saved"
)

type Envelope struct {
	Type MessageType `json:"type"`
}

// Progress is pushed to watchers on every persisted navigation step.
type Progress struct {
	Type         MessageType `json:"type"`
	SessionID    string      `json:"sessionId"`
	CurrentIndex int         `json:"currentIndex"`
	TotalImages  int         `json:"totalImages"`
	IsCompleted  bool        `json:"isCompleted"`
}

// Recording is pushed when an audio artifact lands for the session.
type Recording struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"sessionId"`
	Filename  string      `json:"filename"`
	IsPartial bool        `json:"isPartial"`
}

// Parse decodes a feed message into its concrete type.
func Parse(data []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("parse envelope: %w", err)
	}
	switch env.Type {
	case TypeProgress:
		var m Progress
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, err
		}
		return m, nil
	case TypeRecording:
		var m Recording
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, err
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unsupported message type %q", env.Type)
	}
}
