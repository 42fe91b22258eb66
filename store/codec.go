package store

import (
	"encoding/json"
	"fmt"
	"time"
)

// Codec converts a state value to and from JSON.
type Codec[S any] interface {
	Marshal(state S) ([]byte, error)
	Unmarshal(data []byte) (S, error)
}

// JSONCodec encodes states with encoding/json.
type JSONCodec[S any] struct{}

func (JSONCodec[S]) Marshal(state S) ([]byte, error) {
	return json.Marshal(state)
}

func (JSONCodec[S]) Unmarshal(data []byte) (S, error) {
	var s S
	err := json.Unmarshal(data, &s)
	return s, err
}

// record is the persisted checkpoint shape.
type record struct {
	RunID        string          `json:"run_id"`
	Step         int             `json:"step"`
	Node         string          `json:"node"`
	CreatedAt    time.Time       `json:"created_at"`
	State        json.RawMessage `json:"state"`
	PausedBefore string          `json:"paused_before,omitempty"`
}

// EncodeCheckpoint serializes cp as a single JSON object, encoding the state
// with codec. A nil codec means JSONCodec.
func EncodeCheckpoint[S any](codec Codec[S], cp Checkpoint[S]) ([]byte, error) {
	if codec == nil {
		codec = JSONCodec[S]{}
	}
	state, err := codec.Marshal(cp.State)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal state: %w", err)
	}
	data, err := json.Marshal(record{
		RunID:        cp.RunID,
		Step:         cp.Step,
		Node:         cp.Node,
		CreatedAt:    cp.CreatedAt,
		State:        state,
		PausedBefore: cp.PausedBefore,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal checkpoint: %w", err)
	}
	return data, nil
}

// DecodeCheckpoint is the inverse of EncodeCheckpoint.
func DecodeCheckpoint[S any](codec Codec[S], data []byte) (*Checkpoint[S], error) {
	if codec == nil {
		codec = JSONCodec[S]{}
	}
	var r record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkpoint: %w", err)
	}
	state, err := codec.Unmarshal(r.State)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	return &Checkpoint[S]{
		RunID:        r.RunID,
		Step:         r.Step,
		Node:         r.Node,
		CreatedAt:    r.CreatedAt,
		State:        state,
		PausedBefore: r.PausedBefore,
	}, nil
}

// DecodeMetadata reads only the history fields of an encoded checkpoint.
func DecodeMetadata(seq int64, data []byte) (Metadata, error) {
	var r record
	if err := json.Unmarshal(data, &r); err != nil {
		return Metadata{}, fmt.Errorf("failed to unmarshal checkpoint: %w", err)
	}
	return Metadata{Seq: seq, Step: r.Step, Node: r.Node, CreatedAt: r.CreatedAt}, nil
}
