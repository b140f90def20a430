package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/syntheticore/skip/internal/ir"
)

// CallSite is one trampoline as recorded in the journal.
type CallSite struct {
	Token    string `json:"token"`
	Function string `json:"function"`
	FuncHash string `json:"func_hash"`
	Arity    int    `json:"arity"`
	Seq      int64  `json:"seq"`
}

// Compilation is one witness run and the state it left the call site in.
type Compilation struct {
	ID           int64         `json:"id"`
	Token        string        `json:"token"`
	Seq          int64         `json:"seq"`
	State        string        `json:"state"`
	Signature    string        `json:"signature,omitempty"`
	WitnessArgs  []ir.Value    `json:"-"`
	WitnessValue ir.Value      `json:"-"`
	Duration     time.Duration `json:"duration_ns"`
	Diagnostics  []string      `json:"diagnostics,omitempty"`
	Error        string        `json:"error,omitempty"`
}

// marshalValues converts witness arguments to JSON TEXT for storage.
func marshalValues(vs []ir.Value) (string, error) {
	if vs == nil {
		vs = []ir.Value{}
	}
	data, err := ir.MarshalValues(vs)
	if err != nil {
		return "", fmt.Errorf("marshal witness args: %w", err)
	}
	return string(data), nil
}

func marshalValue(v ir.Value) (string, error) {
	data, err := ir.MarshalValue(v)
	if err != nil {
		return "", fmt.Errorf("marshal witness value: %w", err)
	}
	return string(data), nil
}

// marshalDiagnostics stores diagnostics as canonical JSON.
func marshalDiagnostics(ds []string) (string, error) {
	data, err := ir.MarshalCanonical(ds)
	if err != nil {
		return "", fmt.Errorf("marshal diagnostics: %w", err)
	}
	return string(data), nil
}

func unmarshalValues(data string) ([]ir.Value, error) {
	vs, err := ir.UnmarshalValues([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("unmarshal witness args: %w", err)
	}
	return vs, nil
}

func unmarshalValue(data string) (ir.Value, error) {
	v, err := ir.UnmarshalValue([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("unmarshal witness value: %w", err)
	}
	return v, nil
}

func unmarshalDiagnostics(data string) ([]string, error) {
	if data == "" || data == "[]" {
		return nil, nil
	}
	var ds []string
	if err := json.Unmarshal([]byte(data), &ds); err != nil {
		return nil, fmt.Errorf("unmarshal diagnostics: %w", err)
	}
	return ds, nil
}
