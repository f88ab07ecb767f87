package cli

import (
	"encoding/json"
	stderrors "errors"
	"io"

	"github.com/korasi/korasi/internal/cloud"
	"github.com/korasi/korasi/internal/errors"
	"github.com/korasi/korasi/internal/host"
)

// machineMode is set by --json; output becomes JSON envelopes without decorations.
var machineMode bool

// JSONEnvelope wraps command output in a consistent structure for machine parsing.
// All --json output should use this envelope.
type JSONEnvelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *JSONError  `json:"error,omitempty"`
}

// JSONError provides structured error information for machine parsing.
// Code is one of the internal/errors codes, or UNKNOWN.
type JSONError struct {
	Code       string      `json:"code"`
	Message    string      `json:"message"`
	Suggestion string      `json:"suggestion,omitempty"`
	Details    interface{} `json:"details,omitempty"`
}

// ErrCodeUnknown is used for errors that carry no code.
const ErrCodeUnknown = "UNKNOWN"

// InstanceJSON is one instance in list --json output.
type InstanceJSON struct {
	Name    string `json:"name"`
	ID      string `json:"id"`
	Type    string `json:"type,omitempty"`
	State   string `json:"state"`
	Address string `json:"address,omitempty"`
}

func instancesToJSON(instances []cloud.Instance) []InstanceJSON {
	out := make([]InstanceJSON, len(instances))
	for i, inst := range instances {
		out[i] = InstanceJSON{
			Name:    inst.Name,
			ID:      inst.ID,
			Type:    inst.Type,
			State:   string(inst.State),
			Address: inst.PublicAddress,
		}
	}
	return out
}

// WriteJSONSuccess writes a successful response with data to the writer.
func WriteJSONSuccess(w io.Writer, data interface{}) error {
	return writeJSONEnvelope(w, JSONEnvelope{Success: true, Data: data})
}

// WriteJSONFromError converts a Go error to a JSON error response.
func WriteJSONFromError(w io.Writer, err error) error {
	return writeJSONEnvelope(w, JSONEnvelope{Success: false, Error: ErrorToJSON(err)})
}

// writeJSONEnvelope writes the envelope with consistent formatting.
func writeJSONEnvelope(w io.Writer, env JSONEnvelope) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(env)
}

// ErrorToJSON converts a Go error to a JSONError. Structured errors keep
// their code; a probe failure anywhere in the chain adds its reason.
func ErrorToJSON(err error) *JSONError {
	if err == nil {
		return nil
	}

	out := &JSONError{Code: ErrCodeUnknown, Message: err.Error()}

	var kErr *errors.Error
	if stderrors.As(err, &kErr) {
		out.Code = kErr.Code
		out.Message = kErr.Message
		out.Suggestion = kErr.Suggestion
	}

	var probeErr *host.ProbeError
	if stderrors.As(err, &probeErr) {
		if out.Code == ErrCodeUnknown {
			out.Code = errors.ErrTransport
		}
		out.Details = map[string]interface{}{
			"reason":  probeErr.Reason.String(),
			"address": probeErr.Address,
		}
	}

	if code, ok := errors.GetExitCode(err); ok {
		out.Code = errors.ErrExec
		out.Details = map[string]interface{}{"exit_code": code}
	}
	return out
}
