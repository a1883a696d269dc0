// Package flow defines the JSON data model for a flowgen workload: a Flow is
// an ordered sequence of Steps, each a single-key tagged union over the four
// step kinds (HttpRequest, Sleep, RunScript, LoadGen).
package flow

import (
	"encoding/json"
	"fmt"
)

// Flow is the top-level input document: an ordered sequence of steps. Only
// LoadGen is admissible at this level; anything else is a configuration
// error caught by the runner.
type Flow struct {
	Functions []Step `json:"functions"`
}

// Kind identifies which variant a Step holds.
type Kind string

const (
	KindHttpRequest Kind = "HttpRequest"
	KindSleep       Kind = "Sleep"
	KindRunScript   Kind = "RunScript"
	KindLoadGen     Kind = "LoadGen"
)

// Step is a tagged union over the four step kinds, serialized as a single-key
// JSON object whose key names the variant, e.g. {"Sleep": {"duration": "1"}}.
type Step struct {
	Kind        Kind
	HttpRequest *HttpParams
	Sleep       *SleepParams
	RunScript   *ScriptParams
	LoadGen     *LoadGenParams
}

// MarshalJSON implements the single-key tagged encoding.
func (s Step) MarshalJSON() ([]byte, error) {
	switch s.Kind {
	case KindHttpRequest:
		return json.Marshal(map[string]*HttpParams{string(KindHttpRequest): s.HttpRequest})
	case KindSleep:
		return json.Marshal(map[string]*SleepParams{string(KindSleep): s.Sleep})
	case KindRunScript:
		return json.Marshal(map[string]*ScriptParams{string(KindRunScript): s.RunScript})
	case KindLoadGen:
		return json.Marshal(map[string]*LoadGenParams{string(KindLoadGen): s.LoadGen})
	default:
		return nil, fmt.Errorf("flow: step has unknown kind %q", s.Kind)
	}
}

// UnmarshalJSON implements the single-key tagged decoding. At least one of
// the four recognized keys must be present; if several are, the first in the
// order HttpRequest, Sleep, RunScript, LoadGen is decoded and the others are
// ignored. Unrecognized sibling keys are ignored rather than rejected,
// matching the format's tolerance for unknown fields.
func (s *Step) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("flow: decoding step: %w", err)
	}

	if body, ok := raw[string(KindHttpRequest)]; ok {
		var p HttpParams
		p.setDefaults()
		if err := json.Unmarshal(body, &p); err != nil {
			return fmt.Errorf("flow: decoding HttpRequest step: %w", err)
		}
		s.Kind = KindHttpRequest
		s.HttpRequest = &p
		return nil
	}
	if body, ok := raw[string(KindSleep)]; ok {
		var p SleepParams
		if err := json.Unmarshal(body, &p); err != nil {
			return fmt.Errorf("flow: decoding Sleep step: %w", err)
		}
		s.Kind = KindSleep
		s.Sleep = &p
		return nil
	}
	if body, ok := raw[string(KindRunScript)]; ok {
		var p ScriptParams
		if err := json.Unmarshal(body, &p); err != nil {
			return fmt.Errorf("flow: decoding RunScript step: %w", err)
		}
		s.Kind = KindRunScript
		s.RunScript = &p
		return nil
	}
	if body, ok := raw[string(KindLoadGen)]; ok {
		var p LoadGenParams
		if err := json.Unmarshal(body, &p); err != nil {
			return fmt.Errorf("flow: decoding LoadGen step: %w", err)
		}
		s.Kind = KindLoadGen
		s.LoadGen = &p
		return nil
	}

	return fmt.Errorf("flow: step object carries none of HttpRequest, Sleep, RunScript, LoadGen")
}

// SleepParams holds the duration, still a string because it may itself
// contain an interpolation token resolved before parsing.
type SleepParams struct {
	Duration string `json:"duration"`
}

// ScriptParams holds a script snippet to run in the local variable scope.
type ScriptParams struct {
	Code string `json:"code"`
}

// LoadGenParams configures one load-generator invocation.
type LoadGenParams struct {
	SpawnRate          string `json:"spawn_rate"`
	Timeout            uint64 `json:"timeout"`
	MaxTasks           *uint64 `json:"max_tasks"`
	FunctionsToExecute []Step `json:"functions_to_execute"`
}
