package flow_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wesleyorama2/flowgen/internal/flowgen/flow"
)

func TestStep_UnmarshalHttpRequest_AppliesDefaults(t *testing.T) {
	var s flow.Step
	err := json.Unmarshal([]byte(`{"HttpRequest":{"url":"http://h/"}}`), &s)
	require.NoError(t, err)

	require.Equal(t, flow.KindHttpRequest, s.Kind)
	require.NotNil(t, s.HttpRequest)
	assert.Equal(t, "GET", s.HttpRequest.Method)
	assert.EqualValues(t, 60, s.HttpRequest.TimeoutSeconds())
	assert.Equal(t, 5, s.HttpRequest.RedirectLimitOrDefault())
}

func TestStep_UnmarshalHttpRequest_ExplicitOverridesSurvive(t *testing.T) {
	var s flow.Step
	err := json.Unmarshal([]byte(`{"HttpRequest":{"url":"http://h/","method":"POST","timeout":5,"redirect_limit":1}}`), &s)
	require.NoError(t, err)

	assert.Equal(t, "POST", s.HttpRequest.Method)
	assert.EqualValues(t, 5, s.HttpRequest.TimeoutSeconds())
	assert.Equal(t, 1, s.HttpRequest.RedirectLimitOrDefault())
}

func TestStep_UnmarshalUnknownFieldsTolerated(t *testing.T) {
	var s flow.Step
	err := json.Unmarshal([]byte(`{"Sleep":{"duration":"3","extra_field_from_the_future":true}}`), &s)
	require.NoError(t, err)
	assert.Equal(t, "3", s.Sleep.Duration)
}

func TestStep_UnmarshalNoRecognizedKeyIsError(t *testing.T) {
	var s flow.Step
	err := json.Unmarshal([]byte(`{"SomethingElse":{}}`), &s)
	assert.Error(t, err)
}

func TestStep_RoundTripLoadGen(t *testing.T) {
	maxTasks := uint64(10)
	original := flow.Step{
		Kind: flow.KindLoadGen,
		LoadGen: &flow.LoadGenParams{
			SpawnRate: "1 + TICK",
			Timeout:   30,
			MaxTasks:  &maxTasks,
			FunctionsToExecute: []flow.Step{
				{Kind: flow.KindSleep, Sleep: &flow.SleepParams{Duration: "1"}},
			},
		},
	}

	encoded, err := json.Marshal(original)
	require.NoError(t, err)

	var decoded flow.Step
	require.NoError(t, json.Unmarshal(encoded, &decoded))

	require.Equal(t, flow.KindLoadGen, decoded.Kind)
	assert.Equal(t, "1 + TICK", decoded.LoadGen.SpawnRate)
	require.NotNil(t, decoded.LoadGen.MaxTasks)
	assert.EqualValues(t, 10, *decoded.LoadGen.MaxTasks)
	require.Len(t, decoded.LoadGen.FunctionsToExecute, 1)
	assert.Equal(t, flow.KindSleep, decoded.LoadGen.FunctionsToExecute[0].Kind)
}

func TestLoadGenParams_MaxTasksAbsentIsNil(t *testing.T) {
	var s flow.Step
	err := json.Unmarshal([]byte(`{"LoadGen":{"spawn_rate":"1","timeout":1,"functions_to_execute":[]}}`), &s)
	require.NoError(t, err)
	assert.Nil(t, s.LoadGen.MaxTasks)
}

func TestHttpBody_EmptyRoundTrip(t *testing.T) {
	var b flow.HttpBody
	require.NoError(t, json.Unmarshal([]byte(`"Empty"`), &b))
	assert.Equal(t, flow.BodyEmpty, b.Kind)

	encoded, err := json.Marshal(b)
	require.NoError(t, err)
	assert.JSONEq(t, `"Empty"`, string(encoded))
}

func TestHttpBody_RawRoundTrip(t *testing.T) {
	var b flow.HttpBody
	require.NoError(t, json.Unmarshal([]byte(`{"Raw":"payload"}`), &b))
	assert.Equal(t, flow.BodyRaw, b.Kind)
	assert.Equal(t, "payload", b.Raw)
}

func TestFormDataValue_StrAndFilePath(t *testing.T) {
	var str flow.FormDataValue
	require.NoError(t, json.Unmarshal([]byte(`{"Str":"hello"}`), &str))
	assert.False(t, str.IsFile)
	assert.Equal(t, "hello", str.Str)

	var file flow.FormDataValue
	require.NoError(t, json.Unmarshal([]byte(`{"FilePath":{"path":"/tmp/x","content_type":"text/plain"}}`), &file))
	assert.True(t, file.IsFile)
	assert.Equal(t, "/tmp/x", file.FilePath)
	assert.Equal(t, "text/plain", file.ContentType)
}

func TestFlow_UnmarshalTopLevel(t *testing.T) {
	doc := `{"functions":[{"LoadGen":{"spawn_rate":"1","timeout":5,"max_tasks":1,"functions_to_execute":[]}}]}`
	var f flow.Flow
	require.NoError(t, json.Unmarshal([]byte(doc), &f))
	require.Len(t, f.Functions, 1)
	assert.Equal(t, flow.KindLoadGen, f.Functions[0].Kind)
}
