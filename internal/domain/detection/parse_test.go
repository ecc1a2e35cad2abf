package detection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripFences(t *testing.T) {
	payload := `{"droneDetected":true,"objectType":"drone","explanation":"quadcopter"}`

	tests := []struct {
		name string
		raw  string
	}{
		{name: "bare", raw: payload},
		{name: "json fence inline", raw: "```json" + payload + "```"},
		{name: "json fence multiline", raw: "```json\n" + payload + "\n```\n"},
		{name: "plain fence", raw: "```\n" + payload + "\n```"},
		{name: "upper case tag", raw: "```JSON\n" + payload + "\n```"},
		{name: "prose around fence", raw: "Here you go:\n```json\n" + payload + "\n```\nThanks"},
		{name: "prose after fence", raw: "```json\n" + payload + "\n```\nLet me know if you need more."},
		{name: "prose after inline fence", raw: "```" + payload + "``` hope this helps"},
		{name: "unterminated fence", raw: "```json\n" + payload},
		{name: "think block", raw: "<think>looks like rotors</think>\n" + payload},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, payload, StripFences(tt.raw))
		})
	}
}

func TestParseResult_FenceRoundTrip(t *testing.T) {
	payload := `{"droneDetected":true,"objectType":"drone","explanation":"quadcopter"}`

	bare, err := ParseResult(payload)
	require.NoError(t, err)
	fenced, err := ParseResult("```json" + payload + "```")
	require.NoError(t, err)

	assert.Equal(t, bare, fenced)
	assert.Equal(t, ClassificationResult{DroneDetected: true, ObjectType: ObjectDrone, Explanation: "quadcopter"}, bare)
}

func TestParseResult_TrailingProse(t *testing.T) {
	got, err := ParseResult("```json\n{\"objectType\":\"drone\"}\n```\nLet me know if you need more.")
	require.NoError(t, err)
	assert.Equal(t, ClassificationResult{DroneDetected: true, ObjectType: ObjectDrone}, got)
}

func TestParseResult_DerivesDroneFlag(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		wantType  ObjectType
		wantDrone bool
	}{
		{name: "backend claims drone but says bird", raw: `{"droneDetected":true,"objectType":"bird"}`, wantType: ObjectBird},
		{name: "backend denies drone but says drone", raw: `{"droneDetected":false,"objectType":"drone"}`, wantType: ObjectDrone, wantDrone: true},
		{name: "flag omitted", raw: `{"objectType":"Drone "}`, wantType: ObjectDrone, wantDrone: true},
		{name: "free text label", raw: `{"objectType":"Hot Air Balloon"}`, wantType: "hot air balloon"},
		{name: "none", raw: `{"droneDetected":false,"objectType":"none"}`, wantType: ObjectNone},
		{name: "null explanation", raw: `{"objectType":"plane","explanation":null}`, wantType: ObjectPlane},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseResult(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.wantType, got.ObjectType)
			assert.Equal(t, tt.wantDrone, got.DroneDetected)
			assert.Equal(t, got.ObjectType == ObjectDrone, got.DroneDetected)
		})
	}
}

func TestParseResult_Malformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "empty", raw: ""},
		{name: "only fences", raw: "```json\n```"},
		{name: "truncated", raw: `{"droneDetected":true,"objectType":"dro`},
		{name: "missing objectType", raw: `{"droneDetected":true,"explanation":"x"}`},
		{name: "blank objectType", raw: `{"objectType":"  "}`},
		{name: "objectType not string", raw: `{"objectType":3}`},
		{name: "droneDetected not bool", raw: `{"objectType":"drone","droneDetected":"yes"}`},
		{name: "explanation not string", raw: `{"objectType":"drone","explanation":["a"]}`},
		{name: "array", raw: `[{"objectType":"drone"}]`},
		{name: "null", raw: `null`},
		{name: "prose", raw: "I think this is a bird."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseResult(tt.raw)
			assert.Error(t, err)
		})
	}
}

func TestParseExplanation(t *testing.T) {
	assert.Equal(t, "four rotors", parseExplanation("```json\n{\"explanation\":\"four rotors\"}\n```"))
	assert.Equal(t, "It hovers in place.", parseExplanation("It hovers in place."))
	assert.Equal(t, "", parseExplanation(`{"explanation":`))
}
