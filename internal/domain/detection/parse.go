package detection

import (
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
)

const fence = "```"

// StripFences removes a surrounding markdown code fence (with an optional
// language tag) and any leading <think> block from a backend reply.
func StripFences(raw string) string {
	text := strings.TrimSpace(stripThink(raw))

	start := strings.Index(text, fence)
	if start < 0 {
		return text
	}
	// keep only what sits between the first and last markers
	end := strings.LastIndex(text, fence)
	if end > start {
		text = text[start+len(fence) : end]
	} else {
		text = text[start+len(fence):]
	}

	text = strings.TrimSpace(text)
	if len(text) >= 4 && strings.EqualFold(text[:4], "json") {
		text = text[4:]
	}
	return strings.TrimSpace(text)
}

func stripThink(raw string) string {
	start := strings.Index(raw, "<think>")
	if start < 0 {
		return raw
	}
	end := strings.Index(raw[start:], "</think>")
	if end < 0 {
		return raw[:start]
	}
	return raw[:start] + raw[start+end+len("</think>"):]
}

// ParseResult decodes a backend reply into a normalized ClassificationResult.
// The payload must be a JSON object with a non-empty string objectType.
func ParseResult(raw string) (ClassificationResult, error) {
	text := StripFences(raw)
	if text == "" {
		return ClassificationResult{}, fmt.Errorf("empty reply")
	}

	var payload map[string]interface{}
	if err := sonic.UnmarshalString(text, &payload); err != nil {
		return ClassificationResult{}, fmt.Errorf("decode reply: %w", err)
	}
	if payload == nil {
		return ClassificationResult{}, fmt.Errorf("reply is not a JSON object")
	}

	label, ok := payload["objectType"].(string)
	if !ok {
		return ClassificationResult{}, fmt.Errorf("objectType missing or not a string")
	}
	if NormalizeObjectType(label) == "" {
		return ClassificationResult{}, fmt.Errorf("objectType is empty")
	}
	if v, present := payload["droneDetected"]; present && v != nil {
		if _, ok := v.(bool); !ok {
			return ClassificationResult{}, fmt.Errorf("droneDetected is not a boolean")
		}
	}

	var explanation string
	if v, present := payload["explanation"]; present && v != nil {
		s, ok := v.(string)
		if !ok {
			return ClassificationResult{}, fmt.Errorf("explanation is not a string")
		}
		explanation = s
	}

	return ClassificationResult{
		ObjectType:  ObjectType(label),
		Explanation: explanation,
	}.Normalize(), nil
}

// parseExplanation accepts {"explanation": "..."} or, failing that, plain text.
func parseExplanation(raw string) string {
	text := StripFences(raw)
	var payload struct {
		Explanation string `json:"explanation"`
	}
	if err := sonic.UnmarshalString(text, &payload); err == nil {
		return strings.TrimSpace(payload.Explanation)
	}
	if strings.HasPrefix(text, "{") {
		return ""
	}
	return text
}
