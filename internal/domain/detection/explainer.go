package detection

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"

	"dronewatch-server-go/internal/platform/logging"
	"dronewatch-server-go/internal/platform/observability"
)

// ExplainUnavailable is returned when the backend cannot produce an explanation.
const ExplainUnavailable = "Could not retrieve explanation at this time."

const explainCacheSize = 256

// Explainer asks the backend why a recorded event was flagged and caches
// answers per event id.
type Explainer struct {
	client *Client
	cache  *lru.Cache[string, string]
}

// NewExplainer shares the backend and timeout of client.
func NewExplainer(client *Client) *Explainer {
	// only fails for a non-positive size
	cache, _ := lru.New[string, string](explainCacheSize)
	return &Explainer{client: client, cache: cache}
}

// ExplainRequest carries the optional hints the caller knows about the object.
type ExplainRequest struct {
	ObjectSize     string `json:"objectSize,omitempty"`
	MotionPatterns string `json:"motionPatterns,omitempty"`
}

// Explain returns a cached explanation or asks the backend for one.
func (e *Explainer) Explain(ctx context.Context, event Event, hints ExplainRequest) string {
	if cached, ok := e.cache.Get(event.ID); ok {
		return cached
	}

	ctx, end := observability.StartSpan(ctx, "detection", "explain")
	var frame Frame
	if event.FrameDataURI != "" {
		decoded, err := FrameFromDataURI(event.FrameDataURI)
		if err == nil {
			frame = decoded
		} else {
			e.logger().WarnTag("EXPLAIN", "event %s carries an unreadable frame: %v", event.ID, err)
		}
	}

	raw, err := e.client.complete(ctx, Request{
		Instruction: ExplainInstruction(event.ObjectType, hints.ObjectSize, hints.MotionPatterns),
		Frame:       frame,
		Temperature: e.client.temperature,
		MaxTokens:   e.client.maxTokens,
		JSON:        true,
	})
	end(err)
	if err != nil {
		e.logger().WarnTag("EXPLAIN", "explain failed: event=%s err=%v", event.ID, err)
		return ExplainUnavailable
	}

	explanation := parseExplanation(raw)
	if explanation == "" {
		e.logger().WarnTag("EXPLAIN", "explain reply had no explanation: event=%s", event.ID)
		return ExplainUnavailable
	}
	e.cache.Add(event.ID, explanation)
	return explanation
}

func (e *Explainer) logger() *logging.Logger {
	return e.client.logger
}
