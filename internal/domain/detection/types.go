package detection

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ObjectType is the label the backend assigned to a frame. Labels outside
// the known set are kept verbatim.
type ObjectType string

const (
	ObjectDrone  ObjectType = "drone"
	ObjectBird   ObjectType = "bird"
	ObjectPlane  ObjectType = "plane"
	ObjectPerson ObjectType = "person"
	ObjectNone   ObjectType = "none"
	ObjectError  ObjectType = "error"
)

// NormalizeObjectType trims and lower-cases a backend label.
func NormalizeObjectType(label string) ObjectType {
	return ObjectType(strings.ToLower(strings.TrimSpace(label)))
}

// Noteworthy reports whether a result with this label belongs in the event log.
func (t ObjectType) Noteworthy() bool {
	return t != "" && t != ObjectNone && t != ObjectError
}

// Frame is one still image captured from the camera.
type Frame struct {
	Data       []byte
	Format     string
	Width      int
	Height     int
	CapturedAt time.Time
}

// Empty reports whether the frame carries no image bytes.
func (f Frame) Empty() bool {
	return len(f.Data) == 0
}

// MIMEType returns the image MIME type, defaulting to JPEG.
func (f Frame) MIMEType() string {
	format := strings.ToLower(f.Format)
	switch format {
	case "", "jpg":
		format = "jpeg"
	}
	return "image/" + format
}

// Base64 returns the standard base64 encoding of the frame bytes.
func (f Frame) Base64() string {
	return base64.StdEncoding.EncodeToString(f.Data)
}

// DataURI renders the frame as data:image/<format>;base64,<payload>.
func (f Frame) DataURI() string {
	return fmt.Sprintf("data:%s;base64,%s", f.MIMEType(), f.Base64())
}

// FrameFromDataURI decodes a base64 data URI back into a frame.
func FrameFromDataURI(uri string) (Frame, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return Frame{}, fmt.Errorf("not a data uri")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return Frame{}, fmt.Errorf("data uri has no payload")
	}
	mime, enc, _ := strings.Cut(meta, ";")
	if enc != "base64" {
		return Frame{}, fmt.Errorf("data uri is not base64 encoded")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return Frame{}, fmt.Errorf("decode data uri: %w", err)
	}
	return Frame{Data: data, Format: strings.TrimPrefix(mime, "image/")}, nil
}

// ClassificationResult is the validated outcome of one classify call.
type ClassificationResult struct {
	DroneDetected bool       `json:"droneDetected"`
	ObjectType    ObjectType `json:"objectType"`
	Explanation   string     `json:"explanation,omitempty"`
}

// Normalize canonicalizes the label and derives DroneDetected from it.
func (r ClassificationResult) Normalize() ClassificationResult {
	r.ObjectType = NormalizeObjectType(string(r.ObjectType))
	r.DroneDetected = r.ObjectType == ObjectDrone
	r.Explanation = strings.TrimSpace(r.Explanation)
	return r
}

// Fallback is the result reported when a round fails.
func Fallback(diagnostic string) ClassificationResult {
	return ClassificationResult{
		DroneDetected: false,
		ObjectType:    ObjectError,
		Explanation:   diagnostic,
	}
}

// Event is a recorded, noteworthy classification. Events are immutable.
type Event struct {
	ID           string     `json:"id"`
	CreatedAt    time.Time  `json:"timestamp"`
	ObjectType   ObjectType `json:"objectType"`
	Explanation  string     `json:"explanation,omitempty"`
	FrameDataURI string     `json:"frameDataUri,omitempty"`
}

// NewEvent builds an event for result. The frame may be empty.
func NewEvent(result ClassificationResult, frame Frame, now time.Time) Event {
	result = result.Normalize()
	event := Event{
		ID:          "evt-" + uuid.NewString(),
		CreatedAt:   now.UTC(),
		ObjectType:  result.ObjectType,
		Explanation: result.Explanation,
	}
	if !frame.Empty() {
		event.FrameDataURI = frame.DataURI()
	}
	return event
}

// DroneDetected mirrors the classification invariant for a stored event.
func (e Event) DroneDetected() bool {
	return e.ObjectType == ObjectDrone
}
