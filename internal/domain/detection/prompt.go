package detection

import "fmt"

// ClassifyInstruction is sent with every frame.
const ClassifyInstruction = `You are an expert in analyzing camera frames for drone detection.

Analyze the attached frame and identify the most prominent airborne or moving object.
Consider object size, silhouette, rotors or wings, and typical drone shapes.

Respond with a single JSON object and nothing else:
{"droneDetected": <true|false>, "objectType": "<drone|bird|plane|person|none>", "explanation": "<short reason>"}

Use "none" when nothing of interest is visible. Set droneDetected to true only when objectType is "drone".
When objectType is not "none", describe the contributing factors such as size, shape and motion in explanation.`

const (
	defaultObjectSize     = "Varies"
	defaultMotionPatterns = "Unknown, judged from a single still frame"
)

// ExplainInstruction asks the backend why an event was flagged.
func ExplainInstruction(objectType ObjectType, objectSize, motionPatterns string) string {
	if objectSize == "" {
		objectSize = defaultObjectSize
	}
	if motionPatterns == "" {
		motionPatterns = defaultMotionPatterns
	}
	return fmt.Sprintf(`You are an expert system designed to explain why an object was identified as a %s.

Use the following information to provide a clear and concise explanation:

Object Size: %s
Motion Patterns: %s

Based on this information and the attached photo, explain why the object was likely identified as a %s.
Consider the object's size, movement patterns and appearance in the photo.

Respond with a single JSON object: {"explanation": "<reasoned explanation>"}`,
		objectType, objectSize, motionPatterns, objectType)
}
