// Package docs registers the OpenAPI document served at /openapi.json.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/status": {
            "get": {
                "description": "Sampler state, sensitivity, interval and event count",
                "produces": ["application/json"],
                "tags": ["Monitor"],
                "summary": "Monitoring status",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/services.MonitorStatus"}}}
            }
        },
        "/monitor/start": {
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Acquires the camera and starts sampling. A missing or zero sensitivity keeps the current one.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Monitor"],
                "summary": "Start monitoring",
                "parameters": [{"description": "sensitivity 1..10", "name": "body", "in": "body", "schema": {"$ref": "#/definitions/webapi.SensitivityRequest"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/services.MonitorStatus"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/httptransport.APIResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/httptransport.APIResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/httptransport.APIResponse"}}
                }
            }
        },
        "/monitor/stop": {
            "post": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Monitor"],
                "summary": "Stop monitoring",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/services.MonitorStatus"}}}
            }
        },
        "/monitor/sensitivity": {
            "put": {
                "security": [{"BearerAuth": []}],
                "description": "Rejected with 409 while monitoring is active",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Monitor"],
                "summary": "Set sensitivity",
                "parameters": [{"description": "sensitivity 1..10", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/webapi.SensitivityRequest"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/services.MonitorStatus"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/httptransport.APIResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/httptransport.APIResponse"}}
                }
            }
        },
        "/events": {
            "get": {
                "description": "Newest first. frames=false omits the frame data URIs.",
                "produces": ["application/json"],
                "tags": ["Events"],
                "summary": "List detection events",
                "parameters": [{"type": "boolean", "default": true, "description": "include frame data URIs", "name": "frames", "in": "query"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/webapi.EventList"}}}
            }
        },
        "/events/{id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Events"],
                "summary": "Get one detection event",
                "parameters": [{"type": "string", "description": "event id", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/detection.Event"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/httptransport.APIResponse"}}
                }
            }
        },
        "/events/{id}/explain": {
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Asks the vision backend about the event frame. The answer is cached per event.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Events"],
                "summary": "Explain why an event was flagged",
                "parameters": [
                    {"type": "string", "description": "event id", "name": "id", "in": "path", "required": true},
                    {"description": "optional hints", "name": "body", "in": "body", "schema": {"$ref": "#/definitions/detection.ExplainRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/webapi.ExplainResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/httptransport.APIResponse"}}
                }
            }
        },
        "/debug": {
            "get": {
                "description": "Raw backend replies and errors, newest first",
                "produces": ["application/json"],
                "tags": ["Debug"],
                "summary": "AI debug log",
                "responses": {"200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/detection.DebugEntry"}}}}
            },
            "delete": {
                "security": [{"BearerAuth": []}],
                "tags": ["Debug"],
                "summary": "Clear the AI debug log",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/httptransport.APIResponse"}}}
            }
        },
        "/classify": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Vision"],
                "summary": "Classify endpoint status",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/vision.StatusData"}}}
            },
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Runs the frame through validation, classification, the event log and the alert policy",
                "consumes": ["multipart/form-data"],
                "produces": ["application/json"],
                "tags": ["Vision"],
                "summary": "Classify one uploaded frame",
                "parameters": [{"type": "file", "description": "image file", "name": "file", "in": "formData", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/vision.ClassifyData"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/httptransport.APIResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/httptransport.APIResponse"}}
                }
            }
        },
        "/system": {
            "get": {
                "produces": ["application/json"],
                "tags": ["System"],
                "summary": "Host resource usage",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/webapi.SystemStats"}}}
            }
        }
    },
    "definitions": {
        "httptransport.APIResponse": {
            "type": "object",
            "properties": {
                "code": {"type": "integer"},
                "data": {},
                "message": {"type": "string"},
                "success": {"type": "boolean"}
            }
        },
        "detection.ClassificationResult": {
            "type": "object",
            "properties": {
                "droneDetected": {"type": "boolean"},
                "objectType": {"type": "string", "enum": ["drone", "bird", "plane", "person", "none", "error"]},
                "explanation": {"type": "string"}
            }
        },
        "detection.Event": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "timestamp": {"type": "string", "format": "date-time"},
                "objectType": {"type": "string"},
                "explanation": {"type": "string"},
                "frameDataUri": {"type": "string"}
            }
        },
        "detection.ExplainRequest": {
            "type": "object",
            "properties": {
                "objectSize": {"type": "string"},
                "motionPatterns": {"type": "string"}
            }
        },
        "detection.DebugEntry": {
            "type": "object",
            "properties": {
                "at": {"type": "string", "format": "date-time"},
                "backend": {"type": "string"},
                "raw": {"type": "string"},
                "error": {"type": "string"},
                "kind": {"type": "string"},
                "result": {"$ref": "#/definitions/detection.ClassificationResult"},
                "elapsed": {"type": "integer"}
            }
        },
        "sampler.Stats": {
            "type": "object",
            "properties": {
                "ticks": {"type": "integer"},
                "droppedTicks": {"type": "integer"},
                "rounds": {"type": "integer"},
                "captureFailures": {"type": "integer"}
            }
        },
        "services.MonitorStatus": {
            "type": "object",
            "properties": {
                "active": {"type": "boolean"},
                "sensitivity": {"type": "integer"},
                "intervalMs": {"type": "integer"},
                "inFlight": {"type": "boolean"},
                "camera": {"type": "string"},
                "events": {"type": "integer"},
                "sampler": {"$ref": "#/definitions/sampler.Stats"},
                "startedAt": {"type": "string", "format": "date-time"}
            }
        },
        "vision.ClassifyData": {
            "type": "object",
            "properties": {
                "result": {"$ref": "#/definitions/detection.ClassificationResult"},
                "event": {"$ref": "#/definitions/detection.Event"},
                "alerted": {"type": "boolean"},
                "width": {"type": "integer"},
                "height": {"type": "integer"},
                "format": {"type": "string"}
            }
        },
        "vision.StatusData": {
            "type": "object",
            "properties": {
                "backend": {"type": "string"},
                "ready": {"type": "boolean"}
            }
        },
        "webapi.EventList": {
            "type": "object",
            "properties": {
                "count": {"type": "integer"},
                "events": {"type": "array", "items": {"$ref": "#/definitions/detection.Event"}}
            }
        },
        "webapi.ExplainResponse": {
            "type": "object",
            "properties": {
                "eventId": {"type": "string"},
                "explanation": {"type": "string"}
            }
        },
        "webapi.SensitivityRequest": {
            "type": "object",
            "properties": {
                "sensitivity": {"type": "integer", "minimum": 1, "maximum": 10}
            }
        },
        "webapi.SystemStats": {
            "type": "object",
            "properties": {
                "cpuLoad": {"type": "number"},
                "ramUsedMb": {"type": "number"},
                "ramTotalMb": {"type": "number"},
                "processRssMb": {"type": "number"},
                "diskUsedGb": {"type": "number"},
                "diskTotalGb": {"type": "number"},
                "goroutines": {"type": "integer"},
                "collectedAt": {"type": "string", "format": "date-time"}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api",
	Schemes:          []string{},
	Title:            "Dronewatch API",
	Description:      "Camera sampling, vision-model drone classification, event log and alerts.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
