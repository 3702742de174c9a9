package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "District Health TMS API",
        "description": "Training management for the district health administration",
        "version": "1.0.0"
    },
    "basePath": "/api",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "Auth", "description": "Authentication and sessions"},
        {"name": "Halls", "description": "Hall registry and availability"},
        {"name": "HallBlocks", "description": "Administrative hall blocks"},
        {"name": "Trainings", "description": "Training lifecycle and booking"},
        {"name": "Nominations", "description": "Participant nominations"},
        {"name": "Attendance", "description": "QR and manual attendance"},
        {"name": "Notifications", "description": "In-app notifications"}
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Auth"],
                "summary": "Authenticate with email and password",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/halls/available": {
            "get": {
                "tags": ["Halls"],
                "summary": "List halls free for a date and time window",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "date", "in": "query", "required": true, "type": "string"},
                    {"name": "start_time", "in": "query", "required": true, "type": "string"},
                    {"name": "end_time", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/halls/{id}/availability-details": {
            "get": {
                "tags": ["Halls"],
                "summary": "Explain a hall's availability for a date and time window",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "date", "in": "query", "required": true, "type": "string"},
                    {"name": "start_time", "in": "query", "required": true, "type": "string"},
                    {"name": "end_time", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/HallAvailabilityResult"}}
                }
            }
        },
        "/trainings": {
            "get": {
                "tags": ["Trainings"],
                "summary": "List trainings visible to the caller",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "from", "in": "query", "type": "string"},
                    {"name": "to", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Trainings"],
                "summary": "Create training",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateTrainingRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Hall already booked", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/hall-blocks": {
            "post": {
                "tags": ["HallBlocks"],
                "summary": "Block a hall slot for administrative use",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateBlockRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Slot occupied", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/nominations": {
            "post": {
                "tags": ["Nominations"],
                "summary": "Nominate a participant for a training",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/NominateRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Duplicate or double-booked participant", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/nominations/busy-participants": {
            "get": {
                "tags": ["Nominations"],
                "summary": "List participants already committed on a date",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "date", "in": "query", "required": true, "type": "string"},
                    {"name": "exclude_training_id", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/attendance/scan": {
            "post": {
                "tags": ["Attendance"],
                "summary": "Check in with a scanned QR token",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ScanRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            },
            "required": ["email", "password"]
        },
        "CreateTrainingRequest": {
            "type": "object",
            "properties": {
                "title": {"type": "string"},
                "description": {"type": "string"},
                "program": {"type": "string"},
                "date": {"type": "string"},
                "start_time": {"type": "string"},
                "end_time": {"type": "string"},
                "hall_id": {"type": "string"},
                "capacity": {"type": "integer"},
                "trainer_id": {"type": "string"},
                "target_audience": {"type": "string"},
                "required_institutions": {"type": "array", "items": {"type": "string"}},
                "status": {"type": "string"}
            },
            "required": ["title", "description", "program", "date", "start_time", "end_time", "hall_id", "capacity", "trainer_id"]
        },
        "CreateBlockRequest": {
            "type": "object",
            "properties": {
                "hall_id": {"type": "string"},
                "date": {"type": "string"},
                "start_time": {"type": "string"},
                "end_time": {"type": "string"},
                "reason": {"type": "string"}
            },
            "required": ["hall_id", "date", "start_time", "end_time"]
        },
        "NominateRequest": {
            "type": "object",
            "properties": {
                "training_id": {"type": "string"},
                "participant_id": {"type": "string"}
            },
            "required": ["training_id", "participant_id"]
        },
        "ScanRequest": {
            "type": "object",
            "properties": {
                "training_id": {"type": "string"},
                "token": {"type": "string"}
            },
            "required": ["training_id", "token"]
        },
        "HallAvailabilityResult": {
            "type": "object",
            "properties": {
                "isAvailable": {"type": "boolean"},
                "type": {"type": "string"},
                "reason": {"type": "string"},
                "bookedBy": {"type": "string"}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
