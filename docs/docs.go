// Package docs holds the OpenAPI document served at /swagger.
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
        "/patients/{name}/process": {
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Queue the PA form and referral package of a patient for extraction. Returns immediately.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["jobs"],
                "summary": "Start processing a patient folder",
                "parameters": [
                    {"type": "string", "description": "Patient folder name", "name": "name", "in": "path", "required": true},
                    {"description": "Processing options", "name": "request", "in": "body", "schema": {"$ref": "#/definitions/handler.ProcessRequest"}}
                ],
                "responses": {
                    "202": {"description": "Job accepted", "schema": {"$ref": "#/definitions/handler.ProcessResponse"}},
                    "400": {"description": "Invalid patient name or options", "schema": {"$ref": "#/definitions/handler.ErrorResponseBody"}}
                }
            }
        },
        "/patients/{name}/artifacts/{stage}": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["artifacts"],
                "summary": "Inspect a stage artifact",
                "parameters": [
                    {"type": "string", "description": "Patient folder name", "name": "name", "in": "path", "required": true},
                    {"type": "string", "description": "Stage (analysis, ocr, nlp, form, result)", "name": "stage", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "Artifact", "schema": {"$ref": "#/definitions/handler.Response"}},
                    "404": {"description": "No artifact", "schema": {"$ref": "#/definitions/handler.ErrorResponseBody"}}
                }
            }
        },
        "/jobs": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["jobs"],
                "summary": "List jobs",
                "parameters": [
                    {"type": "string", "description": "Filter by status", "name": "status", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "Jobs", "schema": {"$ref": "#/definitions/handler.Response"}}
                }
            }
        },
        "/jobs/{id}/status": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["jobs"],
                "summary": "Get job status",
                "parameters": [
                    {"type": "string", "description": "Job ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "Job status", "schema": {"$ref": "#/definitions/handler.JobStatusResponse"}},
                    "404": {"description": "Job not found", "schema": {"$ref": "#/definitions/handler.ErrorResponseBody"}}
                }
            }
        },
        "/jobs/{id}/cancel": {
            "post": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["jobs"],
                "summary": "Cancel a job",
                "parameters": [
                    {"type": "string", "description": "Job ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "Cancel requested", "schema": {"$ref": "#/definitions/handler.JobStatusResponse"}},
                    "409": {"description": "Job already finished", "schema": {"$ref": "#/definitions/handler.ErrorResponseBody"}}
                }
            }
        },
        "/jobs/{id}/report.xlsx": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"],
                "tags": ["jobs"],
                "summary": "Download the missing-fields workbook",
                "parameters": [
                    {"type": "string", "description": "Job ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "XLSX workbook", "schema": {"type": "file"}},
                    "400": {"description": "Job not completed", "schema": {"$ref": "#/definitions/handler.ErrorResponseBody"}}
                }
            }
        }
    },
    "definitions": {
        "handler.APIError": {
            "type": "object",
            "properties": {"code": {"type": "string"}, "message": {"type": "string"}}
        },
        "handler.ErrorResponseBody": {
            "type": "object",
            "properties": {"success": {"type": "boolean", "example": false}, "error": {"$ref": "#/definitions/handler.APIError"}}
        },
        "handler.Response": {
            "type": "object",
            "properties": {"success": {"type": "boolean", "example": true}, "data": {}}
        },
        "handler.ProcessRequest": {
            "type": "object",
            "properties": {
                "priority": {"type": "string", "example": "normal"},
                "callback_url": {"type": "string"},
                "notify_email": {"type": "string"},
                "metadata": {"type": "object", "additionalProperties": {"type": "string"}}
            }
        },
        "handler.ProcessResponse": {
            "type": "object",
            "properties": {
                "job_id": {"type": "string"},
                "patient_name": {"type": "string"},
                "status": {"type": "string", "example": "pending"}
            }
        },
        "handler.JobStatusResponse": {
            "type": "object",
            "properties": {
                "job_id": {"type": "string"},
                "patient_name": {"type": "string"},
                "status": {"type": "string"},
                "progress": {"type": "integer"},
                "stage": {"type": "string"},
                "error": {"type": "string"},
                "created_at": {"type": "string"},
                "updated_at": {"type": "string"},
                "completed_at": {"type": "string"},
                "result": {"type": "object"}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "ClaimEase API",
	Description:      "Prior-authorization extraction pipeline: submit patient folders, track jobs, download reports.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
