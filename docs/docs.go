// Package docs registers the OpenAPI document served under /swagger.
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
        "/documents": {
            "get": {
                "produces": ["application/json"],
                "tags": ["documents"],
                "summary": "List documents",
                "parameters": [
                    {"type": "string", "description": "Owner filter (case-insensitive)", "name": "ownerId", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.documentList"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/handler.errorPayload"}}
                }
            },
            "post": {
                "consumes": ["multipart/form-data"],
                "produces": ["application/json"],
                "tags": ["documents"],
                "summary": "Upload a document",
                "parameters": [
                    {"type": "file", "description": "Document (xls, xlsx, csv, pdf, png, jpg, jpeg; max 20 MiB)", "name": "file", "in": "formData", "required": true},
                    {"type": "string", "description": "Owner", "name": "ownerId", "in": "formData", "required": true}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/model.Document"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.errorPayload"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/handler.errorPayload"}}
                }
            }
        },
        "/documents/{originalName}": {
            "get": {
                "produces": ["application/octet-stream"],
                "tags": ["documents"],
                "summary": "Download a document",
                "parameters": [
                    {"type": "string", "description": "File name as uploaded", "name": "originalName", "in": "path", "required": true},
                    {"type": "string", "description": "Owner", "name": "ownerId", "in": "query", "required": true},
                    {"type": "string", "description": "Single byte range, e.g. bytes=0-99", "name": "Range", "in": "header"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "file"}},
                    "206": {"description": "Partial Content", "schema": {"type": "file"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.errorPayload"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handler.errorPayload"}},
                    "416": {"description": "Requested Range Not Satisfiable", "schema": {"$ref": "#/definitions/handler.errorPayload"}}
                }
            },
            "delete": {
                "produces": ["application/json"],
                "tags": ["documents"],
                "summary": "Delete a document",
                "parameters": [
                    {"type": "string", "description": "File name as uploaded", "name": "originalName", "in": "path", "required": true},
                    {"type": "string", "description": "Owner", "name": "ownerId", "in": "query", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.deleteResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.errorPayload"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handler.errorPayload"}}
                }
            }
        },
        "/health": {
            "get": {
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Readiness probe",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/handler.errorPayload"}}
                }
            }
        },
        "/healthz": {
            "get": {
                "tags": ["health"],
                "summary": "Liveness probe",
                "responses": {"200": {"description": "OK"}}
            }
        }
    },
    "definitions": {
        "handler.deleteResponse": {
            "type": "object",
            "properties": {
                "fileName": {"type": "string"},
                "message": {"type": "string"},
                "physicalDeleted": {"type": "boolean"}
            }
        },
        "handler.documentList": {
            "type": "object",
            "properties": {
                "data": {"type": "array", "items": {"$ref": "#/definitions/model.Document"}},
                "total": {"type": "integer"}
            }
        },
        "handler.errorEnvelope": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"}
            }
        },
        "handler.errorPayload": {
            "type": "object",
            "properties": {
                "error": {"$ref": "#/definitions/handler.errorEnvelope"},
                "request_id": {"type": "string"}
            }
        },
        "model.Document": {
            "type": "object",
            "properties": {
                "blobRef": {"type": "string"},
                "contentType": {"type": "string"},
                "createdAt": {"type": "string"},
                "extension": {"type": "string"},
                "id": {"type": "string"},
                "originalName": {"type": "string"},
                "ownerId": {"type": "string"},
                "sizeBytes": {"type": "integer"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Document Store API",
	Description:      "Upload, list, download (with byte ranges) and delete owner-scoped documents.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
