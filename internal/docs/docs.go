// Package docs registers the OpenAPI description of the HTTP surface with
// swag so gin-swagger can serve it. Regenerate with:
//
//	swag init -g cmd/duckbot/main.go -o internal/docs --parseInternal
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
        "/health": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Health"],
                "summary": "Liveness probe",
                "operationId": "health",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.StatusResponse"}}
                }
            }
        },
        "/slack/events": {
            "post": {
                "description": "Authenticates the request with the tenant signing secrets, answers url_verification, and processes message and app_mention events.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Webhook"],
                "summary": "Slack Events API webhook",
                "operationId": "receiveSlackEvent",
                "parameters": [
                    {"type": "string", "description": "Request timestamp (epoch seconds)", "name": "X-Slack-Request-Timestamp", "in": "header", "required": true},
                    {"type": "string", "description": "v0=<hex hmac-sha256>", "name": "X-Slack-Signature", "in": "header", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.StatusResponse"}},
                    "400": {"description": "Malformed body", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "401": {"description": "Invalid signature", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/api/v1/admin/tenants/{tenant}/stats": {
            "get": {
                "security": [{"BearerAuth": []}],
                "description": "Aggregates all stored turns of the tenant, excluding administrators.",
                "produces": ["application/json"],
                "tags": ["Admin"],
                "summary": "Usage summary for a tenant",
                "operationId": "tenantStats",
                "parameters": [
                    {"type": "string", "example": "duck", "description": "Tenant id", "name": "tenant", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/services.Summary"}},
                    "401": {"description": "Missing or invalid token", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "403": {"description": "Not an administrator", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "404": {"description": "Unknown tenant", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "429": {"description": "Rate limited", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "500": {"description": "Internal error", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/api/v1/admin/tenants/{tenant}/queries": {
            "get": {
                "security": [{"BearerAuth": []}],
                "description": "Lists the newest non-administrator messages. limit defaults to 10 and is capped at 100.",
                "produces": ["application/json"],
                "tags": ["Admin"],
                "summary": "Recent user queries for a tenant",
                "operationId": "recentQueries",
                "parameters": [
                    {"type": "string", "example": "duck", "description": "Tenant id", "name": "tenant", "in": "path", "required": true},
                    {"type": "integer", "example": 10, "description": "Listing size (1..100)", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.QueriesResponse"}},
                    "401": {"description": "Missing or invalid token", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "403": {"description": "Not an administrator", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "404": {"description": "Unknown tenant", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "429": {"description": "Rate limited", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "500": {"description": "Internal error", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "handlers.ErrorResponse": {
            "type": "object",
            "properties": {
                "code": {"type": "string", "example": "not_found"},
                "message": {"type": "string", "example": "unknown tenant"},
                "request_id": {"type": "string", "example": "123e4567-e89b-12d3-a456-426614174000"}
            }
        },
        "handlers.StatusResponse": {
            "type": "object",
            "properties": {
                "status": {"type": "string", "example": "ok"}
            }
        },
        "handlers.QueriesResponse": {
            "type": "object",
            "properties": {
                "limit": {"type": "integer", "example": 10},
                "queries": {"type": "array", "items": {"$ref": "#/definitions/services.Query"}},
                "tenant": {"type": "string", "example": "duck"}
            }
        },
        "services.Query": {
            "type": "object",
            "properties": {
                "at": {"type": "string"},
                "message": {"type": "string"},
                "user_name": {"type": "string"}
            }
        },
        "services.Summary": {
            "type": "object",
            "properties": {
                "avg_response_length": {"type": "integer"},
                "avg_tokens": {"type": "integer"},
                "distinct_users": {"type": "integer"},
                "first": {"type": "string"},
                "last": {"type": "string"},
                "tenant": {"type": "string"},
                "total_tokens": {"type": "integer"},
                "total_turns": {"type": "integer"}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "description": "Admin token from ` + "`duckbot admin-token`" + `, sent as \"Bearer <token>\".",
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
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "duckbot API",
	Description:      "Slack webhook and read-only admin analytics for the duckbot tutors.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
