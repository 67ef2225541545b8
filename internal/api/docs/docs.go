// Package docs holds the OpenAPI document served at /swagger/doc.json.
// Regenerate with: swag init -g cmd/app/main.go -o internal/api/docs
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
        "/convert": {
            "post": {
                "security": [{"BasicAuth": []}],
                "description": "Resolves the current rate (from cache or the upstream provider) and returns the converted amount rounded to 2 decimal places.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["conversion"],
                "summary": "Convert an amount between two currencies",
                "parameters": [
                    {
                        "description": "Amount and currency pair",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/api.ConvertRequest"}
                    }
                ],
                "responses": {
                    "200": {"description": "Conversion result", "schema": {"$ref": "#/definitions/api.ConvertResponse"}},
                    "400": {"description": "Invalid request", "schema": {"$ref": "#/definitions/api.ErrorResponse"}},
                    "401": {"description": "Missing or invalid credentials", "schema": {"$ref": "#/definitions/api.ErrorResponse"}},
                    "404": {"description": "Conversion rate not found", "schema": {"$ref": "#/definitions/api.ErrorResponse"}},
                    "500": {"description": "Database error occurred", "schema": {"$ref": "#/definitions/api.ErrorResponse"}},
                    "503": {"description": "Rate provider unavailable", "schema": {"$ref": "#/definitions/api.ErrorResponse"}}
                }
            }
        },
        "/rates/warm": {
            "post": {
                "security": [{"BasicAuth": []}],
                "description": "Enqueues a background task that fetches the base currency's rate table once and stores every configured pair.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["rates"],
                "summary": "Warm the rate cache for a base currency",
                "parameters": [
                    {
                        "description": "Base currency",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/api.WarmRequest"}
                    }
                ],
                "responses": {
                    "202": {"description": "Warm-up accepted", "schema": {"$ref": "#/definitions/api.WarmResponse"}},
                    "400": {"description": "Invalid base currency", "schema": {"$ref": "#/definitions/api.ErrorResponse"}},
                    "401": {"description": "Missing or invalid credentials", "schema": {"$ref": "#/definitions/api.ErrorResponse"}},
                    "500": {"description": "Internal error", "schema": {"$ref": "#/definitions/api.ErrorResponse"}}
                }
            }
        },
        "/rates/{from}/{to}": {
            "get": {
                "description": "Resolves the rate through the same cache-aside path as /convert.",
                "produces": ["application/json"],
                "tags": ["rates"],
                "summary": "Get the current rate for a currency pair",
                "parameters": [
                    {"maxLength": 3, "minLength": 3, "type": "string", "description": "Source currency code", "name": "from", "in": "path", "required": true},
                    {"maxLength": 3, "minLength": 3, "type": "string", "description": "Target currency code", "name": "to", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "Rate found", "schema": {"$ref": "#/definitions/api.RateResponse"}},
                    "400": {"description": "Invalid currency", "schema": {"$ref": "#/definitions/api.ErrorResponse"}},
                    "404": {"description": "Conversion rate not found", "schema": {"$ref": "#/definitions/api.ErrorResponse"}},
                    "500": {"description": "Database error occurred", "schema": {"$ref": "#/definitions/api.ErrorResponse"}},
                    "503": {"description": "Rate provider unavailable", "schema": {"$ref": "#/definitions/api.ErrorResponse"}}
                }
            }
        },
        "/health": {
            "get": {
                "description": "Reports that the service is up, with the current UTC timestamp and service name.",
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Service health",
                "responses": {
                    "200": {"description": "Service healthy", "schema": {"$ref": "#/definitions/api.HealthResponse"}}
                }
            }
        },
        "/healthz": {
            "get": {
                "description": "Always returns 200 OK if the service is running. Used for liveness probes.",
                "produces": ["text/plain"],
                "tags": ["health"],
                "summary": "Health check (liveness)",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "string"}}
                }
            }
        },
        "/readyz": {
            "get": {
                "description": "Checks connectivity to the rate store, Postgres and the task queue Redis. Returns 200 only when all dependencies are reachable.",
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Readiness check",
                "responses": {
                    "200": {"description": "All dependencies ready", "schema": {"$ref": "#/definitions/api.ReadyResponse"}},
                    "503": {"description": "At least one dependency unavailable", "schema": {"$ref": "#/definitions/api.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "api.ConvertRequest": {
            "type": "object",
            "properties": {
                "amount": {"type": "number", "example": 100},
                "from": {"type": "string", "example": "USD"},
                "to": {"type": "string", "example": "BRL"}
            }
        },
        "api.ConvertResponse": {
            "type": "object",
            "properties": {
                "amount": {"type": "number", "example": 100},
                "converted_amount": {"type": "number", "example": 520},
                "from": {"type": "string", "example": "USD"},
                "rate": {"type": "number", "example": 5.2},
                "to": {"type": "string", "example": "BRL"}
            }
        },
        "api.ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string", "example": "Conversion rate not found for USD to XYZ"}
            }
        },
        "api.HealthResponse": {
            "type": "object",
            "properties": {
                "service": {"type": "string", "example": "rate-service"},
                "status": {"type": "string", "example": "healthy"},
                "timestamp": {"type": "string", "example": "2025-12-01T10:15:30Z"}
            }
        },
        "api.RateResponse": {
            "type": "object",
            "properties": {
                "from": {"type": "string", "example": "USD"},
                "rate": {"type": "number", "example": 5.2},
                "to": {"type": "string", "example": "BRL"}
            }
        },
        "api.ReadyResponse": {
            "type": "object",
            "properties": {
                "status": {"type": "string", "example": "ready"}
            }
        },
        "api.WarmRequest": {
            "type": "object",
            "properties": {
                "base": {"type": "string", "example": "USD"}
            }
        },
        "api.WarmResponse": {
            "type": "object",
            "properties": {
                "base": {"type": "string", "example": "USD"},
                "task_id": {"type": "string", "example": "123e4567-e89b-12d3-a456-426614174000"}
            }
        }
    },
    "securityDefinitions": {
        "BasicAuth": {"type": "basic"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Currency Conversion Rate Service API",
	Description:      "Converts amounts between currencies using cached exchange rates with upstream fallback.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
