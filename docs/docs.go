// Package docs registers the OpenAPI description served at /swagger.
// Regenerate with: swag init -g cmd/server/main.go
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
        "/auth/register": {"post": {"tags": ["auth"], "summary": "Register a new user", "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/registerRequest"}}], "responses": {"201": {"description": "Created"}, "400": {"description": "Bad Request"}, "403": {"description": "Forbidden"}, "409": {"description": "Conflict"}}}},
        "/auth/login": {"post": {"tags": ["auth"], "summary": "Login", "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/loginRequest"}}], "responses": {"200": {"description": "OK"}, "401": {"description": "Unauthorized"}}}},
        "/me": {
            "get": {"tags": ["auth"], "summary": "Current user", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}},
            "put": {"tags": ["auth"], "summary": "Update current user profile", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}}
        },
        "/auctions": {
            "get": {"tags": ["auctions"], "summary": "List auctions", "security": [{"BearerAuth": []}], "parameters": [{"in": "query", "name": "status", "type": "string", "description": "active, closed or cancelled (dealers: active only)"}, {"in": "query", "name": "buyer_id", "type": "string"}], "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}, "403": {"description": "Forbidden"}}},
            "post": {"tags": ["auctions"], "summary": "Open a reverse auction for a vehicle", "security": [{"BearerAuth": []}], "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/createAuctionRequest"}}], "responses": {"201": {"description": "Created"}, "400": {"description": "Bad Request"}}}
        },
        "/auctions/{id}": {"get": {"tags": ["auctions"], "summary": "Get an auction with its ranking summary", "security": [{"BearerAuth": []}], "parameters": [{"in": "path", "name": "id", "required": true, "type": "string"}], "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}}},
        "/auctions/{id}/bids": {
            "get": {"tags": ["bids"], "summary": "List bids on an auction", "security": [{"BearerAuth": []}], "parameters": [{"in": "path", "name": "id", "required": true, "type": "string"}], "responses": {"200": {"description": "OK"}}},
            "post": {"tags": ["bids"], "summary": "Submit a price offer", "security": [{"BearerAuth": []}], "parameters": [{"in": "path", "name": "id", "required": true, "type": "string"}, {"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/submitBidRequest"}}], "responses": {"201": {"description": "Created"}, "400": {"description": "Bad Request"}, "403": {"description": "Forbidden"}, "409": {"description": "Conflict"}}}
        },
        "/auctions/{id}/cancel": {"post": {"tags": ["auctions"], "summary": "Cancel an auction without bids", "security": [{"BearerAuth": []}], "parameters": [{"in": "path", "name": "id", "required": true, "type": "string"}], "responses": {"200": {"description": "OK"}, "409": {"description": "Conflict"}}}},
        "/dealers/{id}/bids": {"get": {"tags": ["bids"], "summary": "A dealer's bids across auctions", "security": [{"BearerAuth": []}], "parameters": [{"in": "path", "name": "id", "required": true, "type": "string"}], "responses": {"200": {"description": "OK"}, "403": {"description": "Forbidden"}}}},
        "/ws/auctions/{id}": {"get": {"tags": ["push"], "summary": "Subscribe to an auction's live events", "parameters": [{"in": "path", "name": "id", "required": true, "type": "string"}, {"in": "query", "name": "token", "type": "string"}], "responses": {"101": {"description": "Switching Protocols"}}}},
        "/admin/auctions": {"get": {"tags": ["admin"], "summary": "All auctions with ranking summaries", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}}},
        "/admin/auctions/{id}/status": {"put": {"tags": ["admin"], "summary": "Force an auction status", "security": [{"BearerAuth": []}], "parameters": [{"in": "path", "name": "id", "required": true, "type": "string"}, {"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/statusRequest"}}], "responses": {"200": {"description": "OK"}, "409": {"description": "Conflict"}}}},
        "/admin/stats": {"get": {"tags": ["admin"], "summary": "Platform statistics", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}}},
        "/admin/system/health": {"get": {"tags": ["admin"], "summary": "System health with push-channel load", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}}},
        "/admin/users": {"get": {"tags": ["admin"], "summary": "List accounts", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}}},
        "/admin/users/{id}": {"put": {"tags": ["admin"], "summary": "Update an account", "security": [{"BearerAuth": []}], "parameters": [{"in": "path", "name": "id", "required": true, "type": "string"}], "responses": {"200": {"description": "OK"}}}},
        "/admin/dealers/{id}/verify": {"put": {"tags": ["admin"], "summary": "Verify a dealer's license", "security": [{"BearerAuth": []}], "parameters": [{"in": "path", "name": "id", "required": true, "type": "string"}], "responses": {"200": {"description": "OK"}}}},
        "/health": {"get": {"tags": ["health"], "summary": "Liveness probe", "responses": {"200": {"description": "OK"}}}},
        "/health/ready": {"get": {"tags": ["health"], "summary": "Readiness probe", "responses": {"200": {"description": "OK"}, "503": {"description": "Service Unavailable"}}}}
    },
    "definitions": {
        "registerRequest": {"type": "object", "required": ["email", "password", "name", "role"], "properties": {"email": {"type": "string"}, "password": {"type": "string"}, "name": {"type": "string"}, "role": {"type": "string", "enum": ["buyer", "dealer"]}, "dealer_tier": {"type": "string", "enum": ["standard", "premium", "gold"]}, "phone": {"type": "string"}, "location": {"type": "string"}, "dealer_license": {"type": "string"}}},
        "loginRequest": {"type": "object", "required": ["email", "password"], "properties": {"email": {"type": "string"}, "password": {"type": "string"}}},
        "createAuctionRequest": {"type": "object", "required": ["title", "vehicle", "max_budget"], "properties": {"title": {"type": "string"}, "description": {"type": "string"}, "location": {"type": "string"}, "vehicle": {"type": "object"}, "max_budget": {"type": "string", "example": "50000.00"}, "starts_at": {"type": "string", "format": "date-time"}, "ends_at": {"type": "string", "format": "date-time"}, "duration_hours": {"type": "integer"}}},
        "submitBidRequest": {"type": "object", "required": ["price"], "properties": {"price": {"type": "string", "example": "47000.00"}, "message": {"type": "string"}}},
        "statusRequest": {"type": "object", "required": ["status"], "properties": {"status": {"type": "string", "enum": ["active", "closed", "cancelled"]}}}
    },
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Auction Engine API",
	Description:      "Reverse car auctions: buyers post vehicle requests, dealers compete on price.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
