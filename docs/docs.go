// Package docs is generated by swag init from the handler annotations.
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
        "/v1/designs": {
            "get": {
                "description": "Search, filter, sort and paginate the public catalog",
                "produces": ["application/json"],
                "tags": ["designs"],
                "summary": "List designs",
                "parameters": [
                    {"type": "string", "description": "substring of title, description or a tag", "name": "search", "in": "query"},
                    {"type": "string", "description": "category id", "name": "category", "in": "query"},
                    {"type": "string", "description": "Beginner, Intermediate or Advanced", "name": "difficulty", "in": "query"},
                    {"type": "string", "description": "min-max or min-", "name": "priceRange", "in": "query"},
                    {"type": "string", "description": "createdAt, updatedAt, price, title, sales, downloads, rating, stitchCount", "name": "sortBy", "in": "query"},
                    {"type": "string", "description": "asc or desc", "name": "sortOrder", "in": "query"},
                    {"type": "integer", "description": "page number", "name": "page", "in": "query"},
                    {"type": "integer", "description": "page size (max 100)", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.DesignPage"}}
                }
            }
        },
        "/v1/admin/designs": {
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Multipart create; images[] and designFile_<FORMAT> files are stored after the record",
                "consumes": ["multipart/form-data"],
                "produces": ["application/json"],
                "tags": ["admin"],
                "summary": "Create a design",
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/models.Design"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/common.ErrorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/common.ErrorResponse"}}
                }
            }
        },
        "/v1/auth/register": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Register a user",
                "parameters": [
                    {"description": "new account", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/models.RegisterRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/models.AuthResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/common.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "common.ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {
                    "type": "object",
                    "properties": {
                        "code": {"type": "string"},
                        "message": {"type": "string"},
                        "details": {"type": "object", "additionalProperties": {"type": "string"}}
                    }
                }
            }
        },
        "models.Image": {
            "type": "object",
            "properties": {
                "url": {"type": "string"},
                "alt": {"type": "string"},
                "thumbnail": {"type": "string"}
            }
        },
        "models.Design": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "title": {"type": "string"},
                "description": {"type": "string"},
                "price": {"type": "string"},
                "difficulty": {"type": "string"},
                "stitchCount": {"type": "integer"},
                "images": {"type": "array", "items": {"$ref": "#/definitions/models.Image"}},
                "designFiles": {"type": "object", "additionalProperties": {"type": "string"}},
                "formats": {"type": "array", "items": {"type": "string"}},
                "tags": {"type": "array", "items": {"type": "string"}},
                "downloads": {"type": "integer"},
                "sales": {"type": "integer"},
                "featured": {"type": "boolean"},
                "popular": {"type": "boolean"},
                "createdAt": {"type": "string"},
                "updatedAt": {"type": "string"}
            }
        },
        "models.DesignPage": {
            "type": "object",
            "properties": {
                "designs": {"type": "array", "items": {"$ref": "#/definitions/models.Design"}},
                "pagination": {
                    "type": "object",
                    "properties": {
                        "page": {"type": "integer"},
                        "limit": {"type": "integer"},
                        "total": {"type": "integer"},
                        "pages": {"type": "integer"}
                    }
                }
            }
        },
        "models.RegisterRequest": {
            "type": "object",
            "required": ["email", "password", "username"],
            "properties": {
                "username": {"type": "string"},
                "email": {"type": "string"},
                "password": {"type": "string"}
            }
        },
        "models.AuthResponse": {
            "type": "object",
            "properties": {
                "token": {"type": "string"},
                "user": {"type": "object"}
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
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Stitchmart API",
	Description:      "Embroidery design storefront: catalog, checkout and back office.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
