package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterSwagger registers minimal Swagger/OpenAPI endpoints for the server.
// - GET /swagger/index.html  -> a small HTML page that loads the OpenAPI JSON
// - GET /swagger/doc.json    -> machine-readable OpenAPI JSON
func RegisterSwagger(rg gin.IRouter) {
	rg.GET("/swagger/index.html", func(c *gin.Context) {
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.String(http.StatusOK, swaggerHTML)
	})

	rg.GET("/swagger/doc.json", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(swaggerJSON))
	})
}

const swaggerHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>zelosify - Swagger</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@4/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@4/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({
        url: '/swagger/doc.json',
        dom_id: '#swagger-ui',
      })
    </script>
  </body>
</html>`

// Minimal OpenAPI document for the auth and vendor endpoints.
const swaggerJSON = `{
  "openapi": "3.0.0",
  "info": { "title": "zelosify", "version": "v1.0.0" },
  "paths": {
    "/api/v1/auth/login": {
      "post": {
        "summary": "Password step; sets the temp_token cookie",
        "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"username":{"type":"string"},"password":{"type":"string"}}}}}},
        "responses": { "200": { "description": "TOTP required" }, "400": { "description": "missing input" }, "401": { "description": "invalid credentials" }, "403": { "description": "TOTP not enrolled" } }
      }
    },
    "/api/v1/auth/verify-totp": {
      "post": {
        "summary": "TOTP step; sets access_token and refresh_token cookies",
        "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"totp":{"type":"string"}}}}}},
        "responses": { "200": { "description": "logged in" }, "400": { "description": "missing input" }, "401": { "description": "invalid temp token or code" } }
      }
    },
    "/api/v1/auth/logout": {
      "post": { "summary": "End the provider session and clear cookies", "responses": { "200": { "description": "logged out" }, "400": { "description": "already logged out" }, "500": { "description": "provider logout failed" } } }
    },
    "/api/v1/auth/me": {
      "get": { "summary": "Current principal", "responses": { "200": { "description": "principal" }, "401": { "description": "unauthenticated" } } }
    },
    "/api/v1/vendor/openings": {
      "get": { "summary": "Openings of the caller's tenant (IT_VENDOR)", "responses": { "200": { "description": "openings" }, "403": { "description": "role required" } } }
    },
    "/api/v1/vendor/openings/{id}": {
      "get": { "summary": "Opening detail with submitted profiles", "responses": { "200": { "description": "opening" }, "404": { "description": "not found" } } }
    },
    "/api/v1/vendor/openings/{id}/profiles/presign": {
      "post": { "summary": "Presigned upload URL for one profile", "responses": { "200": { "description": "upload slot" } } }
    },
    "/api/v1/vendor/openings/{id}/profiles/upload": {
      "post": { "summary": "Submit uploaded profiles", "responses": { "200": { "description": "submitted" } } }
    },
    "/api/v1/vendor/openings/{id}/profiles/uploadasdraft": {
      "post": { "summary": "Save uploaded profiles as drafts", "responses": { "200": { "description": "saved" }, "400": { "description": "duplicate profile" } } }
    },
    "/api/v1/vendor/openings/{id}/profiles/view": {
      "post": { "summary": "Presigned view URLs", "responses": { "200": { "description": "view urls" } } }
    },
    "/api/v1/vendor/openings/{id}/profiles/delete/{profileId}": {
      "post": { "summary": "Soft-delete a profile", "responses": { "200": { "description": "deleted" }, "403": { "description": "cross-tenant" } } }
    },
    "/health": { "get": { "summary": "Liveness check", "responses": { "200": { "description": "healthy" } } } },
    "/ready": { "get": { "summary": "Readiness check", "responses": { "200": { "description": "ready" }, "503": { "description": "not ready" } } } },
    "/metrics": { "get": { "summary": "Prometheus metrics", "responses": { "200": { "description": "metrics" } } } }
  }
}`
