package handler

import (
	"github.com/gofiber/fiber/v2"

	"docstore/internal/service"
)

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
// Handlers stay thin; validation and failure policy live in the service.
func RegisterRoutes(app *fiber.App, registry Pinger, docSvc service.DocumentService) {
	app.Get("/health", HealthCheck(registry))
	app.Get("/healthz", LivenessProbe())

	app.Get("/documents", ListDocuments(docSvc))
	app.Post("/documents", UploadDocument(docSvc))
	app.Get("/documents/:originalName", GetDocument(docSvc))
	app.Delete("/documents/:originalName", DeleteDocument(docSvc))
}
