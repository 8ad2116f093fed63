package handler

import (
	"errors"
	"net/url"

	"github.com/gofiber/fiber/v2"

	"docstore/internal/model"
	"docstore/internal/service"
	"docstore/internal/stream"
)

// documentList is the body of GET /documents.
type documentList struct {
	Items []model.Document `json:"data"`
	Total int              `json:"total"`
}

// deleteResponse is the body of DELETE /documents/{originalName}.
type deleteResponse struct {
	Message         string `json:"message"`
	FileName        string `json:"fileName"`
	PhysicalDeleted bool   `json:"physicalDeleted"`
}

func ownerFilter(c *fiber.Ctx) *string {
	if v := c.Query("ownerId"); v != "" {
		return &v
	}
	return nil
}

func originalNameParam(c *fiber.Ctx) (string, bool) {
	name, err := url.PathUnescape(c.Params("originalName"))
	if err != nil || name == "" {
		return "", false
	}
	return name, true
}

// ListDocuments returns every document, or only those of ownerId.
//
// @Summary  List documents
// @Tags     documents
// @Produce  json
// @Param    ownerId  query     string  false  "Owner filter (case-insensitive)"
// @Success  200      {object}  documentList
// @Failure  500      {object}  errorPayload
// @Router   /documents [get]
func ListDocuments(docSvc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		items, err := docSvc.List(c.UserContext(), ownerFilter(c))
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(documentList{Items: items, Total: len(items)})
	}
}

// UploadDocument stores a multipart file for an owner.
//
// @Summary  Upload a document
// @Tags     documents
// @Accept   multipart/form-data
// @Produce  json
// @Param    file     formData  file    true  "Document (xls, xlsx, csv, pdf, png, jpg, jpeg; max 20 MiB)"
// @Param    ownerId  formData  string  true  "Owner"
// @Success  201      {object}  model.Document
// @Failure  400      {object}  errorPayload
// @Failure  500      {object}  errorPayload
// @Router   /documents [post]
func UploadDocument(docSvc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		fh, err := c.FormFile("file")
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_REQUIRED", "file is required")
		}

		ownerID := c.FormValue("ownerId")
		if ownerID == "" {
			ownerID = c.Query("ownerId")
		}
		if ownerID == "" {
			return writeError(c, fiber.StatusBadRequest, "OWNER_REQUIRED", "ownerId is required")
		}
		if fh.Size > model.MaxUploadBytes {
			return writeError(c, fiber.StatusBadRequest, "FILE_TOO_LARGE", "file exceeds 20 MiB")
		}

		f, err := fh.Open()
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot open uploaded file")
		}
		defer f.Close()

		doc, err := docSvc.Upload(c.UserContext(), f, ownerID, fh.Filename)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(doc)
	}
}

// GetDocument downloads a document, honouring a single byte range.
//
// @Summary  Download a document
// @Tags     documents
// @Produce  octet-stream
// @Param    originalName  path      string  true   "File name as uploaded"
// @Param    ownerId       query     string  true   "Owner"
// @Param    Range         header    string  false  "Single byte range, e.g. bytes=0-99"
// @Success  200           {file}    file
// @Success  206           {file}    file
// @Failure  400           {object}  errorPayload
// @Failure  404           {object}  errorPayload
// @Failure  416           {object}  errorPayload
// @Router   /documents/{originalName} [get]
func GetDocument(docSvc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		name, ok := originalNameParam(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_NAME", "invalid file name")
		}
		ownerID := c.Query("ownerId")
		if ownerID == "" {
			return writeError(c, fiber.StatusBadRequest, "OWNER_REQUIRED", "ownerId is required")
		}

		resp, doc, err := docSvc.Stream(c.UserContext(), ownerID, name, c.Get(fiber.HeaderRange))
		if err != nil {
			if errors.Is(err, model.ErrInvalidInput) && doc != nil {
				c.Set(fiber.HeaderContentRange, stream.UnsatisfiedRange(doc.SizeBytes))
				return writeError(c, fiber.StatusRequestedRangeNotSatisfiable, "RANGE_NOT_SATISFIABLE", "requested range not satisfiable")
			}
			return writeServiceError(c, err)
		}

		c.Attachment(doc.OriginalName)
		c.Set(fiber.HeaderContentType, doc.ContentType)
		c.Set(fiber.HeaderAcceptRanges, "bytes")
		if resp.Partial {
			c.Status(fiber.StatusPartialContent)
			c.Set(fiber.HeaderContentRange, resp.ContentRange())
		} else {
			c.Status(fiber.StatusOK)
		}
		// fasthttp closes the body, and with it the blob, once it has been written.
		c.Context().SetBodyStream(resp.Body, int(resp.Length))
		return nil
	}
}

// DeleteDocument removes the earliest document with this name for the owner.
//
// @Summary  Delete a document
// @Tags     documents
// @Produce  json
// @Param    originalName  path      string  true  "File name as uploaded"
// @Param    ownerId       query     string  true  "Owner"
// @Success  200           {object}  deleteResponse
// @Failure  400           {object}  errorPayload
// @Failure  404           {object}  errorPayload
// @Router   /documents/{originalName} [delete]
func DeleteDocument(docSvc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		name, ok := originalNameParam(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_NAME", "invalid file name")
		}
		ownerID := c.Query("ownerId")
		if ownerID == "" {
			return writeError(c, fiber.StatusBadRequest, "OWNER_REQUIRED", "ownerId is required")
		}

		res, err := docSvc.Delete(c.UserContext(), ownerID, name)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(deleteResponse{
			Message:         "Document deleted",
			FileName:        res.Document.OriginalName,
			PhysicalDeleted: res.PhysicalDeleted,
		})
	}
}
