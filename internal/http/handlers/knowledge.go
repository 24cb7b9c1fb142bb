package handlers

import (
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"relaydesk/internal/auth"
	"relaydesk/internal/knowledge"
	"relaydesk/internal/repo"
	"relaydesk/internal/services"
	"relaydesk/pkg/models"
)

const maxUploadBytes = 20 << 20 // Telegram bot download limit

// KnowledgeHandler manages knowledge base documents from the console.
type KnowledgeHandler struct {
	files   *repo.KnowledgeFileRepository
	index   *knowledge.Index
	storage *services.StorageService
}

// NewKnowledgeHandler creates a new knowledge handler. index and storage
// may be nil when the deployment has no knowledge base configured.
func NewKnowledgeHandler(files *repo.KnowledgeFileRepository, index *knowledge.Index, storage *services.StorageService) *KnowledgeHandler {
	return &KnowledgeHandler{files: files, index: index, storage: storage}
}

// List returns knowledge base documents.
func (h *KnowledgeHandler) List(c echo.Context) error {
	limit, offset := pagination(c)

	files, err := h.files.List(limit, offset)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to list documents"})
	}
	total, err := h.files.Count()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to count documents"})
	}

	return c.JSON(http.StatusOK, models.PaginationResult[models.KnowledgeFile]{
		Data:       files,
		Total:      total,
		Page:       offset/limit + 1,
		PerPage:    limit,
		TotalPages: int((total + int64(limit) - 1) / int64(limit)),
	})
}

// Upload ingests a multipart document into the knowledge base.
func (h *KnowledgeHandler) Upload(c echo.Context) error {
	if h.index == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "Knowledge base not configured"})
	}
	claims := c.Get("claims").(*auth.TokenClaims)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Missing file"})
	}
	if fileHeader.Size > maxUploadBytes {
		return c.JSON(http.StatusRequestEntityTooLarge, map[string]string{"error": "File too large"})
	}

	src, err := fileHeader.Open()
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Failed to read file"})
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Failed to read file"})
	}

	record := &models.KnowledgeFile{
		Filename:   fileHeader.Filename,
		MimeType:   fileHeader.Header.Get("Content-Type"),
		FileSize:   int64(len(data)),
		UploadedBy: claims.TelegramID,
	}
	record.ID = uuid.New()

	if h.storage != nil {
		key := "knowledge/" + record.ID.String() + "/" + fileHeader.Filename
		storageKey, err := h.storage.Archive(key, data, record.MimeType)
		if err != nil {
			log.Warn().Err(err).Str("filename", record.Filename).Msg("failed to archive document")
		} else {
			record.StorageKey = storageKey
		}
	}

	chunks, err := h.index.Upload(c.Request().Context(), record.ID.String(), record.Filename, data)
	if err != nil {
		return c.JSON(http.StatusUnprocessableEntity, map[string]string{"error": "Failed to index document: " + err.Error()})
	}
	record.ChunkCount = chunks

	if err := h.files.Create(record); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to save document record"})
	}
	return c.JSON(http.StatusCreated, record)
}

// Delete removes a document from the index, the archive and the record
// table.
func (h *KnowledgeHandler) Delete(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid document id"})
	}

	record, err := h.files.GetByID(id)
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Document not found"})
	}

	if h.index != nil {
		if err := h.index.Delete(c.Request().Context(), record.ID.String()); err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to remove document from index"})
		}
	}
	if h.storage != nil && record.StorageKey != "" {
		if err := h.storage.Delete(record.StorageKey); err != nil {
			// Orphaned archive objects are harmless; the record is gone.
			log.Warn().Err(err).Str("key", record.StorageKey).Msg("failed to delete archived document")
		}
	}

	if err := h.files.Delete(id); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to delete document record"})
	}
	return c.NoContent(http.StatusNoContent)
}

// Download streams the archived original document.
func (h *KnowledgeHandler) Download(c echo.Context) error {
	if h.storage == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "Document archive not configured"})
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid document id"})
	}
	record, err := h.files.GetByID(id)
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Document not found"})
	}
	if record.StorageKey == "" {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Document has no archived copy"})
	}

	data, err := h.storage.Fetch(record.StorageKey)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to fetch document"})
	}

	c.Response().Header().Set("Content-Disposition", "attachment; filename=\""+record.Filename+"\"")
	return c.Blob(http.StatusOK, record.MimeType, data)
}
