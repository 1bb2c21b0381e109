package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"lexcase-backend/models"
	"lexcase-backend/service"
	"lexcase-backend/storage"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// EvidenceHandler handles HTTP requests for evidence file operations
type EvidenceHandler struct {
	caseService *service.CaseService
}

// NewEvidenceHandler creates a new evidence handler
func NewEvidenceHandler(caseService *service.CaseService) *EvidenceHandler {
	return &EvidenceHandler{caseService: caseService}
}

// UploadEvidence handles POST /api/cases/:case_id/evidence
//
// Form data:
//   - file: the evidence file
//   - category: documents, pdf, images, audio, or video (optional,
//     inferred from the filename when omitted)
func (h *EvidenceHandler) UploadEvidence(c *gin.Context) {
	caseID := c.Param("case_id")

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "MISSING_FILE",
				"message": "File is required",
			},
		})
		return
	}
	if fileHeader.Filename == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "MISSING_FILE",
				"message": "No file selected",
			},
		})
		return
	}

	category := models.MediaCategory(c.PostForm("category"))

	src, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "UPLOAD_FAILED",
				"message": err.Error(),
			},
		})
		return
	}
	defer src.Close()

	file, err := h.caseService.UploadEvidence(c.Request.Context(), service.UploadEvidenceRequest{
		CaseID:   caseID,
		Filename: fileHeader.Filename,
		Category: category,
		Data:     src,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrCaseNotFound):
			c.JSON(http.StatusNotFound, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "NOT_FOUND",
					"message": "Case not found",
				},
			})
		case errors.Is(err, service.ErrUnsupportedFile):
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "INVALID_FILE_TYPE",
					"message": err.Error(),
				},
			})
		case errors.Is(err, service.ErrFileTooLarge):
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "FILE_TOO_LARGE",
					"message": "Evidence file exceeds the upload size limit",
				},
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "UPLOAD_FAILED",
					"message": err.Error(),
				},
			})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    file,
	})
}

// DownloadEvidence handles GET /api/cases/:case_id/evidence/:file_id
func (h *EvidenceHandler) DownloadEvidence(c *gin.Context) {
	caseID := c.Param("case_id")
	fileID, err := uuid.Parse(c.Param("file_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_ID",
				"message": "Invalid file ID format",
			},
		})
		return
	}

	file, reader, err := h.caseService.DownloadEvidence(c.Request.Context(), caseID, fileID)
	if err != nil {
		if errors.Is(err, service.ErrCaseNotFound) || errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "NOT_FOUND",
					"message": "Evidence file not found",
				},
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DOWNLOAD_FAILED",
				"message": err.Error(),
			},
		})
		return
	}
	defer reader.Close()

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename=%q`, file.Name))
	c.Header("Content-Type", file.ContentType)
	if _, err := io.Copy(c.Writer, reader); err != nil {
		// Response already started; nothing useful to send
		_ = c.Error(err)
	}
}

// DeleteEvidence handles DELETE /api/cases/:case_id/evidence/:file_id
func (h *EvidenceHandler) DeleteEvidence(c *gin.Context) {
	caseID := c.Param("case_id")
	fileID, err := uuid.Parse(c.Param("file_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_ID",
				"message": "Invalid file ID format",
			},
		})
		return
	}

	if err := h.caseService.DeleteEvidence(c.Request.Context(), caseID, fileID); err != nil {
		if errors.Is(err, service.ErrCaseNotFound) || errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "NOT_FOUND",
					"message": "Evidence file not found",
				},
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DELETE_FAILED",
				"message": err.Error(),
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"file_id": fileID,
			"deleted": true,
		},
	})
}
