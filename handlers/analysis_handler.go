package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"lexcase-backend/llm"
	"lexcase-backend/service"

	"github.com/gin-gonic/gin"
)

// AnalysisHandler handles HTTP requests for the AI analysis pipeline
type AnalysisHandler struct {
	analysisService *service.AnalysisService
	completer       llm.Completer
}

// NewAnalysisHandler creates a new analysis handler
func NewAnalysisHandler(analysisService *service.AnalysisService, completer llm.Completer) *AnalysisHandler {
	return &AnalysisHandler{
		analysisService: analysisService,
		completer:       completer,
	}
}

// AnalyzeRequest represents the request body for running the pipeline
type AnalyzeRequest struct {
	ForceReanalysis bool `json:"force_reanalysis"`
}

// Analyze handles POST /api/ai/analyze/:case_id
//
// Completed cases return their stored results unless force_reanalysis is
// set. A case already being analyzed returns 409.
func (h *AnalysisHandler) Analyze(c *gin.Context) {
	caseID := c.Param("case_id")

	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		// Body is optional
		req = AnalyzeRequest{}
	}

	result, err := h.analysisService.Analyze(c.Request.Context(), service.AnalyzeRequest{
		CaseID:         caseID,
		ForceReanalyze: req.ForceReanalysis,
	})
	if err != nil {
		h.respondAnalysisError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    result,
	})
}

// Reanalyze handles POST /api/ai/reanalyze/:case_id. It is the forced
// variant of Analyze.
func (h *AnalysisHandler) Reanalyze(c *gin.Context) {
	caseID := c.Param("case_id")

	result, err := h.analysisService.Analyze(c.Request.Context(), service.AnalyzeRequest{
		CaseID:         caseID,
		ForceReanalyze: true,
	})
	if err != nil {
		h.respondAnalysisError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    result,
	})
}

// Status handles GET /api/ai/status/:case_id
func (h *AnalysisHandler) Status(c *gin.Context) {
	caseID := c.Param("case_id")

	status, err := h.analysisService.GetStatus(c.Request.Context(), caseID)
	if err != nil {
		h.respondAnalysisError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    status,
	})
}

// Results handles GET /api/ai/results/:case_id
func (h *AnalysisHandler) Results(c *gin.Context) {
	caseID := c.Param("case_id")

	result, err := h.analysisService.GetResults(c.Request.Context(), caseID)
	if err != nil {
		h.respondAnalysisError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    result,
	})
}

// Evidence handles GET /api/ai/evidence/:case_id
func (h *AnalysisHandler) Evidence(c *gin.Context) {
	caseID := c.Param("case_id")

	evidence, confidence, err := h.analysisService.GetEvidenceResult(c.Request.Context(), caseID)
	if err != nil {
		h.respondAnalysisError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"case_id":    caseID,
			"evidence":   evidence,
			"confidence": confidence,
		},
	})
}

// Summary handles GET /api/ai/summary/:case_id
func (h *AnalysisHandler) Summary(c *gin.Context) {
	caseID := c.Param("case_id")

	summary, confidence, err := h.analysisService.GetSummaryResult(c.Request.Context(), caseID)
	if err != nil {
		h.respondAnalysisError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"case_id":    caseID,
			"summary":    summary,
			"confidence": confidence,
		},
	})
}

// Suggestions handles GET /api/ai/suggestions/:case_id
func (h *AnalysisHandler) Suggestions(c *gin.Context) {
	caseID := c.Param("case_id")

	suggestions, confidence, err := h.analysisService.GetLegalSuggestions(c.Request.Context(), caseID)
	if err != nil {
		h.respondAnalysisError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"case_id":           caseID,
			"legal_suggestions": suggestions,
			"confidence":        confidence,
		},
	})
}

// Runs handles GET /api/ai/runs/:case_id
func (h *AnalysisHandler) Runs(c *gin.Context) {
	caseID := c.Param("case_id")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	runs, err := h.analysisService.ListRuns(c.Request.Context(), caseID, limit)
	if err != nil {
		h.respondAnalysisError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    runs,
	})
}

// Health handles GET /api/ai/health. It reports whether the AI backend
// is configured without calling it.
func (h *AnalysisHandler) Health(c *gin.Context) {
	configured := h.completer != nil && h.completer.Configured()

	mode := "full"
	if !configured {
		mode = "degraded"
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"ai_configured": configured,
			"mode":          mode,
		},
	})
}

func (h *AnalysisHandler) respondAnalysisError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrCaseNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "NOT_FOUND",
				"message": "Case not found",
			},
		})
	case errors.Is(err, service.ErrAnalysisInProgress):
		c.JSON(http.StatusConflict, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "ANALYSIS_IN_PROGRESS",
				"message": "Analysis is already running for this case",
			},
		})
	case errors.Is(err, service.ErrNoAnalysis):
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "NO_ANALYSIS",
				"message": "No analysis results available for this case",
			},
		})
	case errors.Is(err, llm.ErrUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "AI_UNAVAILABLE",
				"message": err.Error(),
			},
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "ANALYSIS_FAILED",
				"message": err.Error(),
			},
		})
	}
}
