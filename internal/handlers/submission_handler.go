package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/examhub/submission-service/internal/services"
	"github.com/examhub/submission-service/internal/utils"
)

type SubmissionHandler struct {
	BaseHandler
	submissions  services.SubmissionService
	officializer services.OfficializerService
	exporter     services.ExportService
	validator    *utils.Validator
}

type BeginSubmissionRequest struct {
	TestDrive bool `json:"test_drive"`
}

type EnterAnswersRequest struct {
	Answers []services.AnswerInput `json:"answers" validate:"required,min=1"`
}

func NewSubmissionHandler(
	submissions services.SubmissionService,
	officializer services.OfficializerService,
	exporter services.ExportService,
	validator *utils.Validator,
	logger utils.Logger,
) *SubmissionHandler {
	return &SubmissionHandler{
		BaseHandler:  NewBaseHandler(logger),
		submissions:  submissions,
		officializer: officializer,
		exporter:     exporter,
		validator:    validator,
	}
}

// Begin opens (or resumes) an attempt on an assessment
// @Router /assessments/{id}/submissions [post]
func (h *SubmissionHandler) Begin(c *gin.Context) {
	assessmentID := h.parseIDParam(c, "id")
	if assessmentID == 0 {
		return
	}
	userID := h.currentUserID(c)
	if userID == "" {
		return
	}

	var req BeginSubmissionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Message: "Invalid request payload",
				Details: err.Error(),
			})
			return
		}
	}

	h.LogRequest(c, "Beginning submission", "assessment_id", assessmentID, "test_drive", req.TestDrive)

	submission, err := h.submissions.Begin(c.Request.Context(), assessmentID, userID, req.TestDrive)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, SuccessResponse{
		Message: "Submission started",
		Data:    submission,
	})
}

// Get loads one submission with its answers
// @Router /submissions/{id} [get]
func (h *SubmissionHandler) Get(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	userID := h.currentUserID(c)
	if userID == "" {
		return
	}

	submission, err := h.submissions.Get(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Data: submission})
}

// Layout returns the per-submission delivery order of questions and choices
// @Router /submissions/{id}/layout [get]
func (h *SubmissionHandler) Layout(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	userID := h.currentUserID(c)
	if userID == "" {
		return
	}

	layout, err := h.submissions.Layout(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Data: layout})
}

// EnterAnswers records test-taker input against an in-progress submission
// @Router /submissions/{id}/answers [put]
func (h *SubmissionHandler) EnterAnswers(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	userID := h.currentUserID(c)
	if userID == "" {
		return
	}

	var req EnterAnswersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}
	if err := h.validator.Validate(&req); err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.LogRequest(c, "Entering answers", "submission_id", id, "count", len(req.Answers))

	if err := h.submissions.EnterAnswers(c.Request.Context(), id, userID, req.Answers); err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "Answers recorded"})
}

// Complete finishes an attempt
// @Router /submissions/{id}/complete [post]
func (h *SubmissionHandler) Complete(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	userID := h.currentUserID(c)
	if userID == "" {
		return
	}

	h.LogRequest(c, "Completing submission", "submission_id", id)

	submission, err := h.submissions.Complete(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Submission complete",
		Data:    submission,
	})
}

// Countdown reports the expiration surface of an in-progress attempt
// @Router /submissions/{id}/countdown [get]
func (h *SubmissionHandler) Countdown(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	userID := h.currentUserID(c)
	if userID == "" {
		return
	}

	expiration, err := h.submissions.Countdown(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Data: expiration})
}

// Evaluate records a grader's pass over a completed submission
// @Router /submissions/{id}/evaluate [post]
func (h *SubmissionHandler) Evaluate(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	userID := h.currentUserID(c)
	if userID == "" {
		return
	}

	var req services.EvaluationInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	h.LogRequest(c, "Evaluating submission", "submission_id", id)

	submission, err := h.submissions.Evaluate(c.Request.Context(), id, userID, req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Evaluation recorded",
		Data:    submission,
	})
}

// OfficialByAssessment lists each user's official submission for an assessment
// @Router /assessments/{id}/submissions/official [get]
func (h *SubmissionHandler) OfficialByAssessment(c *gin.Context) {
	assessmentID := h.parseIDParam(c, "id")
	if assessmentID == 0 {
		return
	}
	userID := h.currentUserID(c)
	if userID == "" {
		return
	}

	// exempt_user keeps one user's attempts ungrouped in the listing
	officials, err := h.officializer.ByAssessment(c.Request.Context(), assessmentID, userID, c.Query("exempt_user"))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Data: officials})
}

// MyOfficial returns the caller's own official submission for an assessment,
// a phantom when they have not attempted it yet
// @Router /assessments/{id}/submissions/official/me [get]
func (h *SubmissionHandler) MyOfficial(c *gin.Context) {
	assessmentID := h.parseIDParam(c, "id")
	if assessmentID == 0 {
		return
	}
	userID := h.currentUserID(c)
	if userID == "" {
		return
	}

	official, err := h.officializer.Official(c.Request.Context(), assessmentID, userID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Data: official})
}

// OfficialByUser lists one official submission per assessment in a context
// @Router /contexts/{context}/users/{user_id}/submissions/official [get]
func (h *SubmissionHandler) OfficialByUser(c *gin.Context) {
	contextID := c.Param("context")
	targetID := c.Param("user_id")
	callerID := h.currentUserID(c)
	if callerID == "" {
		return
	}
	if contextID == "" || targetID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "Missing context or user_id"})
		return
	}

	officials, err := h.officializer.ByUser(c.Request.Context(), targetID, contextID, callerID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Data: officials})
}

// ReleaseGrades marks every completed submission to an assessment released
// @Router /assessments/{id}/release [post]
func (h *SubmissionHandler) ReleaseGrades(c *gin.Context) {
	assessmentID := h.parseIDParam(c, "id")
	if assessmentID == 0 {
		return
	}
	userID := h.currentUserID(c)
	if userID == "" {
		return
	}

	h.LogRequest(c, "Releasing grades", "assessment_id", assessmentID)

	released, err := h.submissions.ReleaseGrades(c.Request.Context(), assessmentID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{
		Message: fmt.Sprintf("Released %d submissions", released),
		Data:    gin.H{"released": released},
	})
}

// ExportResults streams the official results grid as a spreadsheet
// @Router /assessments/{id}/export [get]
func (h *SubmissionHandler) ExportResults(c *gin.Context) {
	assessmentID := h.parseIDParam(c, "id")
	if assessmentID == 0 {
		return
	}
	userID := h.currentUserID(c)
	if userID == "" {
		return
	}

	data, err := h.exporter.ExportResults(c.Request.Context(), assessmentID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	filename := fmt.Sprintf("assessment_%d_results.xlsx", assessmentID)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}
