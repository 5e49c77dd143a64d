package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/examhub/submission-service/internal/services"
	"github.com/examhub/submission-service/internal/utils"
)

type HandlerManager struct {
	submissionHandler *SubmissionHandler
	security          services.SecurityService
	logger            utils.Logger
}

func NewHandlerManager(
	submissions services.SubmissionService,
	officializer services.OfficializerService,
	exporter services.ExportService,
	security services.SecurityService,
	validator *utils.Validator,
	logger utils.Logger,
) *HandlerManager {
	return &HandlerManager{
		submissionHandler: NewSubmissionHandler(submissions, officializer, exporter, validator, logger),
		security:          security,
		logger:            logger,
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	router.GET("/health", HealthCheck)

	v1 := router.Group("/api/v1")
	v1.Use(AuthMiddleware(hm.security, hm.logger))
	{
		assessments := v1.Group("/assessments")
		{
			assessments.POST("/:id/submissions", hm.submissionHandler.Begin)
			assessments.GET("/:id/submissions/official", hm.submissionHandler.OfficialByAssessment)
			assessments.GET("/:id/submissions/official/me", hm.submissionHandler.MyOfficial)
			assessments.POST("/:id/release", hm.submissionHandler.ReleaseGrades)
			assessments.GET("/:id/export", hm.submissionHandler.ExportResults)
		}

		submissions := v1.Group("/submissions")
		{
			submissions.GET("/:id", hm.submissionHandler.Get)
			submissions.GET("/:id/layout", hm.submissionHandler.Layout)
			submissions.GET("/:id/countdown", hm.submissionHandler.Countdown)
			submissions.PUT("/:id/answers", hm.submissionHandler.EnterAnswers)
			submissions.POST("/:id/complete", hm.submissionHandler.Complete)
			submissions.POST("/:id/evaluate", hm.submissionHandler.Evaluate)
		}

		contexts := v1.Group("/contexts")
		{
			contexts.GET("/:context/users/:user_id/submissions/official", hm.submissionHandler.OfficialByUser)
		}
	}
}
