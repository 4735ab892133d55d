package controller

import (
	"edu_assessment_backend/internal/service"
	"edu_assessment_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type GradeController struct {
	Service *service.GradingService
}

func NewGradeController(svc *service.GradingService) *GradeController {
	return &GradeController{Service: svc}
}

// @Summary 教师对作答进行人工评分
// @Description 仅测试创建者可评分；已评分的作答可重新评分
// @Tags 评分
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "作答ID"
// @Param body body service.GradeInput true "marks [{questionNumber, marksAwarded}], feedback"
// @Success 200 {object} util.Response{data=model.Attempt}
// @Failure 400 {object} util.Response
// @Failure 409 {object} util.Response
// @Router /attempts/{id}/grade [post]
func (c *GradeController) GradeAttempt(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}

	var req service.GradeInput
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	attempt, err := c.Service.Grade(ctx.Request.Context(), actor, ctx.Param("id"), req)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, attempt)
}
