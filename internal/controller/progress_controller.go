package controller

import (
	"edu_assessment_backend/internal/service"
	"edu_assessment_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type ProgressController struct {
	Service *service.ProgressService
}

func NewProgressController(svc *service.ProgressService) *ProgressController {
	return &ProgressController{Service: svc}
}

// @Summary 上报模块学习进度
// @Description event=section 需带 sectionIndex（从0开始）；event=video 仅模块1
// @Tags 学习进度
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "选课ID"
// @Param body body service.ProgressEvent true "进度事件"
// @Success 200 {object} util.Response{data=service.ProgressResult}
// @Router /enrollments/{id}/progress [post]
func (c *ProgressController) RecordProgress(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}

	var req service.ProgressEvent
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	result, err := c.Service.Record(ctx.Request.Context(), actor, ctx.Param("id"), req)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// @Summary 查看课程进度
// @Tags 学习进度
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "选课ID"
// @Success 200 {object} util.Response{data=model.Enrollment}
// @Router /enrollments/{id}/progress [get]
func (c *ProgressController) GetProgress(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}

	enrollment, err := c.Service.GetProgress(ctx.Request.Context(), actor, ctx.Param("id"))
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, enrollment)
}
