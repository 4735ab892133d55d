package controller

import (
	"edu_assessment_backend/internal/service"
	"edu_assessment_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// AdminController covers the records other systems normally own: subjects
// come from content authoring and enrollments from payment or unlock codes.
type AdminController struct {
	Progress *service.ProgressService
}

func NewAdminController(progress *service.ProgressService) *AdminController {
	return &AdminController{Progress: progress}
}

type createSubjectRequest struct {
	TeacherID uint   `json:"teacherId" binding:"required"`
	Title     string `json:"title" binding:"required"`
}

// @Summary 创建科目
// @Tags 管理员
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param body body createSubjectRequest true "科目"
// @Success 201 {object} util.Response{data=model.Subject}
// @Router /admin/subjects [post]
func (c *AdminController) CreateSubject(ctx *gin.Context) {
	var req createSubjectRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	subject, err := c.Progress.CreateSubject(ctx.Request.Context(), req.TeacherID, req.Title)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Created(ctx, subject)
}

type createEnrollmentRequest struct {
	StudentID uint   `json:"studentId" binding:"required"`
	SubjectID string `json:"subjectId" binding:"required"`
}

// @Summary 为学生选课
// @Tags 管理员
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param body body createEnrollmentRequest true "选课"
// @Success 201 {object} util.Response{data=model.Enrollment}
// @Failure 409 {object} util.Response "已选课"
// @Router /admin/enrollments [post]
func (c *AdminController) CreateEnrollment(ctx *gin.Context) {
	var req createEnrollmentRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	enrollment, err := c.Progress.Enroll(ctx.Request.Context(), req.StudentID, req.SubjectID)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Created(ctx, enrollment)
}
