package controller

import (
	"edu_assessment_backend/internal/model"
	"edu_assessment_backend/internal/service"
	"edu_assessment_backend/internal/util"
	"net/http"

	"github.com/gin-gonic/gin"
)

type AttemptController struct {
	Service *service.AttemptService
	Storage *service.StorageService
}

func NewAttemptController(svc *service.AttemptService, storage *service.StorageService) *AttemptController {
	return &AttemptController{Service: svc, Storage: storage}
}

// @Summary 开始作答
// @Description 已有进行中的作答时直接返回该作答（resumed=true）
// @Tags 作答
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "测试ID"
// @Success 200 {object} util.Response{data=service.AttemptView} "继续已有作答"
// @Success 201 {object} util.Response{data=service.AttemptView} "新作答"
// @Failure 409 {object} util.Response
// @Router /tests/{id}/attempts [post]
func (c *AttemptController) StartAttempt(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}

	attempt, resumed, err := c.Service.Start(ctx.Request.Context(), actor.ID, ctx.Param("id"))
	if err != nil {
		util.RespondError(ctx, err)
		return
	}

	view, err := c.Service.View(ctx.Request.Context(), actor, attempt.ID)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	view.Resumed = resumed

	if resumed {
		util.Success(ctx, view)
		return
	}
	util.Created(ctx, view)
}

// @Summary 我的作答记录
// @Tags 作答
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "测试ID"
// @Success 200 {object} util.Response{data=[]model.Attempt}
// @Router /tests/{id}/my-attempts [get]
func (c *AttemptController) ListMyAttempts(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}

	attempts, err := c.Service.History(ctx.Request.Context(), actor, ctx.Param("id"))
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, attempts)
}

// @Summary 作答详情
// @Description 题目顺序固定；remainingSeconds 由服务端计算
// @Tags 作答
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "作答ID"
// @Success 200 {object} util.Response{data=service.AttemptView}
// @Router /attempts/{id} [get]
func (c *AttemptController) GetAttempt(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}

	view, err := c.Service.View(ctx.Request.Context(), actor, ctx.Param("id"))
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, view)
}

type draftRequest struct {
	Answers []model.Answer `json:"answers"`
}

// @Summary 暂存答案
// @Description 答案暂存于缓存，超时自动交卷时使用
// @Tags 作答
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "作答ID"
// @Param body body draftRequest true "答案"
// @Success 200 {object} util.Response
// @Router /attempts/{id}/draft [put]
func (c *AttemptController) SaveDraft(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}

	var req draftRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	if err := c.Service.SaveDraft(ctx.Request.Context(), actor, ctx.Param("id"), req.Answers); err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"saved": len(req.Answers)})
}

// @Summary 交卷
// @Tags 作答
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "作答ID"
// @Param body body service.SubmitInput true "答案与客户端计时"
// @Success 200 {object} util.Response{data=model.Attempt}
// @Failure 409 {object} util.Response "已交卷"
// @Router /attempts/{id}/submit [post]
func (c *AttemptController) SubmitAttempt(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}

	var req service.SubmitInput
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	attempt, err := c.Service.Submit(ctx.Request.Context(), actor, ctx.Param("id"), req)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, attempt)
}

// @Summary 作答结果
// @Tags 作答
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "作答ID"
// @Success 200 {object} util.Response{data=service.AttemptResult}
// @Failure 409 {object} util.Response "结果尚未公布"
// @Router /attempts/{id}/result [get]
func (c *AttemptController) GetResult(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}

	result, err := c.Service.Result(ctx.Request.Context(), actor, ctx.Param("id"))
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// @Summary 上传答题文件（PDF/图片）
// @Description 返回的 url 作为答案的 fileUrl 提交
// @Tags 作答
// @Accept multipart/form-data
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "作答ID"
// @Param file formData file true "答题文件"
// @Success 201 {object} util.Response
// @Router /attempts/{id}/uploads [post]
func (c *AttemptController) UploadAnswerFile(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}

	ctx.Request.Body = http.MaxBytesReader(ctx.Writer, ctx.Request.Body, util.MaxUploadSize+1<<20)
	file, header, err := ctx.Request.FormFile("file")
	if err != nil {
		util.BadRequest(ctx, "file is required")
		return
	}
	defer file.Close()

	view, err := c.Service.View(ctx.Request.Context(), actor, ctx.Param("id"))
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	if view.Attempt.Status != model.AttemptInProgress {
		util.RespondError(ctx, util.ErrAlreadySubmitted)
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = util.MimeOctetStream
	}
	url, err := c.Storage.UploadAnswerFile(ctx.Request.Context(), view.Attempt.ID, header.Filename, file, header.Size, contentType)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Created(ctx, gin.H{"url": url})
}
