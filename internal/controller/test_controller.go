package controller

import (
	"edu_assessment_backend/internal/model"
	"edu_assessment_backend/internal/service"
	"edu_assessment_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type TestController struct {
	Service *service.TestService
}

func NewTestController(svc *service.TestService) *TestController {
	return &TestController{Service: svc}
}

// @Summary 创建测试（草稿）
// @Tags 测试管理
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param body body service.CreateTestReq true "测试定义"
// @Success 201 {object} util.Response{data=model.Test}
// @Failure 400 {object} util.Response
// @Failure 403 {object} util.Response
// @Router /tests [post]
func (c *TestController) CreateTest(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}

	var req service.CreateTestReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	test, err := c.Service.CreateTest(ctx.Request.Context(), actor, req)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Created(ctx, test)
}

// @Summary 我创建的测试列表
// @Tags 测试管理
// @Produce json
// @Security ApiKeyAuth
// @Param status query string false "draft|active|archived"
// @Param page query int false "页码" default(1)
// @Param limit query int false "每页数量" default(20)
// @Success 200 {object} util.Response{data=util.PageResponse}
// @Router /tests [get]
func (c *TestController) ListTests(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	page, limit := pagination(ctx)

	tests, total, err := c.Service.ListTests(ctx.Request.Context(), actor, ctx.Query("status"), page, limit)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, util.PageResponse{List: tests, Total: total, Page: page, Limit: limit})
}

// @Summary 测试详情（含答案）
// @Tags 测试管理
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "测试ID"
// @Success 200 {object} util.Response{data=model.Test}
// @Failure 404 {object} util.Response
// @Router /tests/{id} [get]
func (c *TestController) GetTest(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}

	test, err := c.Service.GetTest(ctx.Request.Context(), actor, ctx.Param("id"))
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, test)
}

// @Summary 更新测试
// @Description 有作答记录后，questions/duration/totalMarks 不可再修改
// @Tags 测试管理
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "测试ID"
// @Param body body service.UpdateTestReq true "修改内容"
// @Success 200 {object} util.Response{data=model.Test}
// @Failure 409 {object} util.Response
// @Router /tests/{id} [patch]
func (c *TestController) UpdateTest(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}

	var req service.UpdateTestReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	test, err := c.Service.UpdateTest(ctx.Request.Context(), actor, ctx.Param("id"), req)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, test)
}

// @Summary 发布测试
// @Tags 测试管理
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "测试ID"
// @Success 200 {object} util.Response{data=model.Test}
// @Failure 409 {object} util.Response
// @Router /tests/{id}/publish [post]
func (c *TestController) PublishTest(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}

	test, err := c.Service.PublishTest(ctx.Request.Context(), actor, ctx.Param("id"))
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, test)
}

// @Summary 归档测试
// @Tags 测试管理
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "测试ID"
// @Success 200 {object} util.Response{data=model.Test}
// @Router /tests/{id}/archive [post]
func (c *TestController) ArchiveTest(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}

	test, err := c.Service.ArchiveTest(ctx.Request.Context(), actor, ctx.Param("id"))
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, test)
}

// @Summary 测试统计
// @Description 平均分与通过率只统计已评分的作答
// @Tags 测试管理
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "测试ID"
// @Success 200 {object} util.Response{data=model.TestStats}
// @Router /tests/{id}/stats [get]
func (c *TestController) GetStats(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}

	stats, err := c.Service.Stats(ctx.Request.Context(), actor, ctx.Param("id"))
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, stats)
}

// @Summary 测试的作答列表
// @Description status=submitted 即待评分队列
// @Tags 评分
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "测试ID"
// @Param status query string false "in-progress|submitted|evaluated"
// @Param page query int false "页码" default(1)
// @Param limit query int false "每页数量" default(20)
// @Success 200 {object} util.Response{data=util.PageResponse}
// @Router /tests/{id}/attempts [get]
func (c *TestController) ListAttempts(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	page, limit := pagination(ctx)
	status := model.AttemptStatus(ctx.Query("status"))

	attempts, total, err := c.Service.ListAttempts(ctx.Request.Context(), actor, ctx.Param("id"), status, page, limit)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, util.PageResponse{List: attempts, Total: total, Page: page, Limit: limit})
}
