package controller

import (
	"strconv"

	"ielts_backend/internal/service"
	"ielts_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type TestController struct {
	ContentService *service.ContentService
}

func NewTestController(contentService *service.ContentService) *TestController {
	return &TestController{ContentService: contentService}
}

// ListTests godoc
// @Summary 获取测试列表
// @Description 分页获取已发布的测试，可按模块过滤
// @Tags 测试内容
// @Produce  json
// @Security ApiKeyAuth
// @Param   module query string false "模块(listening/reading/writing/speaking)"
// @Param   page query int false "页码"
// @Param   limit query int false "每页数量"
// @Success 200 {object} util.Response{data=util.PageResponse}
// @Router /api/tests [get]
func (c *TestController) ListTests(ctx *gin.Context) {
	module := ctx.Query("module")
	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "20"))

	tests, total, err := c.ContentService.ListTests(module, page, limit)
	if err != nil {
		util.ErrorFromServiceError(ctx, err)
		return
	}

	util.Success(ctx, util.PageResponse{
		List:  tests,
		Total: total,
		Page:  page,
		Limit: limit,
	})
}

// GetTest godoc
// @Summary 获取测试详情
// @Description 获取测试的完整结构（分节与题目），不包含答案
// @Tags 测试内容
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "测试ID"
// @Success 200 {object} util.Response{data=model.Test}
// @Failure 404 {object} util.Response "测试不存在"
// @Router /api/tests/{id} [get]
func (c *TestController) GetTest(ctx *gin.Context) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil {
		util.BadRequest(ctx, "invalid test id")
		return
	}

	test, err := c.ContentService.GetTestWithQuestions(uint(id))
	if err != nil {
		util.ErrorFromServiceError(ctx, err)
		return
	}

	util.Success(ctx, test)
}
