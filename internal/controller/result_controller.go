package controller

import (
	"strconv"

	"ielts_backend/internal/model"
	"ielts_backend/internal/repository"
	"ielts_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type ResultController struct {
	ResultRepo *repository.ResultRepository
}

func NewResultController(resultRepo *repository.ResultRepository) *ResultController {
	return &ResultController{ResultRepo: resultRepo}
}

// GetResult godoc
// @Summary 获取成绩详情
// @Description 获取一次提交的完整成绩；考生只能查看自己的成绩
// @Tags 成绩
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "成绩ID"
// @Success 200 {object} util.Response{data=model.Result}
// @Failure 404 {object} util.Response "成绩不存在"
// @Router /api/results/{id} [get]
func (c *ResultController) GetResult(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	id, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil {
		util.BadRequest(ctx, "invalid result id")
		return
	}

	result, err := c.ResultRepo.FindByID(uint(id))
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	if result == nil {
		util.NotFound(ctx)
		return
	}

	// 考生只能看自己的；教师和管理员可以看全部
	if claims.Role == model.Student && result.UserID != claims.UserID {
		util.NotFound(ctx)
		return
	}

	util.Success(ctx, result)
}

// ListMyResults godoc
// @Summary 获取我的成绩列表
// @Description 分页获取当前用户的历史成绩，按时间倒序
// @Tags 成绩
// @Produce  json
// @Security ApiKeyAuth
// @Param   page query int false "页码"
// @Param   limit query int false "每页数量"
// @Success 200 {object} util.Response{data=util.PageResponse}
// @Router /api/results [get]
func (c *ResultController) ListMyResults(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "20"))

	results, total, err := c.ResultRepo.ListByUser(claims.UserID, page, limit)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, util.PageResponse{
		List:  results,
		Total: total,
		Page:  page,
		Limit: limit,
	})
}
