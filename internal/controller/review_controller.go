package controller

import (
	"strconv"

	"ielts_backend/internal/service"
	"ielts_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type ReviewController struct {
	ReviewService *service.ReviewService
}

func NewReviewController(reviewService *service.ReviewService) *ReviewController {
	return &ReviewController{ReviewService: reviewService}
}

// PendingReviews godoc
// @Summary 获取待评阅队列
// @Description 按提交时间先后返回等待人工评分的写作/口语成绩
// @Tags 评阅
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=[]model.Result}
// @Router /api/reviews/pending [get]
func (c *ReviewController) PendingReviews(ctx *gin.Context) {
	results, err := c.ReviewService.PendingReviews(ctx.Request.Context())
	if err != nil {
		util.ErrorFromServiceError(ctx, err)
		return
	}

	util.Success(ctx, results)
}

// SubmitGrade godoc
// @Summary 提交人工评分
// @Description 按四项评分标准或直接给出总分评定写作/口语成绩；重复评分需显式确认覆盖
// @Tags 评阅
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "成绩ID"
// @Param   body body service.GradeRequest true "评分内容"
// @Success 200 {object} util.Response{data=model.Result}
// @Failure 400 {object} util.Response "评分不合法或未确认覆盖"
// @Failure 409 {object} util.Response "该成绩不支持人工评分"
// @Router /api/reviews/{id}/grade [post]
func (c *ReviewController) SubmitGrade(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	resultID, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil {
		util.BadRequest(ctx, "invalid result id")
		return
	}

	var req service.GradeRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	result, err := c.ReviewService.SubmitGrade(ctx.Request.Context(), claims.UserID, uint(resultID), req)
	if err != nil {
		util.ErrorFromServiceError(ctx, err)
		return
	}

	util.Success(ctx, result)
}
