package controller

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"ielts_backend/internal/model"
	"ielts_backend/internal/service"
	"ielts_backend/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type SessionController struct {
	SessionService *service.SessionService
	StorageService *service.StorageService
}

func NewSessionController(sessionService *service.SessionService, storageService *service.StorageService) *SessionController {
	return &SessionController{
		SessionService: sessionService,
		StorageService: storageService,
	}
}

// swagger:model StartSessionRequest
type StartSessionRequest struct {
	TestID uint `json:"testId" binding:"required"`
}

// StartSession godoc
// @Summary 开始测试会话
// @Description 为当前用户创建新会话；若存在未完成会话则恢复，超时会话先被关闭
// @Tags 会话
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   body body StartSessionRequest true "测试ID"
// @Success 201 {object} util.Response{data=service.StartResult}
// @Failure 400 {object} util.Response "测试未发布"
// @Failure 404 {object} util.Response "测试不存在"
// @Router /api/sessions/start [post]
func (c *SessionController) StartSession(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	var req StartSessionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	started, err := c.SessionService.Start(ctx.Request.Context(), claims.UserID, req.TestID)
	if err != nil {
		util.ErrorFromServiceError(ctx, err)
		return
	}

	if started.Resumed {
		util.Success(ctx, started)
		return
	}
	util.Created(ctx, started)
}

// AnswerPayload carries one answer in an update batch. Text is used for scalar
// question types, Parts for composite ones.
// swagger:model AnswerPayload
type AnswerPayload struct {
	QuestionID       uint              `json:"questionId" binding:"required"`
	Text             string            `json:"text"`
	Parts            map[string]string `json:"parts"`
	TimeSpentSeconds int               `json:"timeSpentSeconds"`
}

// swagger:model RecordAnswersRequest
type RecordAnswersRequest struct {
	Answers []AnswerPayload `json:"answers" binding:"required,min=1"`
}

// RecordAnswers godoc
// @Summary 记录答案
// @Description 批量写入答案（内存中，自动保存周期落库），同题重复提交覆盖旧值
// @Tags 会话
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "会话ID"
// @Param   body body RecordAnswersRequest true "答案列表"
// @Success 200 {object} util.Response
// @Failure 409 {object} util.Response "会话已结束"
// @Router /api/sessions/{id}/answers [put]
func (c *SessionController) RecordAnswers(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	sessionID, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil {
		util.BadRequest(ctx, "invalid session id")
		return
	}

	var req RecordAnswersRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	for _, a := range req.Answers {
		var value model.AnswerValue
		if a.Parts != nil {
			value = model.CompositeAnswer(a.Parts)
		} else {
			value = model.ScalarAnswer(a.Text)
		}
		if err := c.SessionService.RecordAnswer(claims.UserID, uint(sessionID), a.QuestionID, value, a.TimeSpentSeconds); err != nil {
			util.ErrorFromServiceError(ctx, err)
			return
		}
	}

	util.Success(ctx, gin.H{"recorded": len(req.Answers)})
}

// SaveSession godoc
// @Summary 立即保存会话答案
// @Description 将内存中的答案立即落库，不等待自动保存周期
// @Tags 会话
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "会话ID"
// @Success 200 {object} util.Response
// @Failure 503 {object} util.Response "存储暂不可用"
// @Router /api/sessions/{id}/save [post]
func (c *SessionController) SaveSession(ctx *gin.Context) {
	sessionID, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil {
		util.BadRequest(ctx, "invalid session id")
		return
	}

	if err := c.SessionService.Persist(uint(sessionID)); err != nil {
		util.ErrorFromServiceError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{"saved": true})
}

// SubmitSession godoc
// @Summary 提交会话
// @Description 结束会话并评分；听力/阅读立即出分，写作/口语进入人工评阅队列。重复提交返回已有结果
// @Tags 会话
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "会话ID"
// @Success 200 {object} util.Response{data=model.Result}
// @Failure 404 {object} util.Response "会话不存在"
// @Failure 503 {object} util.Response "存储暂不可用"
// @Router /api/sessions/{id}/submit [post]
func (c *SessionController) SubmitSession(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	sessionID, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil {
		util.BadRequest(ctx, "invalid session id")
		return
	}

	result, err := c.SessionService.Submit(ctx.Request.Context(), claims.UserID, uint(sessionID), service.SubmitManual)
	if err != nil {
		util.ErrorFromServiceError(ctx, err)
		return
	}

	util.Success(ctx, result)
}

// SessionStatus godoc
// @Summary 查询会话状态
// @Description 返回剩余时间、作答进度与当前状态
// @Tags 会话
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "会话ID"
// @Success 200 {object} util.Response{data=service.SessionStatus}
// @Failure 404 {object} util.Response "会话不存在"
// @Router /api/sessions/{id}/status [get]
func (c *SessionController) SessionStatus(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	sessionID, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil {
		util.BadRequest(ctx, "invalid session id")
		return
	}

	status, err := c.SessionService.Status(claims.UserID, uint(sessionID))
	if err != nil {
		util.ErrorFromServiceError(ctx, err)
		return
	}

	util.Success(ctx, status)
}

// UploadSpeakingAudio godoc
// @Summary 上传口语录音
// @Description 上传某题的口语录音，校验音频可读后作为该题答案记录
// @Tags 会话
// @Accept  multipart/form-data
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "会话ID"
// @Param   questionId formData int true "题目ID"
// @Param   file formData file true "录音文件"
// @Success 200 {object} util.Response{data=object}
// @Failure 400 {object} util.Response "录音不可读"
// @Router /api/sessions/{id}/audio [post]
func (c *SessionController) UploadSpeakingAudio(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	sessionID, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil {
		util.BadRequest(ctx, "invalid session id")
		return
	}
	questionID, err := strconv.ParseUint(ctx.PostForm("questionId"), 10, 64)
	if err != nil {
		util.BadRequest(ctx, "invalid question id")
		return
	}

	file, err := ctx.FormFile("file")
	if err != nil {
		util.BadRequest(ctx, "missing audio file")
		return
	}

	// 先落到临时文件探测，避免把坏录音计入答案
	tmpPath := filepath.Join(os.TempDir(), uuid.New().String()+filepath.Ext(file.Filename))
	if err := ctx.SaveUploadedFile(file, tmpPath); err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	defer os.Remove(tmpPath)

	info, err := util.GetAudioInfo(tmpPath)
	if err != nil || info.Duration <= 0 {
		util.BadRequest(ctx, "audio file is empty or unreadable")
		return
	}

	filename := fmt.Sprintf("recordings/%d/%d_%d%s",
		sessionID, questionID, time.Now().Unix(), filepath.Ext(file.Filename))
	url, err := c.StorageService.UploadFile(ctx.Request.Context(), filename, tmpPath, file.Header.Get("Content-Type"))
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	err = c.SessionService.RecordAnswer(claims.UserID, uint(sessionID), uint(questionID),
		model.ScalarAnswer(url), int(info.Duration))
	if err != nil {
		util.ErrorFromServiceError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{
		"url":      url,
		"duration": info.Duration,
		"format":   info.Format,
	})
}
