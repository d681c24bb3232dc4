package controller

import (
	"errors"
	"strconv"

	"unilms_backend/internal/model"
	"unilms_backend/internal/service"
	"unilms_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type SessionController struct {
	SessionService *service.SessionService
	Hub            *service.LiveHub
}

func NewSessionController(sessionService *service.SessionService, hub *service.LiveHub) *SessionController {
	return &SessionController{
		SessionService: sessionService,
		Hub:            hub,
	}
}

// Create godoc
// @Summary 开启直播会话
// @Description 为演示文稿开启一场会话并生成学生加入短码，同一文稿同时只能有一场
// @Tags 直播会话
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param body body service.CreateSessionRequest true "会话信息"
// @Success 201 {object} util.Response{data=model.LiveSession} "创建成功"
// @Failure 409 {object} util.Response "已有进行中的会话"
// @Router /api/sessions [post]
func (c *SessionController) Create(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	var req service.CreateSessionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	session, err := c.SessionService.Create(claims.UserID, claims.Role == model.Admin, &req)
	if err != nil {
		c.handleError(ctx, err)
		return
	}
	util.Created(ctx, session)
}

// Join godoc
// @Summary 通过短码加入会话
// @Description 学生输入短码换取会话信息，之后通过websocket进入房间
// @Tags 直播会话
// @Produce  json
// @Security ApiKeyAuth
// @Param code path string true "加入短码"
// @Success 200 {object} util.Response{data=model.LiveSession} "成功"
// @Failure 404 {object} util.Response "会话不存在"
// @Failure 410 {object} util.Response "会话已结束"
// @Router /api/sessions/join/{code} [get]
func (c *SessionController) Join(ctx *gin.Context) {
	session, err := c.SessionService.Join(ctx.Param("code"))
	if err != nil {
		if errors.Is(err, util.ErrSessionEnded) {
			util.Error(ctx, 410, err.Error())
			return
		}
		util.NotFound(ctx)
		return
	}
	util.Success(ctx, session)
}

// Get godoc
// @Summary 获取会话详情
// @Tags 直播会话
// @Produce  json
// @Security ApiKeyAuth
// @Param id path int true "会话ID"
// @Success 200 {object} util.Response{data=model.LiveSession} "成功"
// @Failure 404 {object} util.Response "不存在"
// @Router /api/sessions/{id} [get]
func (c *SessionController) Get(ctx *gin.Context) {
	id := util.MustParseUint(ctx.Param("id"))
	session, err := c.SessionService.Get(id)
	if err != nil {
		c.handleError(ctx, err)
		return
	}
	util.Success(ctx, session)
}

// List godoc
// @Summary 获取我主持过的会话
// @Tags 直播会话
// @Produce  json
// @Security ApiKeyAuth
// @Param page query int false "页码"
// @Param limit query int false "每页数量"
// @Success 200 {object} util.Response{data=util.PageResponse} "成功"
// @Router /api/sessions [get]
func (c *SessionController) List(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	sessions, total, err := c.SessionService.ListByHost(claims.UserID, page, limit)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, util.PageResponse{List: sessions, Total: total, Page: page, Limit: limit})
}

// End godoc
// @Summary 结束会话
// @Description 结束后房间关闭、所有连接断开，操作幂等
// @Tags 直播会话
// @Produce  json
// @Security ApiKeyAuth
// @Param id path int true "会话ID"
// @Success 200 {object} util.Response{data=model.LiveSession} "成功"
// @Failure 403 {object} util.Response "无权限"
// @Router /api/sessions/{id}/end [post]
func (c *SessionController) End(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	id := util.MustParseUint(ctx.Param("id"))

	session, err := c.SessionService.End(id, claims.UserID, claims.Role == model.Admin)
	if err != nil {
		c.handleError(ctx, err)
		return
	}

	c.Hub.EndSession(id)
	util.Success(ctx, session)
}

// SubmitResponse godoc
// @Summary 提交作答（REST）
// @Description 断线时兜底的提交路径，会话进行中即可提交，每人每题一次
// @Tags 直播会话
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param id path int true "会话ID"
// @Param body body service.SubmitResponseRequest true "作答内容"
// @Success 201 {object} util.Response{data=model.CheckpointResponse} "提交成功"
// @Failure 409 {object} util.Response "重复提交"
// @Router /api/sessions/{id}/responses [post]
func (c *SessionController) SubmitResponse(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	id := util.MustParseUint(ctx.Param("id"))
	var req service.SubmitResponseRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	resp, err := c.SessionService.SubmitResponse(id, claims.UserID, &req)
	if err != nil {
		c.handleError(ctx, err)
		return
	}
	util.Created(ctx, resp)
}

// Report godoc
// @Summary 获取会话报告
// @Description 会话结束后可用。每个问题一个统计块，按页码排序，无人作答的问题也会出现
// @Tags 直播会话
// @Produce  json
// @Security ApiKeyAuth
// @Param id path int true "会话ID"
// @Success 200 {object} util.Response{data=service.SessionReport} "成功"
// @Failure 409 {object} util.Response "会话仍在进行中"
// @Router /api/sessions/{id}/report [get]
func (c *SessionController) Report(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	id := util.MustParseUint(ctx.Param("id"))

	report, err := c.SessionService.Report(id, claims.UserID, claims.Role == model.Admin)
	if err != nil {
		c.handleError(ctx, err)
		return
	}
	util.Success(ctx, report)
}

// UploadRecording godoc
// @Summary 上传课堂录像
// @Description 会话结束后上传，服务端探测录像时长后保存
// @Tags 直播会话
// @Accept  multipart/form-data
// @Produce  json
// @Security ApiKeyAuth
// @Param id path int true "会话ID"
// @Param file formData file true "录像文件"
// @Success 200 {object} util.Response{data=model.LiveSession} "成功"
// @Failure 400 {object} util.Response "格式不支持"
// @Router /api/sessions/{id}/recording [post]
func (c *SessionController) UploadRecording(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	id := util.MustParseUint(ctx.Param("id"))

	file, err := ctx.FormFile("file")
	if err != nil {
		util.BadRequest(ctx, "缺少文件")
		return
	}

	session, err := c.SessionService.AttachRecording(ctx.Request.Context(), id, claims.UserID, claims.Role == model.Admin, file)
	if err != nil {
		c.handleError(ctx, err)
		return
	}
	util.Success(ctx, session)
}

func (c *SessionController) handleError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, util.ErrSessionNotFound),
		errors.Is(err, util.ErrPresentationNotFound),
		errors.Is(err, util.ErrCheckpointNotFound):
		util.NotFound(ctx)
	case errors.Is(err, util.ErrPermissionDenied):
		util.Forbidden(ctx)
	case errors.Is(err, util.ErrCheckpointLocked),
		errors.Is(err, util.ErrAlreadySubmitted),
		errors.Is(err, util.ErrSessionStillActive):
		util.Conflict(ctx, err.Error())
	case errors.Is(err, util.ErrSessionEnded):
		util.Error(ctx, 410, err.Error())
	case errors.Is(err, util.ErrEmptySelection),
		errors.Is(err, util.ErrUnknownOption),
		errors.Is(err, util.ErrRecordingNotSupported):
		util.BadRequest(ctx, err.Error())
	default:
		util.LogInternalError(ctx, err)
	}
}
