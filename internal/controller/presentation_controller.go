package controller

import (
	"errors"
	"strconv"

	"unilms_backend/internal/model"
	"unilms_backend/internal/service"
	"unilms_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type PresentationController struct {
	PresentationService *service.PresentationService
}

func NewPresentationController(presentationService *service.PresentationService) *PresentationController {
	return &PresentationController{
		PresentationService: presentationService,
	}
}

// Create godoc
// @Summary 创建演示文稿
// @Tags 演示文稿
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param body body service.CreatePresentationRequest true "演示文稿信息"
// @Success 201 {object} util.Response{data=model.Presentation} "创建成功"
// @Failure 400 {object} util.Response "请求参数错误"
// @Router /api/presentations [post]
func (c *PresentationController) Create(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	var req service.CreatePresentationRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	p, err := c.PresentationService.Create(claims.UserID, &req)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Created(ctx, p)
}

// List godoc
// @Summary 获取我的演示文稿列表
// @Tags 演示文稿
// @Produce  json
// @Security ApiKeyAuth
// @Param page query int false "页码"
// @Param limit query int false "每页数量"
// @Success 200 {object} util.Response{data=util.PageResponse} "成功"
// @Router /api/presentations [get]
func (c *PresentationController) List(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	ps, total, err := c.PresentationService.List(claims.UserID, page, limit)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, util.PageResponse{List: ps, Total: total, Page: page, Limit: limit})
}

// Get godoc
// @Summary 获取演示文稿详情
// @Description 返回演示文稿及其按页码排序的所有签到问题(含正确答案)，仅所有者可见
// @Tags 演示文稿
// @Produce  json
// @Security ApiKeyAuth
// @Param id path int true "演示文稿ID"
// @Success 200 {object} util.Response{data=model.Presentation} "成功"
// @Failure 403 {object} util.Response "无权限"
// @Failure 404 {object} util.Response "不存在"
// @Router /api/presentations/{id} [get]
func (c *PresentationController) Get(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	id := util.MustParseUint(ctx.Param("id"))
	p, err := c.PresentationService.Get(id, claims.UserID, claims.Role == model.Admin)
	if err != nil {
		c.handleError(ctx, err)
		return
	}
	util.Success(ctx, p)
}

// Update godoc
// @Summary 更新演示文稿
// @Tags 演示文稿
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param id path int true "演示文稿ID"
// @Param body body service.UpdatePresentationRequest true "演示文稿信息"
// @Success 200 {object} util.Response{data=model.Presentation} "成功"
// @Failure 403 {object} util.Response "无权限"
// @Failure 404 {object} util.Response "不存在"
// @Router /api/presentations/{id} [put]
func (c *PresentationController) Update(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	id := util.MustParseUint(ctx.Param("id"))
	var req service.UpdatePresentationRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	p, err := c.PresentationService.Update(id, claims.UserID, claims.Role == model.Admin, &req)
	if err != nil {
		c.handleError(ctx, err)
		return
	}
	util.Success(ctx, p)
}

// Delete godoc
// @Summary 删除演示文稿
// @Description 有进行中的会话时拒绝删除
// @Tags 演示文稿
// @Produce  json
// @Security ApiKeyAuth
// @Param id path int true "演示文稿ID"
// @Success 200 {object} util.Response "成功"
// @Failure 409 {object} util.Response "会话进行中"
// @Router /api/presentations/{id} [delete]
func (c *PresentationController) Delete(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	id := util.MustParseUint(ctx.Param("id"))

	if err := c.PresentationService.Delete(id, claims.UserID, claims.Role == model.Admin); err != nil {
		c.handleError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// UploadDeck godoc
// @Summary 上传课件文件
// @Description 支持 pdf/ppt/pptx/key/odp，上传后回填文件元信息
// @Tags 演示文稿
// @Accept  multipart/form-data
// @Produce  json
// @Security ApiKeyAuth
// @Param id path int true "演示文稿ID"
// @Param file formData file true "课件文件"
// @Success 200 {object} util.Response{data=model.Presentation} "成功"
// @Failure 400 {object} util.Response "文件格式不支持"
// @Router /api/presentations/{id}/deck [post]
func (c *PresentationController) UploadDeck(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	id := util.MustParseUint(ctx.Param("id"))

	file, err := ctx.FormFile("file")
	if err != nil {
		util.BadRequest(ctx, "缺少文件")
		return
	}

	p, err := c.PresentationService.UploadDeck(ctx.Request.Context(), id, claims.UserID, claims.Role == model.Admin, file)
	if err != nil {
		c.handleError(ctx, err)
		return
	}
	util.Success(ctx, p)
}

// ListCheckpoints godoc
// @Summary 获取签到问题列表
// @Description 按页码排序返回(含正确答案)，仅所有者可见
// @Tags 签到问题
// @Produce  json
// @Security ApiKeyAuth
// @Param id path int true "演示文稿ID"
// @Success 200 {object} util.Response{data=[]model.Checkpoint} "成功"
// @Failure 403 {object} util.Response "无权限"
// @Router /api/presentations/{id}/checkpoints [get]
func (c *PresentationController) ListCheckpoints(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	id := util.MustParseUint(ctx.Param("id"))
	cs, err := c.PresentationService.ListCheckpoints(id, claims.UserID, claims.Role == model.Admin)
	if err != nil {
		c.handleError(ctx, err)
		return
	}
	util.Success(ctx, cs)
}

// CreateCheckpoint godoc
// @Summary 新建签到问题
// @Description 问题绑定到指定页码，会话进行中时整份文稿锁定不可修改
// @Tags 签到问题
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param id path int true "演示文稿ID"
// @Param body body service.CheckpointRequest true "问题定义"
// @Success 201 {object} util.Response{data=model.Checkpoint} "创建成功"
// @Failure 409 {object} util.Response "会话进行中"
// @Router /api/presentations/{id}/checkpoints [post]
func (c *PresentationController) CreateCheckpoint(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	id := util.MustParseUint(ctx.Param("id"))
	var req service.CheckpointRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	cp, err := c.PresentationService.CreateCheckpoint(id, claims.UserID, claims.Role == model.Admin, &req)
	if err != nil {
		c.handleError(ctx, err)
		return
	}
	util.Created(ctx, cp)
}

// UpdateCheckpoint godoc
// @Summary 更新签到问题
// @Tags 签到问题
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param id path int true "演示文稿ID"
// @Param checkpointId path int true "问题ID"
// @Param body body service.CheckpointRequest true "问题定义"
// @Success 200 {object} util.Response{data=model.Checkpoint} "成功"
// @Failure 409 {object} util.Response "会话进行中"
// @Router /api/presentations/{id}/checkpoints/{checkpointId} [put]
func (c *PresentationController) UpdateCheckpoint(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	id := util.MustParseUint(ctx.Param("id"))
	checkpointID := util.MustParseUint(ctx.Param("checkpointId"))
	var req service.CheckpointRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	cp, err := c.PresentationService.UpdateCheckpoint(id, checkpointID, claims.UserID, claims.Role == model.Admin, &req)
	if err != nil {
		c.handleError(ctx, err)
		return
	}
	util.Success(ctx, cp)
}

// DeleteCheckpoint godoc
// @Summary 删除签到问题
// @Tags 签到问题
// @Produce  json
// @Security ApiKeyAuth
// @Param id path int true "演示文稿ID"
// @Param checkpointId path int true "问题ID"
// @Success 200 {object} util.Response "成功"
// @Failure 409 {object} util.Response "会话进行中"
// @Router /api/presentations/{id}/checkpoints/{checkpointId} [delete]
func (c *PresentationController) DeleteCheckpoint(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	id := util.MustParseUint(ctx.Param("id"))
	checkpointID := util.MustParseUint(ctx.Param("checkpointId"))

	if err := c.PresentationService.DeleteCheckpoint(id, checkpointID, claims.UserID, claims.Role == model.Admin); err != nil {
		c.handleError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

func (c *PresentationController) handleError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, util.ErrPresentationNotFound), errors.Is(err, util.ErrCheckpointNotFound):
		util.NotFound(ctx)
	case errors.Is(err, util.ErrPermissionDenied):
		util.Forbidden(ctx)
	case errors.Is(err, util.ErrCheckpointLocked):
		util.Conflict(ctx, err.Error())
	default:
		util.BadRequest(ctx, err.Error())
	}
}
