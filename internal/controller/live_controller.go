package controller

import (
	"errors"
	"time"

	"unilms_backend/internal/model"
	"unilms_backend/internal/service"
	"unilms_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// LiveController 管理房间内的问题生命周期和websocket接入
type LiveController struct {
	SessionService *service.SessionService
	Hub            *service.LiveHub
}

func NewLiveController(sessionService *service.SessionService, hub *service.LiveHub) *LiveController {
	return &LiveController{
		SessionService: sessionService,
		Hub:            hub,
	}
}

// Connect godoc
// @Summary 建立websocket连接
// @Description 加入会话房间。token支持放在query参数中，方便浏览器端websocket握手
// @Tags 实时课堂
// @Security ApiKeyAuth
// @Param id path int true "会话ID"
// @Router /api/live/{id}/ws [get]
func (c *LiveController) Connect(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	id := util.MustParseUint(ctx.Param("id"))

	session, err := c.SessionService.Get(id)
	if err != nil {
		util.NotFound(ctx)
		return
	}
	if !session.IsActive {
		util.Error(ctx, 410, util.ErrSessionEnded.Error())
		return
	}

	service.ServeWs(c.Hub, ctx.Writer, ctx.Request, claims.UserID, id)
}

// swagger:model StartCheckpointRequest
type StartCheckpointRequest struct {
	CheckpointID uint `json:"checkpointId" binding:"required"`
}

// StartCheckpoint godoc
// @Summary 激活签到问题
// @Description 教师在房间内启动一个问题。服务端生成统一的截止时间并广播给所有成员，到期自动关闭
// @Tags 实时课堂
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param id path int true "会话ID"
// @Param body body StartCheckpointRequest true "问题ID"
// @Success 200 {object} util.Response{data=object} "成功"
// @Failure 409 {object} util.Response "已有进行中的问题"
// @Router /api/live/{id}/checkpoints/start [post]
func (c *LiveController) StartCheckpoint(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	id := util.MustParseUint(ctx.Param("id"))
	var req StartCheckpointRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	session, err := c.SessionService.Get(id)
	if err != nil {
		util.NotFound(ctx)
		return
	}
	if session.HostID != claims.UserID && claims.Role != model.Admin {
		util.Forbidden(ctx)
		return
	}
	if !session.IsActive {
		util.Error(ctx, 410, util.ErrSessionEnded.Error())
		return
	}

	cp, err := c.SessionService.FindCheckpointForSession(session, req.CheckpointID)
	if err != nil {
		util.NotFound(ctx)
		return
	}

	active, err := c.Hub.StartCheckpoint(id, *cp)
	if err != nil {
		if errors.Is(err, util.ErrCheckpointActive) {
			util.Conflict(ctx, err.Error())
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}

	util.Success(ctx, gin.H{
		"checkpointId": cp.ID,
		"deadline":     active.Deadline.UnixMilli(),
		"remaining":    service.RemainingSeconds(active.Deadline, time.Now()),
	})
}

// StopCheckpoint godoc
// @Summary 提前停止当前问题
// @Description 幂等：问题已超时或已停止时照常返回当前状态
// @Tags 实时课堂
// @Produce  json
// @Security ApiKeyAuth
// @Param id path int true "会话ID"
// @Success 200 {object} util.Response{data=object} "成功"
// @Router /api/live/{id}/checkpoints/stop [post]
func (c *LiveController) StopCheckpoint(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	id := util.MustParseUint(ctx.Param("id"))

	session, err := c.SessionService.Get(id)
	if err != nil {
		util.NotFound(ctx)
		return
	}
	if session.HostID != claims.UserID && claims.Role != model.Admin {
		util.Forbidden(ctx)
		return
	}

	active := c.Hub.CloseCheckpoint(id, service.CheckpointStopped)
	if active == nil {
		util.Success(ctx, gin.H{"state": nil})
		return
	}
	util.Success(ctx, gin.H{
		"checkpointId": active.Checkpoint.ID,
		"state":        active.State,
	})
}

// CurrentState godoc
// @Summary 房间当前状态
// @Description 返回进行中的问题、剩余秒数与实时统计，供页面刷新后恢复
// @Tags 实时课堂
// @Produce  json
// @Security ApiKeyAuth
// @Param id path int true "会话ID"
// @Success 200 {object} util.Response{data=object} "成功"
// @Router /api/live/{id}/state [get]
func (c *LiveController) CurrentState(ctx *gin.Context) {
	id := util.MustParseUint(ctx.Param("id"))

	if _, err := c.SessionService.Get(id); err != nil {
		util.NotFound(ctx)
		return
	}

	state := gin.H{
		"participants": c.Hub.Participants(id),
	}

	if active := c.Hub.CurrentCheckpoint(id); active != nil {
		state["checkpoint"] = gin.H{
			"id":        active.Checkpoint.ID,
			"page":      active.Checkpoint.Page,
			"question":  active.Checkpoint.Question,
			"options":   active.Checkpoint.Options,
			"state":     active.State,
			"deadline":  active.Deadline.UnixMilli(),
			"remaining": service.RemainingSeconds(active.Deadline, time.Now()),
		}
		state["tally"] = c.Hub.CurrentTally(id)
	}

	util.Success(ctx, state)
}
