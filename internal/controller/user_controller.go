package controller

import (
	"errors"
	"strconv"

	"unilms_backend/internal/model"
	"unilms_backend/internal/service"
	"unilms_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type UserController struct {
	UserService *service.UserService
	Storage     *service.StorageService
}

func NewUserController(userService *service.UserService, storage *service.StorageService) *UserController {
	return &UserController{
		UserService: userService,
		Storage:     storage,
	}
}

// UpdateProfile godoc
// @Summary 更新个人资料
// @Tags 用户
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param body body service.UpdateProfileRequest true "资料"
// @Success 200 {object} util.Response{data=model.User} "成功"
// @Router /api/profile [put]
func (c *UserController) UpdateProfile(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	var req service.UpdateProfileRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	user, err := c.UserService.UpdateProfile(claims.UserID, &req)
	if err != nil {
		if errors.Is(err, util.ErrUserNotFound) {
			util.NotFound(ctx)
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Success(ctx, user)
}

// UploadAvatar godoc
// @Summary 上传头像
// @Tags 用户
// @Accept  multipart/form-data
// @Produce  json
// @Security ApiKeyAuth
// @Param file formData file true "头像图片"
// @Success 200 {object} util.Response{data=model.User} "成功"
// @Router /api/profile/avatar [post]
func (c *UserController) UploadAvatar(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)

	file, err := ctx.FormFile("file")
	if err != nil {
		util.BadRequest(ctx, "缺少文件")
		return
	}

	uploaded, err := c.Storage.UploadMultipart(ctx.Request.Context(), "avatars", file)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	user, err := c.UserService.UpdateAvatar(claims.UserID, uploaded.URL)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, user)
}

// GetUsers godoc
// @Summary 获取用户列表
// @Description 管理员分页查询用户，支持角色/状态/关键字筛选
// @Tags 用户管理
// @Produce  json
// @Security ApiKeyAuth
// @Param page query int false "页码"
// @Param limit query int false "每页数量"
// @Param role query string false "角色筛选"
// @Param status query string false "状态筛选 active/disabled"
// @Param search query string false "姓名/邮箱/学号关键字"
// @Success 200 {object} util.Response{data=util.PageResponse} "成功"
// @Router /api/admin/users [get]
func (c *UserController) GetUsers(ctx *gin.Context) {
	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	filter := service.UserFilter{
		Role:   ctx.Query("role"),
		Status: ctx.Query("status"),
		Search: ctx.Query("search"),
	}

	users, total, err := c.UserService.GetUsers(page, limit, filter)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, util.PageResponse{
		List:  users,
		Total: int64(total),
		Page:  page,
		Limit: limit,
	})
}

// swagger:model UpdateUserRequest
type UpdateUserRequest struct {
	Name      string `json:"name" binding:"required,max=100"`
	Email     string `json:"email" binding:"required,email"`
	Role      string `json:"role" binding:"required,oneof=student teacher admin"`
	StudentNo string `json:"studentNo" binding:"max=50"`
	Language  string `json:"language"`
	Disabled  bool   `json:"disabled"`
}

// UpdateUser godoc
// @Summary 更新用户信息
// @Tags 用户管理
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param id path int true "用户ID"
// @Param body body UpdateUserRequest true "用户信息"
// @Success 200 {object} util.Response "成功"
// @Failure 404 {object} util.Response "用户不存在"
// @Router /api/admin/users/{id} [put]
func (c *UserController) UpdateUser(ctx *gin.Context) {
	id := util.MustParseUint(ctx.Param("id"))
	var req UpdateUserRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	user := &model.User{
		Name:      req.Name,
		Email:     req.Email,
		Role:      model.UserRole(req.Role),
		StudentNo: req.StudentNo,
		Language:  req.Language,
		Disabled:  req.Disabled,
	}
	user.ID = id

	if err := c.UserService.UpdateUser(user); err != nil {
		if errors.Is(err, util.ErrUserNotFound) {
			util.NotFound(ctx)
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Success(ctx, nil)
}

// ResetPassword godoc
// @Summary 重置用户密码
// @Description 管理员重置密码，返回临时密码
// @Tags 用户管理
// @Produce  json
// @Security ApiKeyAuth
// @Param id path int true "用户ID"
// @Success 200 {object} util.Response{data=object} "成功"
// @Failure 404 {object} util.Response "用户不存在"
// @Router /api/admin/users/{id}/reset-password [post]
func (c *UserController) ResetPassword(ctx *gin.Context) {
	id := util.MustParseUint(ctx.Param("id"))

	tempPassword, err := c.UserService.ResetPassword(id)
	if err != nil {
		if errors.Is(err, util.ErrUserNotFound) {
			util.NotFound(ctx)
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Success(ctx, gin.H{"tempPassword": tempPassword})
}

// swagger:model DisableUserRequest
type DisableUserRequest struct {
	Disabled bool `json:"disabled"`
}

// DisableUser godoc
// @Summary 禁用/启用用户
// @Tags 用户管理
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param id path int true "用户ID"
// @Param body body DisableUserRequest true "禁用状态"
// @Success 200 {object} util.Response "成功"
// @Router /api/admin/users/{id}/disable [post]
func (c *UserController) DisableUser(ctx *gin.Context) {
	id := util.MustParseUint(ctx.Param("id"))
	var req DisableUserRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	if err := c.UserService.DisableUser(id, req.Disabled); err != nil {
		if errors.Is(err, util.ErrUserNotFound) {
			util.NotFound(ctx)
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Success(ctx, nil)
}
