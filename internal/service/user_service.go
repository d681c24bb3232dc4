package service

import (
	"fmt"
	"time"

	"unilms_backend/internal/model"
	"unilms_backend/internal/repository"
	"unilms_backend/internal/util"

	"golang.org/x/crypto/bcrypt"
)

// UserFilter 定义用户筛选条件
// swagger:model UserFilter
type UserFilter struct {
	Role   string
	Status string
	Search string
}

// UserService 处理用户相关的业务逻辑
type UserService struct {
	UserRepo *repository.UserRepository
}

func NewUserService(userRepo *repository.UserRepository) *UserService {
	return &UserService{
		UserRepo: userRepo,
	}
}

// GetUsers 获取用户列表，支持分页和筛选
func (s *UserService) GetUsers(page, pageSize int, filter UserFilter) ([]model.User, int, error) {
	var users []model.User
	var total int64

	query := s.UserRepo.DB.Model(&model.User{})

	if filter.Role != "" {
		query = query.Where("role = ?", filter.Role)
	}

	if filter.Status == "disabled" {
		query = query.Where("disabled = ?", true)
	} else if filter.Status == "active" {
		query = query.Where("disabled = ?", false)
	}

	if filter.Search != "" {
		searchTerm := "%" + filter.Search + "%"
		query = query.Where("name LIKE ? OR email LIKE ? OR student_no LIKE ?", searchTerm, searchTerm, searchTerm)
	}

	query.Count(&total)

	offset := (page - 1) * pageSize
	query.Offset(offset).Limit(pageSize).Order("created_at DESC").Find(&users)

	return users, int(total), nil
}

// GetUserByID 根据ID获取用户信息
func (s *UserService) GetUserByID(id uint) (*model.User, error) {
	return s.UserRepo.FindByID(id)
}

type UpdateProfileRequest struct {
	Name     string `json:"name" binding:"required,max=100"`
	Language string `json:"language" binding:"max=10"`
}

// UpdateProfile 用户更新自己的资料，邮箱和角色不可自改
func (s *UserService) UpdateProfile(userID uint, req *UpdateProfileRequest) (*model.User, error) {
	user, err := s.UserRepo.FindByID(userID)
	if err != nil {
		return nil, util.ErrUserNotFound
	}

	user.Name = req.Name
	if req.Language != "" {
		user.Language = req.Language
	}
	user.UpdatedAt = time.Now()

	if err := s.UserRepo.Update(user); err != nil {
		return nil, err
	}
	return user, nil
}

// UpdateAvatar 更新头像URL
func (s *UserService) UpdateAvatar(userID uint, avatarURL string) (*model.User, error) {
	user, err := s.UserRepo.FindByID(userID)
	if err != nil {
		return nil, util.ErrUserNotFound
	}

	user.Avatar = avatarURL
	user.UpdatedAt = time.Now()

	if err := s.UserRepo.Update(user); err != nil {
		return nil, err
	}
	return user, nil
}

// UpdateUser 更新用户信息
func (s *UserService) UpdateUser(user *model.User) error {
	existingUser, err := s.UserRepo.FindByID(user.ID)
	if err != nil {
		return util.ErrUserNotFound
	}

	existingUser.Name = user.Name
	existingUser.Email = user.Email
	existingUser.Role = user.Role
	existingUser.StudentNo = user.StudentNo
	existingUser.Language = user.Language
	existingUser.Disabled = user.Disabled
	existingUser.UpdatedAt = time.Now()

	return s.UserRepo.Update(existingUser)
}

// ResetPassword 重置用户密码，返回临时密码
func (s *UserService) ResetPassword(userID uint) (string, error) {
	user, err := s.UserRepo.FindByID(userID)
	if err != nil {
		return "", util.ErrUserNotFound
	}

	tempPassword := generateTempPassword()

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(tempPassword), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}

	user.Password = string(hashedPassword)
	user.UpdatedAt = time.Now()

	if err := s.UserRepo.Update(user); err != nil {
		return "", err
	}

	return tempPassword, nil
}

// DisableUser 禁用/启用用户
func (s *UserService) DisableUser(id uint, disable bool) error {
	user, err := s.UserRepo.FindByID(id)
	if err != nil {
		return util.ErrUserNotFound
	}

	user.Disabled = disable
	user.UpdatedAt = time.Now()

	return s.UserRepo.Update(user)
}

// generateTempPassword 生成临时密码
func generateTempPassword() string {
	return fmt.Sprintf("temp%d", time.Now().UnixNano()%100000000)
}
