package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"unilms_backend/internal/model"
	"unilms_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// withClaims 模拟AuthMiddleware已完成认证并注入claims
func withClaims(role model.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("user", &util.Claims{UserID: 1, Role: role})
		c.Next()
	}
}

func TestRoleMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name       string
		role       model.UserRole
		noClaims   bool
		wantStatus int
		wantNext   bool
	}{
		{name: "学生访问教师接口被拒", role: model.Student, wantStatus: http.StatusForbidden},
		{name: "教师放行", role: model.Teacher, wantStatus: http.StatusOK, wantNext: true},
		{name: "管理员放行", role: model.Admin, wantStatus: http.StatusOK, wantNext: true},
		{name: "未认证", noClaims: true, wantStatus: http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			reached := false
			handlers := []gin.HandlerFunc{}
			if !tt.noClaims {
				handlers = append(handlers, withClaims(tt.role))
			}
			handlers = append(handlers, RoleMiddleware(model.Teacher), func(c *gin.Context) {
				reached = true
				c.Status(http.StatusOK)
			})
			router.GET("/presentations/:id", handlers...)

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/presentations/1", nil)
			router.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if reached != tt.wantNext {
				t.Errorf("handler reached = %v, want %v", reached, tt.wantNext)
			}
		})
	}
}
