package handler

import (
	"github.com/gin-gonic/gin"

	"checkin-campaign/backend/pkg/response"
)

// MustGetStudentID 从上下文提取 JWT 中间件注入的学号。
// 缺失时写入 401 并返回 false，调用方应直接 return。
func MustGetStudentID(c *gin.Context) (string, bool) {
	v, exists := c.Get("student_id")
	if !exists {
		response.Unauthorized(c, 10002, "未认证")
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		response.Unauthorized(c, 10002, "未认证")
		return "", false
	}
	return s, true
}
