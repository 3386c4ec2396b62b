package middleware

import (
	"fmt"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

// CheckUserKey 上下文中保存当前用户 ID 的键
const CheckUserKey = "user"

// SessionUserKey is the session value written by the login service.
const SessionUserKey = "user_id"

// LoadUser retrieves the user id from the session and sets it on the context.
// Anonymous requests pass through; handlers fall back to the id in the body.
func LoadUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		if userID := session.Get(SessionUserKey); userID != nil {
			if id := fmt.Sprint(userID); id != "" {
				c.Set(CheckUserKey, id)
			}
		}
		c.Next()
	}
}
