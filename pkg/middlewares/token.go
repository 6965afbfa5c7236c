package middlewares

import (
	"strings"

	t_token "direct_chat_service/pkg/token"

	"github.com/gofiber/fiber/v2"
)

const (
	//QueryToken token in query name
	QueryToken = "auth"

	//CookieToken token in cookie name
	CookieToken = "auth_token"

	//TokenMemberID get member form token, set c.locals name
	TokenMemberID = "MemberID"
	//TokenEmail get email form token, set c.locals name
	TokenEmail = "email"
	//TokenRole get role form token, set c.locals name
	TokenRole = "role"
)

// JWTMiddleware validates JWT from Authorization header, query or cookie
func JWTMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenStr := strings.TrimPrefix(c.Get(fiber.HeaderAuthorization), "Bearer ")

		// websocket 連線無法帶 header，改從查詢參數取得
		if tokenStr == "" {
			tokenStr = c.Query(QueryToken)
		}

		if tokenStr == "" {
			tokenStr = c.Cookies(CookieToken)
		}

		if tokenStr == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing token",
			})
		}

		claims, err := t_token.ParseJWTWrapper(tokenStr)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid token",
			})
		}

		c.Locals(TokenMemberID, claims.MemberID)
		c.Locals(TokenEmail, claims.Email)
		c.Locals(TokenRole, claims.Role)

		return c.Next()
	}
}

// MemberID read the authenticated member id set by JWTMiddleware
func MemberID(c *fiber.Ctx) string {
	id, _ := c.Locals(TokenMemberID).(string)
	return id
}

// MemberEmail read the authenticated member email set by JWTMiddleware
func MemberEmail(c *fiber.Ctx) string {
	email, _ := c.Locals(TokenEmail).(string)
	return email
}
