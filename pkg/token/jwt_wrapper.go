package token

import "direct_chat_service/pkg/config"

// 這個變數會在測試時被覆蓋
var (
	GenerateJWTFunc = GenerateJWT
	ParseJWTFunc    = ParseJWT
)

// GenerateJWTWrapper 讓測試可替換簽發邏輯
func GenerateJWTWrapper(memberID, email, role string) (string, error) {
	return GenerateJWTFunc(memberID, email, role, config.EnvConfig.ChatService)
}

// ParseJWTWrapper 讓 middleware test mock 使用這個包裝函數
func ParseJWTWrapper(t string) (*Claims, error) {
	return ParseJWTFunc(t)
}
