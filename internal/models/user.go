package models

import "time"

// UserStatus 定义了用户账户的生命周期状态。
type UserStatus string

const (
	StatusPending     UserStatus = "pending"     // 账号待激活或验证
	StatusActive      UserStatus = "active"      // 账号正常
	StatusSuspended   UserStatus = "suspended"   // 账号被暂停
	StatusDeactivated UserStatus = "deactivated" // 账号已停用
)

// User 代表系统中的一个用户账户，持久化在文档数据库的 users 集合中。
type User struct {
	ID        string     `bson:"_id" json:"id"`
	Email     string     `bson:"email" json:"email"`
	Password  string     `bson:"password" json:"-"` // 存储哈希后的密码，json 中忽略
	Status    UserStatus `bson:"status" json:"status"`
	CreatedAt time.Time  `bson:"created_at" json:"created_at"`
	LastLogin time.Time  `bson:"last_login" json:"last_login"`

	// Settings 保存该用户的模型调用参数，随用户文档一起读写。
	Settings ChatSettings `bson:"settings" json:"settings"`
}

// ChatSettings 是用户可调的模型参数。字段是封闭枚举的，
// 而不是开放的键值映射，便于校验和持久化。
type ChatSettings struct {
	Model            string  `bson:"model" json:"model"`
	Temperature      float32 `bson:"temperature" json:"temperature"`
	TopP             float32 `bson:"top_p" json:"top_p"`
	MaxTokens        int     `bson:"max_tokens" json:"max_tokens"`
	FrequencyPenalty float32 `bson:"frequency_penalty" json:"frequency_penalty"`
	PresencePenalty  float32 `bson:"presence_penalty" json:"presence_penalty"`
}

// DefaultChatSettings 返回新注册用户的初始模型参数。
func DefaultChatSettings() ChatSettings {
	return ChatSettings{
		Model:            "gpt-4o-mini",
		Temperature:      0.7,
		TopP:             0.9,
		MaxTokens:        2048,
		FrequencyPenalty: 0,
		PresencePenalty:  0,
	}
}
