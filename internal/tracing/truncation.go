package tracing

import (
	"strings"
)

const (
	DefaultMaxLength = 200
	MaxSQLLength     = 500
	MaxRedisLength   = 100
	// MaxResumeLength span 属性中简历片段的最大长度
	MaxResumeLength = 150
)

// maskPIILookup 属性名包含这些关键字时值需要掩码
var maskPIILookup = []string{
	"email",
	"phone",
	"password",
	"linkedin",
	"id_card",
	"身份证",
	"address",
	"地址",
	"name",
	"姓名",
	"secret",
	"token",
	"api_key",
}

// SafeAttributeValue 敏感属性返回掩码值，其余按 maxLength 截断
func SafeAttributeValue(name string, value string, maxLength int) string {
	lowerName := strings.ToLower(name)
	for _, keyword := range maskPIILookup {
		if strings.Contains(lowerName, keyword) {
			return MaskPII(value)
		}
	}
	return TruncateString(value, maxLength)
}

// MaskPII 对个人敏感信息进行掩码处理。
// "张三" -> "张*"，"王小明" -> "王*明"，更长的值保留首尾各两个字符。
func MaskPII(value string) string {
	if value == "" {
		return ""
	}

	runes := []rune(value)
	length := len(runes)

	switch {
	case length <= 1:
		return "*"
	case length == 2:
		return string(runes[0:1]) + "*"
	case length <= 4:
		return string(runes[0:1]) + strings.Repeat("*", length-2) + string(runes[length-1:])
	}
	return string(runes[0:2]) + strings.Repeat("*", length-4) + string(runes[length-2:])
}

// TruncateString 超长时保留首尾、中间用省略号连接
func TruncateString(s string, maxLength int) string {
	runes := []rune(s)
	if len(runes) <= maxLength {
		return s
	}

	if maxLength <= 3 {
		return string(runes[:maxLength])
	}

	half := (maxLength - 3) / 2
	if half < 1 {
		half = 1
	}
	return string(runes[:half]) + "..." + string(runes[len(runes)-half:])
}

func SafeSQL(sql string) string {
	return TruncateString(sql, MaxSQLLength)
}

func SafeRedisKey(key string) string {
	return TruncateString(key, MaxRedisLength)
}

// SafeResumeContent 简历片段只保留少量字符用于排查
func SafeResumeContent(content string) string {
	return TruncateString(content, MaxResumeLength)
}
