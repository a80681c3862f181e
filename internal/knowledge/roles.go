package knowledge

import (
	"strings"
	"unicode"
)

const minRoleTokenLen = 3

// Tokenize 按空白、连字符、下划线切分岗位名称，丢弃短于3个字符的词
func Tokenize(title string) []string {
	fields := strings.FieldsFunc(strings.ToLower(title), func(r rune) bool {
		return unicode.IsSpace(r) || r == '-' || r == '_'
	})
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimFunc(f, func(r rune) bool {
			return unicode.IsPunct(r) && r != '+' && r != '#'
		})
		if len([]rune(f)) < minRoleTokenLen {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}

// RoleEquivalent 判断 roleA 的任一词（或其同义词）是否出现在 roleB 中。
// 只从 A 的角度检查，需要对称时调用方应两个方向各调用一次。
func (b *Base) RoleEquivalent(roleA, roleB string) bool {
	tokensB := make(map[string]struct{})
	for _, t := range Tokenize(roleB) {
		tokensB[t] = struct{}{}
	}
	if len(tokensB) == 0 {
		return false
	}
	for _, t := range Tokenize(roleA) {
		if _, ok := tokensB[t]; ok {
			return true
		}
		for _, syn := range b.synonyms[t] {
			if _, ok := tokensB[syn]; ok {
				return true
			}
		}
	}
	return false
}

// SeniorityLevel 返回岗位名称中最高的职级标记，没有标记时 ok 为 false
func (b *Base) SeniorityLevel(title string) (level int, ok bool) {
	level = -1
	for _, t := range strings.FieldsFunc(strings.ToLower(title), func(r rune) bool {
		return unicode.IsSpace(r) || r == '-' || r == '_' || r == ',' || r == '.' || r == '/' || r == '(' || r == ')'
	}) {
		if l, found := b.seniority[t]; found && l > level {
			level = l
		}
	}
	return level, level >= 0
}
