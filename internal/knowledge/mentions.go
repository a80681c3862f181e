package knowledge

import "strings"

// CountMentions 按词边界统计技能在文本中出现的次数，兼容 c++、c#、node.js 这类带符号的名称
func CountMentions(text, skill string) int {
	skill = Normalize(skill)
	if skill == "" || text == "" {
		return 0
	}
	lower := strings.ToLower(text)
	n := 0
	for from := 0; from < len(lower); {
		i := strings.Index(lower[from:], skill)
		if i < 0 {
			break
		}
		i += from
		end := i + len(skill)
		if (i == 0 || !isSkillByte(lower[i-1])) && (end == len(lower) || !isSkillByte(lower[end])) {
			n++
		}
		from = i + 1
	}
	return n
}

// MentionedSkills 返回文本中出现的表内技能，按字母序
func (b *Base) MentionedSkills(text string) []string {
	if b == nil {
		return nil
	}
	var out []string
	for _, s := range b.KnownSkills() {
		if CountMentions(text, s) > 0 {
			out = append(out, s)
		}
	}
	return out
}

func isSkillByte(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= '0' && c <= '9' || c == '+' || c == '#'
}
