package knowledge

import (
	"fmt"
	"strings"
)

// MatchKind 技能等价的判定依据，数值越小越强
type MatchKind int

const (
	MatchExact MatchKind = iota + 1
	MatchSubstring
	MatchRelated
	MatchSharedCategory
)

func (k MatchKind) String() string {
	switch k {
	case MatchExact:
		return "exact"
	case MatchSubstring:
		return "substring"
	case MatchRelated:
		return "related"
	case MatchSharedCategory:
		return "shared_category"
	}
	return "none"
}

// Match 一次技能等价判定的结果
type Match struct {
	Kind MatchKind
	// Shared 共享类别命中时的类别标签
	Shared string
}

// Reason 给出面向人的解释
func (m Match) Reason(candidateSkill, requirement string) string {
	switch m.Kind {
	case MatchExact:
		return fmt.Sprintf("%s matches %s directly", candidateSkill, requirement)
	case MatchSubstring:
		return fmt.Sprintf("%s and %s name the same technology", candidateSkill, requirement)
	case MatchRelated:
		return fmt.Sprintf("%s is a transferable skill for %s", candidateSkill, requirement)
	case MatchSharedCategory:
		return fmt.Sprintf("%s and %s share the %s category", candidateSkill, requirement, m.Shared)
	}
	return ""
}

// SkillEquivalent 判断两个技能是否可互相替代
func (b *Base) SkillEquivalent(a, c string) bool {
	_, ok := b.SkillMatch(a, c)
	return ok
}

// SkillMatch 按 精确 → 子串 → 相关表 → 共享类别 的顺序判定
//
// 共享类别是宽松启发式：两个技能只要在表中有一个共同标签即视为等价，
// 可能产生误报，这是已知且接受的近似。
func (b *Base) SkillMatch(a, c string) (Match, bool) {
	na, nc := Normalize(a), Normalize(c)
	if na == "" || nc == "" {
		return Match{}, false
	}
	if na == nc {
		return Match{Kind: MatchExact}, true
	}
	if strings.Contains(na, nc) || strings.Contains(nc, na) {
		return Match{Kind: MatchSubstring}, true
	}

	relA, relC := b.related[na], b.related[nc]
	if _, ok := relA[nc]; ok {
		return Match{Kind: MatchRelated}, true
	}
	if _, ok := relC[na]; ok {
		return Match{Kind: MatchRelated}, true
	}

	// 按表中顺序遍历，保证共享标签结果确定
	for _, tag := range b.ordered[na] {
		if _, ok := relC[tag]; ok {
			return Match{Kind: MatchSharedCategory, Shared: tag}, true
		}
	}
	return Match{}, false
}

// BestMatch 在候选技能中找与 requirement 最强的等价技能，强度相同时取靠前者
func (b *Base) BestMatch(requirement string, candidateSkills []string) (string, Match, bool) {
	var (
		best      string
		bestMatch Match
		found     bool
	)
	for _, s := range candidateSkills {
		m, ok := b.SkillMatch(s, requirement)
		if !ok {
			continue
		}
		if !found || m.Kind < bestMatch.Kind {
			best, bestMatch, found = s, m, true
			if m.Kind == MatchExact {
				break
			}
		}
	}
	return best, bestMatch, found
}
