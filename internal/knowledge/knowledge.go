// Package knowledge 提供可迁移技能表、岗位同义词表以及基于它们的匹配判断。
// 表数据在进程启动时加载一次，以 *Base 显式传递给提取器和评分引擎。
package knowledge

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed tables.yaml
var defaultTables []byte

// Tables 版本化的静态表
type Tables struct {
	Version         string              `yaml:"version"`
	Skills          map[string][]string `yaml:"skills"`
	RoleSynonyms    map[string][]string `yaml:"role_synonyms"`
	SeniorityLevels map[string]int      `yaml:"seniority_levels"`
}

// Base 只读的知识库实例，可被多个 goroutine 共享
type Base struct {
	version   string
	related   map[string]map[string]struct{}
	ordered   map[string][]string
	synonyms  map[string][]string
	seniority map[string]int
}

// Default 使用内置表创建知识库
func Default() (*Base, error) {
	return Parse(defaultTables)
}

// LoadFile 从外部 YAML 文件加载表，path 为空时回退到内置表
func LoadFile(path string) (*Base, error) {
	if strings.TrimSpace(path) == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取知识库文件失败: %w", err)
	}
	return Parse(data)
}

// Parse 解析 YAML 表
func Parse(data []byte) (*Base, error) {
	var t Tables
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("解析知识库表失败: %w", err)
	}
	return New(t)
}

// New 从内存中的表构建知识库，键和值统一规范化
func New(t Tables) (*Base, error) {
	if len(t.Skills) == 0 {
		return nil, fmt.Errorf("技能表不能为空")
	}
	b := &Base{
		version:   t.Version,
		related:   make(map[string]map[string]struct{}, len(t.Skills)),
		ordered:   make(map[string][]string, len(t.Skills)),
		synonyms:  make(map[string][]string, len(t.RoleSynonyms)),
		seniority: make(map[string]int, len(t.SeniorityLevels)),
	}
	if b.version == "" {
		b.version = "unversioned"
	}
	for skill, rel := range t.Skills {
		key := Normalize(skill)
		if key == "" {
			continue
		}
		set := b.related[key]
		if set == nil {
			set = make(map[string]struct{}, len(rel))
			b.related[key] = set
		}
		for _, r := range rel {
			n := Normalize(r)
			if n == "" || n == key {
				continue
			}
			if _, dup := set[n]; !dup {
				set[n] = struct{}{}
				b.ordered[key] = append(b.ordered[key], n)
			}
		}
	}
	for token, syns := range t.RoleSynonyms {
		key := Normalize(token)
		for _, s := range syns {
			if n := Normalize(s); n != "" {
				b.synonyms[key] = append(b.synonyms[key], n)
			}
		}
	}
	for marker, level := range t.SeniorityLevels {
		b.seniority[Normalize(marker)] = level
	}
	return b, nil
}

// Version 表版本，随评分结果一起持久化
func (b *Base) Version() string {
	return b.version
}

// Normalize 小写并去除首尾空白
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Related 返回技能的相关技能列表（保持表中顺序）
func (b *Base) Related(skill string) []string {
	return b.ordered[Normalize(skill)]
}

// KnownSkills 返回表中所有技能键，按字母排序
func (b *Base) KnownSkills() []string {
	keys := make([]string, 0, len(b.related))
	for k := range b.related {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SeniorityOf 返回职级标记的序数
func (b *Base) SeniorityOf(marker string) (int, bool) {
	level, ok := b.seniority[Normalize(marker)]
	return level, ok
}
