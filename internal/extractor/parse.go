package extractor

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"ats-engine/internal/scoring"
	"ats-engine/internal/types"
)

var fencePattern = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*\\n?(.*?)```")

type rawContact struct {
	Name     string      `json:"name"`
	Email    string      `json:"email"`
	Phone    interface{} `json:"phone"`
	LinkedIn string      `json:"linkedin"`
}

type rawExperience struct {
	Role        string      `json:"role"`
	Company     string      `json:"company"`
	Start       interface{} `json:"start"`
	End         interface{} `json:"end"`
	Description string      `json:"description"`
	IsCurrent   *bool       `json:"isCurrent"`
}

type rawEducation struct {
	Degree         string      `json:"degree"`
	Field          string      `json:"field"`
	Institution    string      `json:"institution"`
	GraduationYear interface{} `json:"graduationYear"`
}

type rawProject struct {
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Technologies []string `json:"technologies"`
}

type rawFeatures struct {
	Contact              *rawContact     `json:"contact"`
	Skills               []string        `json:"skills"`
	Experience           []rawExperience `json:"experience"`
	TotalExperienceYears interface{}     `json:"totalExperienceYears"`
	Education            []rawEducation  `json:"education"`
	Certifications       []string        `json:"certifications"`
	Courses              []string        `json:"courses"`
	Projects             []rawProject    `json:"projects"`
	Summary              string          `json:"summary"`
	Score                interface{}     `json:"score"`
}

// ParseFeatures 从模型输出中恢复特征：去掉代码块围栏后按 JSON 解析，
// 失败时取第一个配平的 {...} 重试一次，最后做 schema 校验。
func ParseFeatures(content string) Outcome {
	doc, ok := locateJSON(content)
	if !ok {
		return Outcome{Err: types.NewAIParseError("模型输出中没有可解析的 JSON 对象")}
	}
	if err := validateJSON(doc); err != nil {
		return Outcome{Err: types.NewAIParseError(err.Error())}
	}

	var raw rawFeatures
	if err := json.Unmarshal([]byte(doc), &raw); err != nil {
		return Outcome{Err: types.NewAIParseError(err.Error())}
	}
	return Outcome{Features: raw.toFeatures()}
}

func locateJSON(content string) (string, bool) {
	body := stripFences(content)
	if !utf8.ValidString(body) {
		body = strings.ToValidUTF8(body, "")
	}
	if json.Valid([]byte(body)) {
		return body, true
	}

	obj := firstBalancedObject(body)
	if obj == "" {
		return "", false
	}
	if json.Valid([]byte(obj)) {
		return obj, true
	}
	if fixed := sanitizeJSON(obj); json.Valid([]byte(fixed)) {
		return fixed, true
	}
	return "", false
}

// stripFences 去掉 BOM 和 markdown 代码块围栏
func stripFences(s string) string {
	s = strings.TrimSpace(strings.TrimPrefix(s, "\uFEFF"))
	if m := fencePattern.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	return s
}

// firstBalancedObject 返回第一个括号配平的 {...}，忽略字符串字面量中的括号
func firstBalancedObject(text string) string {
	start := strings.Index(text, "{")
	if start == -1 {
		return ""
	}
	level := 0
	inStr, escaped := false, false
	for i := start; i < len(text); i++ {
		c := text[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inStr:
			escaped = true
		case c == '"':
			inStr = !inStr
		case inStr:
		case c == '{':
			level++
		case c == '}':
			level--
			if level == 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}

// sanitizeJSON 把字符串字面量内部未转义的双引号改写为 \"。
// 某个 " 之后的第一个非空白字符是 : , ] } 之一时才视为字符串结束。
func sanitizeJSON(src string) string {
	var b strings.Builder
	inStr := false
	escaped := false

	for i := 0; i < len(src); i++ {
		c := src[i]

		switch {
		case c == '"' && !escaped:
			if !inStr {
				inStr = true
				b.WriteByte(c)
				break
			}
			j := i + 1
			for j < len(src) && (src[j] == ' ' || src[j] == '\t' || src[j] == '\n' || src[j] == '\r') {
				j++
			}
			if j >= len(src) || src[j] == ':' || src[j] == ',' || src[j] == ']' || src[j] == '}' {
				inStr = false
				b.WriteByte(c)
			} else {
				b.WriteString("\\\"")
			}
			escaped = false
		case c == '\\' && !escaped:
			escaped = true
			b.WriteByte(c)
		default:
			b.WriteByte(c)
			escaped = false
		}
	}
	return b.String()
}

func (r *rawFeatures) toFeatures() *types.ExtractedFeatures {
	f := &types.ExtractedFeatures{
		Skills:               cleanList(r.Skills),
		StructuredExperience: make([]types.Experience, 0, len(r.Experience)),
		TotalExperienceYears: years(r.TotalExperienceYears),
		Education:            make([]types.Education, 0, len(r.Education)),
		Certifications:       cleanList(r.Certifications),
		Courses:              cleanList(r.Courses),
		Projects:             make([]types.Project, 0, len(r.Projects)),
		Summary:              strings.TrimSpace(r.Summary),
		GeneralFitScore:      scoring.SanitizeScore(r.Score),
		InferredSkills:       []string{},
		Source:               types.SourceAI,
	}
	if r.Contact != nil {
		f.Contact = types.Contact{
			Name:     strings.TrimSpace(r.Contact.Name),
			Email:    strings.TrimSpace(r.Contact.Email),
			Phone:    stringOf(r.Contact.Phone),
			LinkedIn: strings.TrimSpace(r.Contact.LinkedIn),
		}
	}
	for _, e := range r.Experience {
		exp := types.Experience{
			Role:        strings.TrimSpace(e.Role),
			Company:     strings.TrimSpace(e.Company),
			Start:       stringOf(e.Start),
			End:         stringOf(e.End),
			Description: strings.TrimSpace(e.Description),
		}
		if e.IsCurrent != nil {
			exp.IsCurrent = *e.IsCurrent
		}
		if exp.Role == "" && exp.Company == "" && exp.Description == "" {
			continue
		}
		f.StructuredExperience = append(f.StructuredExperience, exp)
	}
	for _, e := range r.Education {
		f.Education = append(f.Education, types.Education{
			Degree:         strings.TrimSpace(e.Degree),
			Field:          strings.TrimSpace(e.Field),
			Institution:    strings.TrimSpace(e.Institution),
			GraduationYear: stringOf(e.GraduationYear),
		})
	}
	for _, p := range r.Projects {
		f.Projects = append(f.Projects, types.Project{
			Name:         strings.TrimSpace(p.Name),
			Description:  strings.TrimSpace(p.Description),
			Technologies: cleanList(p.Technologies),
		})
	}
	return f
}

func cleanList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		if it = strings.TrimSpace(it); it != "" {
			out = append(out, it)
		}
	}
	return out
}

func stringOf(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	}
	return ""
}

// years 年限只接受非负有限值
func years(v interface{}) float64 {
	if y := scoring.ParseScore(v); y > 0 {
		return y
	}
	return 0
}
