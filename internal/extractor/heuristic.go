package extractor

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"ats-engine/internal/knowledge"
	"ats-engine/internal/types"
	"ats-engine/pkg/utils"
)

type section string

const (
	secNone           section = ""
	secExperience     section = "experience"
	secEducation      section = "education"
	secSkills         section = "skills"
	secProjects       section = "projects"
	secCertifications section = "certifications"
	secCourses        section = "courses"
	secSummary        section = "summary"
)

var sectionHeaders = map[string]section{
	"experience":              secExperience,
	"work experience":         secExperience,
	"professional experience": secExperience,
	"employment history":      secExperience,
	"work history":            secExperience,
	"工作经历":                    secExperience,
	"工作经验":                    secExperience,
	"实习经历":                    secExperience,
	"education":               secEducation,
	"教育背景":                    secEducation,
	"教育经历":                    secEducation,
	"skills":                  secSkills,
	"technical skills":        secSkills,
	"core skills":             secSkills,
	"专业技能":                    secSkills,
	"技能":                      secSkills,
	"projects":                secProjects,
	"personal projects":       secProjects,
	"项目经历":                    secProjects,
	"项目经验":                    secProjects,
	"certifications":          secCertifications,
	"certificates":            secCertifications,
	"证书":                      secCertifications,
	"courses":                 secCourses,
	"coursework":              secCourses,
	"summary":                 secSummary,
	"profile":                 secSummary,
	"about":                   secSummary,
	"about me":                secSummary,
	"个人简介":                    secSummary,
}

const (
	dateToken = `(\d{4}[-/.年]\d{1,2}月?|\d{1,2}/\d{4}|[A-Za-z]{3,9}\.?\s+\d{4}|\d{4})`
	endToken  = `(\d{4}[-/.年]\d{1,2}月?|\d{1,2}/\d{4}|[A-Za-z]{3,9}\.?\s+\d{4}|\d{4}|present|current|now|至今|现在)`
)

var (
	emailPattern    = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	phonePattern    = regexp.MustCompile(`\+?\d[\d \-().]{7,}\d`)
	linkedinPattern = regexp.MustCompile(`(?i)(?:https?://)?(?:[a-z]{2,3}\.)?linkedin\.com/in/[A-Za-z0-9_\-%]+/?`)
	rangePattern    = regexp.MustCompile(`(?i)` + dateToken + `\s*(?:-|–|—|~|to|至)\s*` + endToken)
	yearsPattern    = regexp.MustCompile(`(?i)(\d{1,2}(?:\.\d)?)\s*\+?\s*(?:years?|yrs?|年)`)
	bulletPattern   = regexp.MustCompile(`^\s*(?:[-*•·▪●]|\d+[.)])\s*`)
	gradYearPattern = regexp.MustCompile(`\b(?:19|20)\d{2}\b`)
	listSplit       = regexp.MustCompile(`[,;|/•、，；]`)
	rolePartSplit   = regexp.MustCompile(`\s+(?:at|@)\s+|\s*[,|·]\s*|\s+[-–—]\s+`)

	degreeKeywords = []string{
		"phd", "ph.d", "doctor", "master", "msc", "m.s.", "mba", "bachelor", "bsc", "b.s.", "b.a.", "b.eng",
		"associate", "high school", "博士", "硕士", "本科", "学士", "大专", "高中",
	}
)

// HeuristicExtractor 不依赖模型的抽取器：按章节切分文本，用正则和知识库识别各字段
type HeuristicExtractor struct {
	kb            *knowledge.Base
	maxInputChars int
	now           func() time.Time
}

// NewHeuristicExtractor 创建启发式抽取器
func NewHeuristicExtractor(kb *knowledge.Base, maxInputChars int, now func() time.Time) *HeuristicExtractor {
	if maxInputChars <= 0 {
		maxInputChars = DefaultMaxInputChars
	}
	if now == nil {
		now = time.Now
	}
	return &HeuristicExtractor{kb: kb, maxInputChars: maxInputChars, now: now}
}

// Extract 实现 Extractor
func (h *HeuristicExtractor) Extract(ctx context.Context, resumeText string) (*types.ExtractedFeatures, error) {
	text, err := requireText(resumeText)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	text = Truncate(text, h.maxInputChars)

	f := types.DefaultFeatures(text)
	f.Source = types.SourceHeuristic
	f.Contact = extractContact(text)

	sections := splitSections(text)
	f.StructuredExperience = parseExperience(sections[secExperience])
	f.Education = parseEducation(sections[secEducation], text)
	f.Projects = h.parseProjects(sections[secProjects])
	f.Certifications = listItems(sections[secCertifications])
	f.Courses = listItems(sections[secCourses])
	f.Summary = strings.Join(sections[secSummary], " ")

	if lines, ok := sections[secSkills]; ok && len(lines) > 0 {
		f.Skills = listItems(lines)
		f.Skills = append(f.Skills, h.kb.MentionedSkills(strings.Join(lines, "\n"))...)
	} else {
		f.Skills = h.kb.MentionedSkills(text)
	}

	f = finalize(f, h.kb, text, h.now())
	if f.TotalExperienceYears == 0 {
		f.TotalExperienceYears = statedYears(text)
	}
	return f, nil
}

func extractContact(text string) types.Contact {
	c := types.Contact{
		Email:    emailPattern.FindString(text),
		LinkedIn: linkedinPattern.FindString(text),
	}
	for _, m := range phonePattern.FindAllString(text, -1) {
		digits := 0
		for _, r := range m {
			if r >= '0' && r <= '9' {
				digits++
			}
		}
		// 排除 2019-2021 这类日期区间
		if digits >= 8 && !rangePattern.MatchString(m) {
			c.Phone = strings.TrimSpace(m)
			break
		}
	}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if len(strings.Fields(line)) <= 4 && !strings.ContainsAny(line, "@0123456789:/") && headerOf(line) == secNone {
			c.Name = line
		}
		break
	}
	return c
}

func headerOf(line string) section {
	key := strings.ToLower(strings.TrimSpace(line))
	key = strings.TrimRight(key, ":：")
	return sectionHeaders[strings.TrimSpace(key)]
}

// splitSections 按章节标题把文本行分组，标题之前的内容不归入任何章节
func splitSections(text string) map[section][]string {
	out := make(map[section][]string)
	current := secNone
	for _, line := range strings.Split(text, "\n") {
		if s := headerOf(line); s != secNone {
			current = s
			if _, ok := out[s]; !ok {
				out[s] = []string{}
			}
			continue
		}
		if current == secNone {
			continue
		}
		if line = strings.TrimSpace(line); line != "" {
			out[current] = append(out[current], line)
		}
	}
	return out
}

// parseExperience 以含日期区间的行开启一段经历，后续行作为描述
func parseExperience(lines []string) []types.Experience {
	exps := []types.Experience{}
	var cur *types.Experience
	var desc []string
	flush := func() {
		if cur != nil {
			cur.Description = strings.Join(desc, " ")
			exps = append(exps, *cur)
		}
		cur, desc = nil, nil
	}

	var pendingTitle string
	for _, line := range lines {
		m := rangePattern.FindStringSubmatchIndex(line)
		if m == nil {
			if cur == nil {
				pendingTitle = line
			} else {
				desc = append(desc, bulletPattern.ReplaceAllString(line, ""))
			}
			continue
		}
		flush()
		start := line[m[2]:m[3]]
		end := line[m[4]:m[5]]
		head := strings.TrimSpace(line[:m[0]] + " " + line[m[1]:])
		head = strings.Trim(head, " ,|()-–—")
		if head == "" {
			head = pendingTitle
		}
		pendingTitle = ""
		role, company := splitRoleCompany(head)
		cur = &types.Experience{
			Role:      role,
			Company:   company,
			Start:     start,
			End:       end,
			IsCurrent: utils.IsPresent(end),
		}
	}
	flush()
	return exps
}

func splitRoleCompany(head string) (string, string) {
	parts := rolePartSplit.Split(head, 2)
	if len(parts) == 2 {
		return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
	}
	return strings.TrimSpace(head), ""
}

// parseEducation 在教育章节中识别学历；没有教育章节时扫描全文中带学历关键词的行
func parseEducation(lines []string, text string) []types.Education {
	if len(lines) == 0 {
		lines = strings.Split(text, "\n")
	}
	edu := []types.Education{}
	for _, line := range lines {
		lower := strings.ToLower(line)
		for _, kw := range degreeKeywords {
			if !strings.Contains(lower, kw) {
				continue
			}
			e := types.Education{Degree: strings.TrimSpace(line)}
			if y := gradYearPattern.FindAllString(line, -1); len(y) > 0 {
				e.GraduationYear = y[len(y)-1]
			}
			edu = append(edu, e)
			break
		}
	}
	return edu
}

func (h *HeuristicExtractor) parseProjects(lines []string) []types.Project {
	projects := []types.Project{}
	for _, line := range lines {
		if bulletPattern.MatchString(line) && len(projects) > 0 {
			p := &projects[len(projects)-1]
			p.Description = strings.TrimSpace(p.Description + " " + bulletPattern.ReplaceAllString(line, ""))
			continue
		}
		name, desc, _ := strings.Cut(line, ":")
		projects = append(projects, types.Project{
			Name:        strings.TrimSpace(name),
			Description: strings.TrimSpace(desc),
		})
	}
	for i := range projects {
		projects[i].Technologies = h.kb.MentionedSkills(projects[i].Name + "\n" + projects[i].Description)
	}
	return projects
}

func listItems(lines []string) []string {
	var items []string
	for _, line := range lines {
		line = bulletPattern.ReplaceAllString(line, "")
		if _, rest, ok := strings.Cut(line, ":"); ok {
			line = rest
		}
		for _, it := range listSplit.Split(line, -1) {
			it = strings.TrimSpace(it)
			if it != "" && len([]rune(it)) <= 40 {
				items = append(items, it)
			}
		}
	}
	return utils.DedupeFold(items)
}

// statedYears 取文本中明确写出的最大经验年限，如 “7+ years”
func statedYears(text string) float64 {
	best := 0.0
	for _, m := range yearsPattern.FindAllStringSubmatch(text, -1) {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil && v > best && v <= 50 {
			best = v
		}
	}
	return best
}
