package scoring

import (
	"regexp"
	"strings"
	"unicode"

	"ats-engine/internal/types"
)

var (
	sentenceSplit = regexp.MustCompile(`[.!?。！？\n]+`)
	shoutPunct    = regexp.MustCompile(`[!?]{2,}`)
	bulletLine    = regexp.MustCompile(`(?m)^\s*(?:[-*•·▪●]|\d+[.)])\s+`)
	actionVerbs   = regexp.MustCompile(`(?i)\b(?:built|designed|developed|led|managed|implemented|created|launched|delivered|migrated|automated|architected|owned|mentored|shipped|improved|reduced|increased)\b`)
	fillerWords   = regexp.MustCompile(`(?i)\b(?:very|really|basically|actually|stuff|things|etc|various|hardworking|team player)\b`)
)

// scoreLanguageClarity 语法(≤40) + 表达清晰度(≤60)，空文本为0
func scoreLanguageClarity(text string) (float64, types.LanguageClarityDetail) {
	if strings.TrimSpace(text) == "" {
		return 0, types.LanguageClarityDetail{}
	}
	sentences := splitSentences(text)
	grammar := grammarScore(text, sentences)
	clarity := clarityScore(text, sentences)
	d := types.LanguageClarityDetail{Grammar: round1(grammar), Clarity: round1(clarity)}
	return round1(clamp(grammar+clarity, 0, 100)), d
}

func splitSentences(text string) []string {
	var out []string
	for _, s := range sentenceSplit.Split(bulletLine.ReplaceAllString(text, ""), -1) {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func grammarScore(text string, sentences []string) float64 {
	score := 40.0

	letterStarts, lowerStarts := 0, 0
	for _, s := range sentences {
		r := []rune(s)[0]
		if !unicode.IsLetter(r) || !(unicode.IsUpper(r) || unicode.IsLower(r)) {
			continue
		}
		letterStarts++
		if unicode.IsLower(r) {
			lowerStarts++
		}
	}
	if letterStarts > 0 {
		score -= 12 * float64(lowerStarts) / float64(letterStarts)
	}

	words := strings.Fields(strings.ToLower(text))
	repeats := 0
	for i := 1; i < len(words); i++ {
		if words[i] == words[i-1] && unicode.IsLetter([]rune(words[i])[0]) {
			repeats++
		}
	}
	score -= clamp(3*float64(repeats), 0, 12)
	score -= clamp(2*float64(len(shoutPunct.FindAllStringIndex(text, -1))), 0, 8)

	caps, long := 0, 0
	for _, w := range strings.Fields(text) {
		letters := strings.TrimFunc(w, func(r rune) bool { return !unicode.IsLetter(r) })
		if len(letters) < 4 {
			continue
		}
		long++
		if strings.ToUpper(letters) == letters && strings.ToLower(letters) != letters {
			caps++
		}
	}
	if long > 0 && float64(caps)/float64(long) > 0.15 {
		score -= 8
	}
	return clamp(score, 0, 40)
}

func clarityScore(text string, sentences []string) float64 {
	score := 10.0

	if len(sentences) > 0 {
		words := 0
		for _, s := range sentences {
			words += len(strings.Fields(s))
		}
		avg := float64(words) / float64(len(sentences))
		switch {
		case avg >= 8 && avg <= 25:
			score += 25
		case avg < 8:
			score += 25 * avg / 8
		default:
			score += clamp(25-(avg-25), 5, 25)
		}
	}
	if bulletLine.MatchString(text) {
		score += 10
	}
	score += clamp(3*float64(len(actionVerbs.FindAllStringIndex(text, -1))), 0, 15)
	score -= clamp(2*float64(len(fillerWords.FindAllStringIndex(text, -1))), 0, 10)

	longLines := 0
	for _, line := range strings.Split(text, "\n") {
		if len([]rune(line)) > 200 {
			longLines++
		}
	}
	score -= clamp(2*float64(longLines), 0, 10)
	return clamp(score, 0, 60)
}

var sectionHeaders = []struct {
	pattern *regexp.Regexp
	points  float64
}{
	{regexp.MustCompile(`(?i)experience|employment|work history|工作经[历验]`), 10},
	{regexp.MustCompile(`(?i)education|academic|教育`), 10},
	{regexp.MustCompile(`(?i)skills|technologies|技能`), 10},
	{regexp.MustCompile(`(?i)summary|profile|objective|about me|简介|自我评价`), 5},
	{regexp.MustCompile(`(?i)projects?|项目`), 5},
	{regexp.MustCompile(`(?i)certifications?|certificates?|licenses|证书`), 5},
}

const maxHeaderLineLen = 40

// scoreATSFormat 章节(≤40) + 可读性(≤30) + 排版(≤30)，空文本为0
func scoreATSFormat(text string) (float64, types.ATSFormatDetail) {
	if strings.TrimSpace(text) == "" {
		return 0, types.ATSFormatDetail{}
	}
	sections := sectionScore(text)
	readability := readabilityScore(text)
	layout := layoutScore(text)
	d := types.ATSFormatDetail{
		Sections:    round1(sections),
		Readability: round1(readability),
		Layout:      round1(layout),
	}
	return round1(clamp(sections+readability+layout, 0, 100)), d
}

func sectionScore(text string) float64 {
	var short []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && len([]rune(line)) <= maxHeaderLineLen {
			short = append(short, line)
		}
	}
	var score float64
	for _, h := range sectionHeaders {
		for _, line := range short {
			if h.pattern.MatchString(line) {
				score += h.points
				break
			}
		}
	}
	return clamp(score, 0, 40)
}

func readabilityScore(text string) float64 {
	var score float64

	lines, chars := 0, 0
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines++
			chars += len([]rune(line))
		}
	}
	if lines > 0 {
		if avg := float64(chars) / float64(lines); avg >= 20 && avg <= 120 {
			score += 12
		} else {
			score += 6
		}
	}

	letters, visible := 0, 0
	for _, r := range text {
		if unicode.IsSpace(r) {
			continue
		}
		visible++
		if unicode.IsLetter(r) {
			letters++
		}
	}
	if visible > 0 {
		switch ratio := float64(letters) / float64(visible); {
		case ratio >= 0.6:
			score += 10
		case ratio >= 0.4:
			score += 5
		}
	}

	switch words := len(strings.Fields(text)); {
	case words >= 150 && words <= 1200:
		score += 8
	case words >= 50 && words <= 2000:
		score += 4
	default:
		score += 1
	}
	return clamp(score, 0, 30)
}

func layoutScore(text string) float64 {
	score := 30.0
	score -= clamp(3*float64(strings.Count(text, "\uFFFD")), 0, 12)
	if strings.Contains(text, "Ã") || strings.Contains(text, "â€") {
		score -= 10
	}

	control, total := 0, 0
	for _, r := range text {
		total++
		if unicode.IsControl(r) && r != '\n' && r != '\t' && r != '\r' {
			control++
		}
	}
	if total > 0 && control > 0 {
		score -= 6
	}

	tableLines := 0
	for _, line := range strings.Split(text, "\n") {
		if strings.Count(line, "|") >= 2 {
			tableLines++
		}
	}
	if tableLines > 3 || strings.Count(text, "\t") > 10 {
		score -= 6
	}

	runs := 0
	for _, w := range strings.Fields(text) {
		if len([]rune(w)) > 40 {
			runs++
		}
	}
	score -= clamp(2*float64(runs), 0, 6)
	return clamp(score, 0, 30)
}
