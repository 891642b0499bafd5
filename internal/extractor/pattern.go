package extractor

import (
	"regexp"
	"strings"

	"resume-agent-go/internal/constants"
	"resume-agent-go/internal/logger"
	"resume-agent-go/internal/types"

	"github.com/nyaruka/phonenumbers"
)

// 节区定位与字段抽取用到的正则，包级预编译
// RE2不支持前瞻，节区结束用"下一个节区标题或文本末尾"的并联写法表达
var (
	skillsSectionRegexp = regexp.MustCompile(
		`(?is)(?:^|\n)[ \t]*(?:TECHNICAL\s+SKILLS?|CORE\s+COMPETENCIES|SKILLS?)[ \t]*:?[ \t]*\n?(.*?)(?:\n[ \t]*(?:EXPERIENCE|EMPLOYMENT|WORK|EDUCATION|PROFESSIONAL|CERTIFICATIONS)\b|\z)`)

	experienceSectionRegexp = regexp.MustCompile(
		`(?is)(?:^|\n)[ \t]*(?:WORK\s+EXPERIENCE|PROFESSIONAL\s+EXPERIENCE|EMPLOYMENT\s+HISTORY|EXPERIENCE)[ \t]*:?[ \t]*\n?(.*?)(?:\n[ \t]*(?:EDUCATION|SKILLS|CERTIFICATIONS|AWARDS|PUBLICATIONS|REFERENCES)\b|\z)`)

	educationSectionRegexp = regexp.MustCompile(
		`(?is)(?:^|\n)[ \t]*(?:EDUCATION(?:AL)?(?:\s+(?:BACKGROUND|HISTORY))?|ACADEMIC\s+(?:BACKGROUND|QUALIFICATIONS|CREDENTIALS|HISTORY)|QUALIFICATIONS?)[ \t]*:?[ \t]*\n?(.*?)(?:\n[ \t]*(?:EXPERIENCE|EMPLOYMENT|WORK|SKILLS|CERTIFICATIONS|AWARDS|PUBLICATIONS|REFERENCES|PROJECTS)\b|\z)`)

	// 严格邮箱：RFC形状，命中即为高可信，LLM结果不得覆盖
	strictEmailRegexp = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)

	// 电话尝试序列，先具体后宽泛，首个合理命中生效
	phoneRegexps = []*regexp.Regexp{
		regexp.MustCompile(`\(\d{3}\)[ \t]*\d{3,4}[-. ]\d{4}`),
		regexp.MustCompile(`\+\d{1,3}[-. ]?\d{1,4}(?:[-. ]?\d{2,4}){2,3}`),
		regexp.MustCompile(`\b\d{3}[-. ]\d{3,4}[-. ]\d{4}\b`),
		regexp.MustCompile(`\b\d{10,11}\b`),
	}

	nonDigitRegexp  = regexp.MustCompile(`\D`)
	phoneJunkRegexp = regexp.MustCompile(`[^\d+\-() ]`)

	// 姓名候选：2-4个首字母大写的词占满一行
	nameLineRegexp  = regexp.MustCompile(`^[A-Z][a-z]+(?:[ \t]+[A-Z][a-zA-Z'.\-]+){1,3}$`)
	nameLabelRegexp = regexp.MustCompile(`(?im)^[ \t]*(?:Full[ \t]*)?Name[ \t]*[:：][ \t]*([A-Za-z'. \-]{2,50})`)

	honorificRegexp  = regexp.MustCompile(`(?i)^(?:Mr|Ms|Mrs|Dr|Prof|Eng)\.?[ \t]+`)
	credentialRegexp = regexp.MustCompile(`(?i),[ \t]*(?:PhD|MD|MBA|M\.?Sc|B\.?Sc)\.?$`)

	// 公司名尝试序列：标准后缀 > 描述性关键词 > 位置启发式（在代码里做）
	companySuffixRegexp = regexp.MustCompile(
		`(?im)^[ \t]*([A-Z][A-Za-z0-9&,.' ]+(?:Pvt\.?[ \t]*Ltd\.?|Private[ \t]+Limited|Ltd\.?|Limited|Inc\.?|Incorporated|Corp\.?|Corporation|LLC|Company|Co\.)[^\n]*)`)
	companyKeywordRegexp = regexp.MustCompile(
		`(?m)^[ \t]*([A-Z][A-Za-z&,. ]+(?:Technologies|Solutions|Services|Systems|Group|International|Industries|Consulting|Partners|Holdings|Enterprises|Software|Digital|Media|Networks|Labs|Studio|Agency|Bank|Healthcare|Pharma|Retail|Manufacturing)[^\n]*)`)
	titleCaseLineRegexp = regexp.MustCompile(`^[A-Z][A-Za-z]+(?:[ \t]+[A-Z][A-Za-z]+){1,3}$`)

	roleRegexp = regexp.MustCompile(
		`(?m)^[ \t]*([A-Z][A-Za-z ]+(?:Engineer|Manager|Developer|Analyst|Specialist|Executive|Consultant|Director|Officer|Coordinator|Lead|Architect|Technician|Administrator|Designer|Associate|Assistant|Supervisor)[^\n]*)`)

	dateRangeRegexps = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:Jan(?:uary)?|Feb(?:ruary)?|Mar(?:ch)?|Apr(?:il)?|May|Jun(?:e)?|Jul(?:y)?|Aug(?:ust)?|Sep(?:tember)?|Oct(?:ober)?|Nov(?:ember)?|Dec(?:ember)?)[ \t]+\d{4}[ \t]*-[ \t]*(?:(?:Jan(?:uary)?|Feb(?:ruary)?|Mar(?:ch)?|Apr(?:il)?|May|Jun(?:e)?|Jul(?:y)?|Aug(?:ust)?|Sep(?:tember)?|Oct(?:ober)?|Nov(?:ember)?|Dec(?:ember)?)[ \t]+\d{4}|Present|Current)`),
		regexp.MustCompile(`(?i)\d{1,2}/\d{4}[ \t]*-[ \t]*(?:\d{1,2}/\d{4}|Present|Current)`),
		regexp.MustCompile(`(?i)\d{4}[ \t]*-[ \t]*(?:\d{4}|Present|Current)`),
	}
	yearRangeRegexp = regexp.MustCompile(`\d{4}[ \t]*-[ \t]*\d{4}`)

	institutionRegexp = regexp.MustCompile(
		`(?m)([A-Z][A-Za-z ',.&\-]+(?:University|College|Institute|School|Academy)[^\n]*)`)
	degreeRegexp = regexp.MustCompile(
		`(?i)((?:Bachelor|Master|PhD|Ph\.?[ \t]*D\.?|Doctorate|Diploma|Associate|B\.?[ \t]*[ASE]\.?|M\.?[ \t]*[ASE]\.?|B\.?[ \t]*Tech|M\.?[ \t]*Tech)[^\n]+)`)

	skillNumberRegexp   = regexp.MustCompile(`^\d+[.)][ \t]*`)
	skillSplitRegexp    = regexp.MustCompile(`[\n,;]+`)
	bulletCharRegexp    = regexp.MustCompile(`[•●○◦▪▫■□▸▹►▻⦿⦾]`)
	bulletPrefixRegexp  = regexp.MustCompile(`^[ \t]*[•●○◦▪▫■□▸▹►▻⦿⦾\-*][ \t]*`)
	technicalHintRegexp = regexp.MustCompile(`[A-Z]{2,}|[0-9]|\.|/`)
)

// 关键词分类表：先给token一个临时类别，LLM分类是在此之上的精化
var (
	techKeywords = []string{
		"software", "system", "tool", "platform", "framework", "language",
		"python", "java", "sql", "javascript", "c++", "c#", "ruby", "php", "go",
		"aws", "azure", "docker", "kubernetes", "linux", "windows",
		"api", "database", "server", "cloud", "network", "security",
		"machine learning", "ai", "data", "analytics", "crm", "erp",
		"office", "excel", "powerpoint", "word", "adobe", "autocad",
		"testing", "qa", "devops", "agile", "scrum", "git", "ci/cd",
	}
	softKeywords = []string{
		"communication", "leadership", "management", "teamwork", "collaboration",
		"problem solving", "analytical", "critical thinking", "creativity",
		"time management", "organization", "presentation", "negotiation",
		"interpersonal", "customer service", "conflict resolution", "adaptability",
		"decision making", "strategic", "planning", "mentoring", "coaching",
	}
	sectionStopWords = []string{"skills", "experience", "education", "summary", "objective", "profile", "resume", "curriculum vitae"}
)

// PatternResult 模式抽取的完整产出，是其他阶段不得倒退的保底结果
type PatternResult struct {
	Name string
	// Email 严格正则命中的邮箱；StrictEmail为真时LLM结果不得覆盖
	Email       string
	StrictEmail bool
	Phone       string
	Skills      []types.SkillEntry
	Experience  []types.ExperienceEntry
	Education   []types.EducationEntry
}

// PatternExtractor 确定性的正则/规则抽取器
// 不访问网络，对任何输入都不报错，同一输入产出相同结果
type PatternExtractor struct {
	maxSkills int
}

// NewPatternExtractor 创建模式抽取器，maxSkills限制技能token总数
func NewPatternExtractor(maxSkills int) *PatternExtractor {
	if maxSkills <= 0 {
		maxSkills = 50
	}
	return &PatternExtractor{maxSkills: maxSkills}
}

// Extract 对规范化文本做全量模式抽取
// 每个字段按各自的尝试序列取首个合理命中，全部失败时字段留空
func (p *PatternExtractor) Extract(text string) PatternResult {
	result := PatternResult{}
	if strings.TrimSpace(text) == "" {
		return result
	}

	result.Email, result.StrictEmail = p.extractEmail(text)
	result.Phone = p.extractPhone(text)
	result.Name = p.extractName(text)
	result.Skills = p.extractSkills(text)
	result.Experience = p.extractExperience(text)
	result.Education = p.extractEducation(text)

	logger.Debug().
		Int("skills", len(result.Skills)).
		Int("experience", len(result.Experience)).
		Int("education", len(result.Education)).
		Bool("strict_email", result.StrictEmail).
		Msg("模式抽取完成")
	return result
}

func (p *PatternExtractor) extractEmail(text string) (string, bool) {
	if m := strictEmailRegexp.FindString(text); m != "" {
		return m, true
	}
	return "", false
}

func (p *PatternExtractor) extractPhone(text string) string {
	for _, re := range phoneRegexps {
		for _, m := range re.FindAllString(text, 5) {
			digits := nonDigitRegexp.ReplaceAllString(m, "")
			// 位数合理且不是同一数字重复（表格占位符）
			if len(digits) >= 10 && len(digits) <= 15 && !isSameDigit(digits) {
				return StandardizePhone(m)
			}
		}
	}
	return ""
}

// extractName 在文首若干行里找姓名候选，标签行优先于裸姓名行
func (p *PatternExtractor) extractName(text string) string {
	if m := nameLabelRegexp.FindStringSubmatch(text); m != nil {
		if name := CleanName(m[1]); plausibleNameLine(name) {
			return name
		}
	}

	lines := strings.Split(text, "\n")
	limit := 10
	for _, line := range lines {
		if limit == 0 {
			break
		}
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		limit--
		if !nameLineRegexp.MatchString(trimmed) {
			continue
		}
		name := CleanName(trimmed)
		if plausibleNameLine(name) {
			return name
		}
	}
	return ""
}

// plausibleNameLine 排除节区标题和明显非姓名的行
func plausibleNameLine(name string) bool {
	if len(name) < 3 || len(name) > 50 {
		return false
	}
	lower := strings.ToLower(name)
	for _, stop := range sectionStopWords {
		if strings.Contains(lower, stop) {
			return false
		}
	}
	return true
}

// extractSkills 定位技能节区后按分隔符切分，清洗并过滤token
// 类别留空，临时类别由KeywordCategory按需计算，LLM分类是后续阶段的事
func (p *PatternExtractor) extractSkills(text string) []types.SkillEntry {
	m := skillsSectionRegexp.FindStringSubmatch(text)
	if m == nil {
		logger.Debug().Msg("未找到技能节区")
		return nil
	}

	sectionText := bulletCharRegexp.ReplaceAllString(m[1], "\n")
	seen := make(map[string]bool)
	var skills []types.SkillEntry

	for _, raw := range skillSplitRegexp.Split(sectionText, -1) {
		if len(skills) >= p.maxSkills {
			break
		}
		cleaned := bulletPrefixRegexp.ReplaceAllString(strings.TrimSpace(raw), "")
		cleaned = skillNumberRegexp.ReplaceAllString(cleaned, "")
		cleaned = strings.Join(strings.Fields(cleaned), " ")

		if len(cleaned) < 3 || len(cleaned) > 80 || isAllDigits(cleaned) {
			continue
		}
		lower := strings.ToLower(cleaned)
		if seen[lower] || isSectionWord(lower) {
			continue
		}
		seen[lower] = true
		skills = append(skills, types.SkillEntry{Token: cleaned, Source: types.SourcePattern})
	}
	return skills
}

// isSameDigit 整串是同一个数字的重复，如0000000000
// RE2不支持反向引用，用计数代替
func isSameDigit(digits string) bool {
	if len(digits) < 2 {
		return false
	}
	return strings.Count(digits, digits[:1]) == len(digits)
}

func isAllDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

func isSectionWord(lower string) bool {
	for _, stop := range sectionStopWords {
		if lower == stop {
			return true
		}
	}
	return false
}

// KeywordCategory 按关键词表给技能token一个临时类别
// 两表都未命中时按形状猜：含缩写/数字/点/斜杠的偏技术
func KeywordCategory(token string) string {
	lower := strings.ToLower(token)
	for _, kw := range techKeywords {
		if strings.Contains(lower, kw) {
			return constants.CategoryTechnical
		}
	}
	for _, kw := range softKeywords {
		if strings.Contains(lower, kw) {
			return constants.CategorySoft
		}
	}
	if technicalHintRegexp.MatchString(token) {
		return constants.CategoryTechnical
	}
	return constants.CategorySoft
}

// extractExperience 定位经历节区，按公司名切块，每块内提取职位/日期/要点
func (p *PatternExtractor) extractExperience(text string) []types.ExperienceEntry {
	m := experienceSectionRegexp.FindStringSubmatch(text)
	if m == nil {
		logger.Debug().Msg("未找到工作经历节区")
		return nil
	}
	sectionText := m[1]

	starts := companyStarts(sectionText)
	if len(starts) == 0 {
		return nil
	}

	var entries []types.ExperienceEntry
	for i, start := range starts {
		end := len(sectionText)
		if i+1 < len(starts) {
			end = starts[i+1].offset
		}
		chunk := sectionText[start.offset:end]

		title := ""
		if rm := roleRegexp.FindStringSubmatch(chunk); rm != nil {
			title = strings.TrimSpace(rm[1])
		}

		dates := ""
		descFrom := 0
		for _, re := range dateRangeRegexps {
			if loc := re.FindStringIndex(chunk); loc != nil {
				dates = chunk[loc[0]:loc[1]]
				descFrom = loc[1]
				break
			}
		}

		desc := collectBullets(chunk[descFrom:])
		entries = append(entries, types.ExperienceEntry{
			Company: truncateRunes(start.name, 100),
			Title:   truncateRunes(title, 100),
			Dates:   dates,
			RawText: truncateRunes(desc, 400),
		})
	}
	return entries
}

type companyStart struct {
	offset int
	name   string
}

// companyStarts 公司名定位尝试序列：标准后缀 > 描述性关键词 > 位置启发式
func companyStarts(sectionText string) []companyStart {
	for _, re := range []*regexp.Regexp{companySuffixRegexp, companyKeywordRegexp} {
		locs := re.FindAllStringSubmatchIndex(sectionText, -1)
		if len(locs) == 0 {
			continue
		}
		starts := make([]companyStart, 0, len(locs))
		for _, loc := range locs {
			starts = append(starts, companyStart{
				offset: loc[0],
				name:   strings.TrimSpace(sectionText[loc[2]:loc[3]]),
			})
		}
		return starts
	}

	// 位置启发式：2-4个首字母大写词占满一行，且下一非空行是职位或日期
	var starts []companyStart
	offset := 0
	lines := strings.Split(sectionText, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if titleCaseLineRegexp.MatchString(trimmed) && nextLineLooksLikeJob(lines, i+1) {
			starts = append(starts, companyStart{offset: offset, name: trimmed})
		}
		offset += len(line) + 1
	}
	return starts
}

func nextLineLooksLikeJob(lines []string, from int) bool {
	for _, line := range lines[from:] {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if roleRegexp.MatchString(trimmed) {
			return true
		}
		for _, re := range dateRangeRegexps {
			if re.MatchString(trimmed) {
				return true
			}
		}
		return false
	}
	return false
}

// collectBullets 收集前4个要点行；没有要点时退化为取前几句
func collectBullets(chunk string) string {
	if len(chunk) > 600 {
		chunk = chunk[:600]
	}

	var bullets []string
	for _, line := range strings.Split(chunk, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if bulletPrefixRegexp.MatchString(trimmed) {
			content := bulletPrefixRegexp.ReplaceAllString(trimmed, "")
			if content = strings.TrimSpace(content); content != "" {
				bullets = append(bullets, content)
			}
			if len(bullets) == 4 {
				break
			}
		}
	}
	if len(bullets) > 0 {
		return strings.Join(bullets, " ")
	}

	var sentences []string
	for _, s := range strings.FieldsFunc(chunk, func(r rune) bool {
		return r == '.' || r == '!' || r == '?'
	}) {
		if s = strings.TrimSpace(s); s != "" {
			sentences = append(sentences, s)
		}
		if len(sentences) == 3 {
			break
		}
	}
	return strings.Join(sentences, ". ")
}

// extractEducation 定位教育节区，按院校名切块
// 没有节区标题时在文末2000字符里找院校模式
func (p *PatternExtractor) extractEducation(text string) []types.EducationEntry {
	sectionText := ""
	if m := educationSectionRegexp.FindStringSubmatch(text); m != nil {
		sectionText = m[1]
	} else if institutionRegexp.MatchString(text) {
		// 教育信息通常在简历末尾
		if len(text) > 2000 {
			sectionText = text[len(text)-2000:]
		} else {
			sectionText = text
		}
	} else {
		return nil
	}

	locs := institutionRegexp.FindAllStringSubmatchIndex(sectionText, -1)
	var entries []types.EducationEntry
	for i, loc := range locs {
		institution := strings.TrimSpace(sectionText[loc[2]:loc[3]])

		end := loc[0] + 300
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		if end > len(sectionText) {
			end = len(sectionText)
		}
		chunk := sectionText[loc[0]:end]

		degree := ""
		if dm := degreeRegexp.FindStringSubmatch(chunk); dm != nil {
			degree = strings.TrimSpace(dm[1])
		}
		dates := yearRangeRegexp.FindString(chunk)

		entries = append(entries, types.EducationEntry{
			Institution: truncateRunes(institution, 150),
			Degree:      truncateRunes(degree, 150),
			Dates:       dates,
		})
	}
	return entries
}

// CleanName 去掉称谓前缀和学位后缀
func CleanName(name string) string {
	name = strings.TrimSpace(name)
	name = honorificRegexp.ReplaceAllString(name, "")
	name = credentialRegexp.ReplaceAllString(name, "")
	return strings.TrimSpace(name)
}

// StandardizePhone 把电话规整为统一格式
// 能被libphonenumber识别的按其规范格式化，其余按位数分组，位数不足返回空
func StandardizePhone(phone string) string {
	if phone == "" {
		return ""
	}
	cleaned := strings.TrimSpace(phoneJunkRegexp.ReplaceAllString(phone, ""))
	digits := nonDigitRegexp.ReplaceAllString(cleaned, "")
	if len(digits) < 7 {
		return ""
	}

	if num, err := phonenumbers.Parse(cleaned, "US"); err == nil && phonenumbers.IsValidNumber(num) {
		if num.GetCountryCode() == 1 {
			return phonenumbers.Format(num, phonenumbers.NATIONAL)
		}
		return phonenumbers.Format(num, phonenumbers.INTERNATIONAL)
	}

	switch {
	case len(digits) == 10:
		return "(" + digits[:3] + ") " + digits[3:6] + "-" + digits[6:]
	case len(digits) == 11 && strings.HasPrefix(digits, "1"):
		return "+1 (" + digits[1:4] + ") " + digits[4:7] + "-" + digits[7:]
	case strings.HasPrefix(cleaned, "+") && len(digits) >= 10:
		return cleaned
	}
	return cleaned
}

// truncateRunes 按字符数截断，避免截断多字节字符
func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
