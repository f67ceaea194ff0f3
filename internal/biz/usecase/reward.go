package usecase

import (
	"math"
	"regexp"
	"strconv"

	"github.com/DevRickLin/reward-relay/internal/biz/domain"
)

const (
	rewardUnits = `(?:神金|金瓜子|金|钻石|钻|电池|元|块|米)`
	levelPrefix = `(?:(\d{1,3})\s*级(?:灯牌|粉丝牌|牌子|牌)?[^\d\n]{0,6}?)?`
	giveVerb    = `(?:发|掉落)?`
)

// rewardPattern is one strong-context amount form.
// Group 1 is always the optional level, group 2 the amount.
type rewardPattern struct {
	name  string
	re    *regexp.Regexp
	scale float64
}

var strongRewardPatterns = []rewardPattern{
	{
		name:  "ten_thousand",
		re:    regexp.MustCompile(levelPrefix + giveVerb + `(\d+(?:\.\d+)?)\s*[wW万]\+?`),
		scale: 10000,
	},
	{
		name:  "unit_first",
		re:    regexp.MustCompile(levelPrefix + giveVerb + rewardUnits + `\s*(\d{3,5})`),
		scale: 1,
	},
	{
		name:  "unit_last",
		re:    regexp.MustCompile(levelPrefix + giveVerb + `(\d{3,5})\s*` + rewardUnits),
		scale: 1,
	},
}

var (
	levelPhraseRe = regexp.MustCompile(`(\d{1,3})\s*级(?:灯牌|粉丝牌|牌子|牌)?`)
	digitRunRe    = regexp.MustCompile(`\d+`)
	levelSuffixRe = regexp.MustCompile(`^\s*级`)
)

// RewardExtractor finds reward amounts and their level conditions
type RewardExtractor struct{}

// NewRewardExtractor creates a new reward extractor
func NewRewardExtractor() *RewardExtractor {
	return &RewardExtractor{}
}

// Extract scans all lines of one message.
// Weak matches are only considered when no line yields a strong match.
// Each amount is reported once; the first condition seen wins.
func (e *RewardExtractor) Extract(lines []string) []domain.Reward {
	seen := make(map[float64]bool)
	var rewards []domain.Reward

	add := func(amount float64, condition string) {
		if math.IsNaN(amount) || math.IsInf(amount, 0) || amount <= 0 {
			return
		}
		if seen[amount] {
			return
		}
		seen[amount] = true
		rewards = append(rewards, domain.Reward{Amount: amount, Condition: condition})
	}

	for _, line := range lines {
		for _, p := range strongRewardPatterns {
			for _, m := range p.re.FindAllStringSubmatchIndex(line, -1) {
				start, end := m[4], m[5]
				if !isolatedNumber(line, start, end) {
					continue
				}
				value, err := strconv.ParseFloat(line[start:end], 64)
				if err != nil {
					continue
				}
				amount := value * p.scale
				if p.scale > 1 {
					amount = math.Round(amount)
				}
				add(amount, conditionFrom(line, m[2], m[3]))
			}
		}
	}

	if len(rewards) > 0 {
		return rewards
	}

	for _, line := range lines {
		lm := levelPhraseRe.FindStringSubmatchIndex(line)
		if lm == nil {
			continue
		}
		condition := conditionFrom(line, lm[2], lm[3])

		for _, span := range digitRunRe.FindAllStringIndex(line, -1) {
			start, end := span[0], span[1]
			if start == lm[2] {
				continue
			}
			if n := end - start; n < 3 || n > 5 {
				continue
			}
			if levelSuffixRe.MatchString(line[end:]) {
				continue
			}
			if (start > 0 && line[start-1] == '.') || (end < len(line) && line[end] == '.') {
				continue
			}
			value, err := strconv.ParseFloat(line[start:end], 64)
			if err != nil {
				continue
			}
			add(value, condition)
		}
	}

	return rewards
}

func conditionFrom(line string, start, end int) string {
	if start < 0 {
		return domain.NoRestriction
	}
	level, err := strconv.Atoi(line[start:end])
	if err != nil {
		return domain.NoRestriction
	}
	return domain.LevelCondition(level)
}

// isolatedNumber checks the span is not glued to a longer digit run
func isolatedNumber(s string, start, end int) bool {
	if start > 0 && isDigit(s[start-1]) {
		return false
	}
	if end < len(s) && isDigit(s[end]) {
		return false
	}
	return true
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
