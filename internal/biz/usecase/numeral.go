package usecase

import (
	"regexp"
	"strconv"
)

var numeralRunRe = regexp.MustCompile(`[零〇一二两三四五六七八九十百千万亿]+`)

var numeralDigits = map[rune]int64{
	'零': 0, '〇': 0,
	'一': 1, '二': 2, '两': 2, '三': 3, '四': 4,
	'五': 5, '六': 6, '七': 7, '八': 8, '九': 9,
}

var numeralMagnitudes = map[rune]int64{
	'十': 10, '百': 100, '千': 1000,
	'万': 10000, '亿': 100000000,
}

// NormalizeNumerals replaces every run of Chinese numerals with its decimal value.
// Runs are converted independently. A single magnitude character other than 十
// is left untouched, so "3万" and "百" survive.
func NormalizeNumerals(text string) string {
	return numeralRunRe.ReplaceAllStringFunc(text, func(run string) string {
		runes := []rune(run)
		if len(runes) == 1 {
			if _, isDigit := numeralDigits[runes[0]]; !isDigit && runes[0] != '十' {
				return run
			}
		}
		return strconv.FormatInt(numeralValue(runes), 10)
	})
}

func numeralValue(run []rune) int64 {
	var total, section, digit int64
	hasDigit := false

	for _, r := range run {
		if d, ok := numeralDigits[r]; ok {
			digit = d
			hasDigit = true
			continue
		}

		mag := numeralMagnitudes[r]
		switch {
		case mag < 10000:
			if !hasDigit && mag == 10 {
				digit = 1
			}
			section += digit * mag
		case mag == 10000:
			chunk := section + digit
			if chunk == 0 {
				chunk = 1
			}
			total += chunk * mag
			section = 0
		default:
			chunk := total + section + digit
			if chunk == 0 {
				chunk = 1
			}
			total = chunk * mag
			section = 0
		}
		digit = 0
		hasDigit = false
	}

	return total + section + digit
}
