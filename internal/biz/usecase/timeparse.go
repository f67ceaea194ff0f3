package usecase

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// timeMatcher returns a normalized label when the line carries its idiom
type timeMatcher func(line string, now time.Time) (string, bool)

var (
	monthDayRe      = regexp.MustCompile(`(\d{1,2})\s*月\s*(\d{1,2})\s*[日号]`)
	monthDayDotRe   = regexp.MustCompile(`(?:^|[^\d.])(\d{1,2})\.(\d{1,2})(?:[^\d.wW万]|$)`)
	nightlyRe       = regexp.MustCompile(`每晚\s*(\d{1,2})\s*[点时]`)
	monthPeriodRe   = regexp.MustCompile(`(\d{1,2})月[上中下]旬`)
	hourMinuteRe    = regexp.MustCompile(`(?:^|\D)(\d{1,2})\s*[:：.点时]\s*(\d{1,2})(?:[^\d.wW万]|$)`)
	halfPastRe      = regexp.MustCompile(`(?:^|\D)(\d{1,2})\s*点半`)
	loneHourRe      = regexp.MustCompile(`(?:^|\D)(\d{1,2})\s*[点时.](?:\D|$)`)
	minutesOnlyRe   = regexp.MustCompile(`(?:^|[^\d点时:：.])(\d{1,2})\s*分(?:[^钟]|$)`)
	timeKeywordList = []string{"生日", "周年", "新衣", "活动"}
)

// TimeExtractor finds the scheduled time of an event in a single line
type TimeExtractor struct {
	now      func() time.Time
	matchers []timeMatcher
}

// NewTimeExtractor creates a time extractor.
// now is used by the minutes-only idiom; nil means time.Now.
func NewTimeExtractor(now func() time.Time) *TimeExtractor {
	if now == nil {
		now = time.Now
	}
	return &TimeExtractor{
		now: now,
		matchers: []timeMatcher{
			matchMonthDay,
			matchNightly,
			matchMonthPeriod,
			matchHourMinute,
			matchHalfPast,
			matchLoneHour,
			matchMinutesOnly,
			matchTimeKeyword,
		},
	}
}

// Extract returns the label of the first idiom found in line
func (e *TimeExtractor) Extract(line string) (string, bool) {
	now := e.now()
	for _, match := range e.matchers {
		if label, ok := match(line, now); ok {
			return label, true
		}
	}
	return "", false
}

func matchMonthDay(line string, _ time.Time) (string, bool) {
	for _, re := range []*regexp.Regexp{monthDayRe, monthDayDotRe} {
		for _, m := range re.FindAllStringSubmatch(line, -1) {
			month, _ := strconv.Atoi(m[1])
			day, _ := strconv.Atoi(m[2])
			if month >= 1 && month <= 12 && day >= 1 && day <= 31 {
				return fmt.Sprintf("%d月%d日", month, day), true
			}
		}
	}
	return "", false
}

func matchNightly(line string, _ time.Time) (string, bool) {
	m := nightlyRe.FindStringSubmatch(line)
	if m == nil {
		return "", false
	}
	hour, _ := strconv.Atoi(m[1])
	if hour > 23 {
		return "", false
	}
	return fmt.Sprintf("每晚 %02d:00", hour), true
}

func matchMonthPeriod(line string, _ time.Time) (string, bool) {
	for _, m := range monthPeriodRe.FindAllStringSubmatch(line, -1) {
		if month, _ := strconv.Atoi(m[1]); month >= 1 && month <= 12 {
			return m[0], true
		}
	}
	return "", false
}

func matchHourMinute(line string, _ time.Time) (string, bool) {
	for _, m := range hourMinuteRe.FindAllStringSubmatch(line, -1) {
		hour, _ := strconv.Atoi(m[1])
		minute, _ := strconv.Atoi(m[2])
		if hour < 24 && minute < 60 {
			return fmt.Sprintf("%02d:%02d", hour, minute), true
		}
	}
	return "", false
}

func matchHalfPast(line string, _ time.Time) (string, bool) {
	for _, m := range halfPastRe.FindAllStringSubmatch(line, -1) {
		if hour, _ := strconv.Atoi(m[1]); hour < 24 {
			return fmt.Sprintf("%02d:30", hour), true
		}
	}
	return "", false
}

func matchLoneHour(line string, _ time.Time) (string, bool) {
	for _, m := range loneHourRe.FindAllStringSubmatch(line, -1) {
		if hour, _ := strconv.Atoi(m[1]); hour < 24 {
			return fmt.Sprintf("%02d:00", hour), true
		}
	}
	return "", false
}

// matchMinutesOnly infers the hour from the clock: a minute already past
// in the current hour refers to the next hour.
func matchMinutesOnly(line string, now time.Time) (string, bool) {
	for _, m := range minutesOnlyRe.FindAllStringSubmatch(line, -1) {
		minute, _ := strconv.Atoi(m[1])
		if minute >= 60 {
			continue
		}
		hour := now.Hour()
		if now.Minute() > minute {
			hour = (hour + 1) % 24
		}
		return fmt.Sprintf("%02d:%02d", hour, minute), true
	}
	return "", false
}

func matchTimeKeyword(line string, _ time.Time) (string, bool) {
	for _, kw := range timeKeywordList {
		if strings.Contains(line, kw) {
			return strings.TrimSpace(line), true
		}
	}
	return "", false
}
