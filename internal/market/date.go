package market

import "time"

// DateLayout 是日线数据在存储与外部接口中使用的日期格式。
const DateLayout = "2006-01-02"

// Day 将时间截断到 UTC 零点；日线数据统一以此作为键。
func Day(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func NextDay(t time.Time) time.Time {
	return Day(t).AddDate(0, 0, 1)
}

func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, err
	}
	return t, nil
}

func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return Day(t).Format(DateLayout)
}
