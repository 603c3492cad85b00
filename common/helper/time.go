package helper

import (
	"time"
)

// Clock 时区感知的时间源，业务代码通过注入 Clock 获取当前时间，便于测试
type Clock interface {
	Now() time.Time
}

// LocalClock 固定时区的系统时钟
type LocalClock struct {
	Loc *time.Location
}

func (c LocalClock) Now() time.Time {
	if c.Loc == nil {
		return time.Now()
	}
	return time.Now().In(c.Loc)
}

// FixedClock 测试用固定时钟
type FixedClock struct {
	T time.Time
}

func (c FixedClock) Now() time.Time { return c.T }

// Today 返回时钟所在时区的日期 YYYY-MM-DD
func Today(c Clock) string {
	return c.Now().Format(time.DateOnly)
}

// NowMillis 毫秒时间戳
func NowMillis(c Clock) int64 {
	return c.Now().UnixMilli()
}

// FormatTimestampToYMDHMS 将毫秒时间戳格式化为 yyyy-MM-dd HH:mm:ss
func FormatTimestampToYMDHMS(ms int64, loc *time.Location) string {
	if ms <= 0 {
		return ""
	}
	if loc == nil {
		loc = time.Local
	}
	return time.UnixMilli(ms).In(loc).Format(time.DateTime)
}
