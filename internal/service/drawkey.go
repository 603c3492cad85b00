package service

import (
	"regexp"
	"strings"
	"time"

	"lotto-server/common/helper"
)

// FederalLottery 联邦彩（Federal）哨兵键：同一日期时段下跨所有彩种结算
const FederalLottery = "FEDERAL"

var (
	hourPattern = regexp.MustCompile(`\d{1,2}`)
	brDate      = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{4})`)
	isoDate     = regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})`)
)

// DrawKey 规范化后的开奖键
type DrawKey struct {
	Date    string // YYYY-MM-DD
	Hour    string // 两位小时，无法识别时为空
	Lottery string // 规范化彩种键；联邦彩为 FEDERAL
	Raw     string // 原始彩种名（兜底匹配用）
}

// NormalizeDrawKey 将注单/开奖结果上松散的日期、时段、彩种字符串规范化
func NormalizeDrawKey(lottery, timeSlotCode, drawDate string) DrawKey {
	return DrawKey{
		Date:    NormalizeDrawDate(drawDate),
		Hour:    NormalizeHour(timeSlotCode),
		Lottery: NormalizeLottery(lottery),
		Raw:     strings.ToUpper(strings.TrimSpace(lottery)),
	}
}

// NormalizeDrawDate 支持 YYYY-MM-DD（可带时间后缀）与 DD/MM/YYYY；其余原样返回（去空白）
func NormalizeDrawDate(s string) string {
	s = strings.TrimSpace(s)
	if m := isoDate.FindStringSubmatch(s); m != nil {
		return m[1] + "-" + helper.PadLeft(m[2], 2, '0') + "-" + helper.PadLeft(m[3], 2, '0')
	}
	if m := brDate.FindStringSubmatch(s); m != nil {
		return m[3] + "-" + helper.PadLeft(m[2], 2, '0') + "-" + helper.PadLeft(m[1], 2, '0')
	}
	return s
}

// NormalizeHour 取时段编码中第一段 1~2 位数字并左补零，如 "PT 9h" → "09"
func NormalizeHour(slot string) string {
	m := hourPattern.FindString(slot)
	if m == "" {
		return ""
	}
	return helper.PadLeft(m, 2, '0')
}

// NormalizeLottery 彩种键：大写，去掉 FEDERAL / RIO 与前缀 LT，再去掉非字母数字；
// 原名包含 FEDERAL 时直接返回哨兵 FEDERAL
func NormalizeLottery(name string) string {
	up := strings.ToUpper(strings.TrimSpace(name))
	if strings.Contains(up, FederalLottery) {
		return FederalLottery
	}
	up = strings.ReplaceAll(up, "RIO", "")
	up = strings.TrimSpace(up)
	up = strings.TrimPrefix(up, "LT")
	return helper.AlnumOnly(up)
}

// IsFederal 是否为联邦彩
func (k DrawKey) IsFederal() bool { return k.Lottery == FederalLottery }

// Matches 判断结果键 r 是否覆盖注单键 k：日期、小时相等，且彩种匹配
// 彩种匹配：双方均为 FEDERAL；或双方都不是 FEDERAL 且规范化键互为子串；或原始名称互为子串（兜底）
// 空键不参与子串匹配
func (k DrawKey) Matches(r DrawKey) bool {
	if k.Date == "" || k.Date != r.Date || k.Hour != r.Hour {
		return false
	}
	if k.IsFederal() || r.IsFederal() {
		return k.IsFederal() && r.IsFederal()
	}
	return containsEither(k.Lottery, r.Lottery) || containsEither(k.Raw, r.Raw)
}

func containsEither(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}

// ValidDrawDate 校验规范化后的日期
func ValidDrawDate(date string) bool {
	_, err := time.Parse(time.DateOnly, date)
	return err == nil
}
