package helper

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	OneDecimal     = decimal.NewFromInt(1)
	HundredDecimal = decimal.NewFromInt(100)

	moneyPattern = regexp.MustCompile(`^[+-]?\d+(\.\d+)?$`)
)

// TrimDecimal 四舍五入到 2 位小数并格式化
func TrimDecimal(val decimal.Decimal) string {
	return val.StringFixed(2)
}

// Round2 金额落库前统一保留两位小数（四舍五入）
func Round2(val decimal.Decimal) decimal.Decimal {
	return val.Round(2)
}

// ParseMoney 解析金额字符串，兼容 "1.234,56" 与 "1,234.56" 两种写法：
//   - 只有逗号：逗号为小数点
//   - 逗号与点同时出现：靠右的为小数点，另一个为千分位
//
// 无法解析时返回 (0, false)，由调用方决定是否拒绝，本函数不会 panic
func ParseMoney(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "R$")
	s = strings.ReplaceAll(s, " ", "")
	if s == "" {
		return decimal.Zero, false
	}

	comma := strings.LastIndex(s, ",")
	dot := strings.LastIndex(s, ".")
	switch {
	case comma >= 0 && dot < 0:
		s = strings.ReplaceAll(s, ",", ".")
	case comma >= 0 && dot >= 0:
		if comma > dot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.ReplaceAll(s, ",", ".")
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	}

	if !moneyPattern.MatchString(s) {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// SplitDebit 扣款拆分：先扣余额，再扣赠金
// balance+bonus 不足时 ok=false
func SplitDebit(balance, bonus, total decimal.Decimal) (fromBalance, fromBonus decimal.Decimal, ok bool) {
	if total.IsNegative() || balance.Add(bonus).LessThan(total) {
		return decimal.Zero, decimal.Zero, false
	}
	fromBalance = decimal.Min(decimal.Max(balance, decimal.Zero), total)
	fromBonus = total.Sub(fromBalance)
	return fromBalance, fromBonus, true
}
