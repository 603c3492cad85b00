package service

import (
	"sort"
	"strconv"
	"strings"
	"unicode"

	"lotto-server/common/helper"

	"github.com/shopspring/decimal"
)

// 玩法关键字
const (
	ModMilhar      = "MILHAR"
	ModCentena     = "CENTENA"
	ModDezena      = "DEZENA"
	ModGrupo       = "GRUPO"
	ModDuqueDezena = "DUQUE DEZENA"
	ModTernoDezena = "TERNO DEZENA"
	ModDuqueGrupo  = "DUQUE GRUPO"
	ModTernoGrupo  = "TERNO GRUPO"
)

// extendedTierFactor 1~5 名档位赔率折算系数（CENTENA 400 → 200）
var extendedTierFactor = decimal.RequireFromString("0.5")

// OddsTable 玩法关键字 → 赔率倍数
type OddsTable map[string]decimal.Decimal

// DefaultOdds 默认赔率表
func DefaultOdds() OddsTable {
	return OddsTable{
		ModMilhar:      decimal.NewFromInt(4000),
		ModCentena:     decimal.NewFromInt(400),
		ModDezena:      decimal.NewFromInt(60),
		ModGrupo:       decimal.NewFromInt(18),
		ModDuqueDezena: decimal.NewFromInt(300),
		ModTernoDezena: decimal.NewFromInt(3000),
		ModDuqueGrupo:  decimal.NewFromInt(18),
		ModTernoGrupo:  decimal.NewFromInt(150),
	}
}

// WithOverrides 以配置覆盖默认赔率（键按玩法写法规范化）
func (t OddsTable) WithOverrides(over map[string]int64) OddsTable {
	out := make(OddsTable, len(t)+len(over))
	for k, v := range t {
		out[k] = v
	}
	for k, v := range over {
		out[NormalizeModality(k)] = decimal.NewFromInt(v)
	}
	return out
}

// 玩法写法中的连接词，如 "DUQUE DE GRUPO"
var modalityConnectives = map[string]bool{"DE": true, "DA": true, "DO": true, "DOS": true, "DAS": true, "E": true}

// NormalizeModality 大写，非字母视为分隔，去掉连接词后以单个空格拼接
func NormalizeModality(modality string) string {
	words := strings.FieldsFunc(strings.ToUpper(modality), func(r rune) bool { return !unicode.IsLetter(r) })
	out := words[:0]
	for _, w := range words {
		if !modalityConnectives[w] {
			out = append(out, w)
		}
	}
	return strings.Join(out, " ")
}

// Lookup 最长关键字匹配（规范化后的子串匹配），同长度按字典序取第一个
// 未知玩法返回空键与 0 倍
func (t OddsTable) Lookup(modality string) (string, decimal.Decimal) {
	up := NormalizeModality(modality)
	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	for _, k := range keys {
		if strings.Contains(up, k) {
			return k, t[k]
		}
	}
	return "", decimal.Zero
}

// LinePayout 单行计奖明细
type LinePayout struct {
	Index      int    `json:"index"`
	Modality   string `json:"modality"`
	Key        string `json:"key"`
	Tier       Tier   `json:"tier"`
	Multiplier string `json:"multiplier"`
	UnitStake  string `json:"unit_stake"`
	Hits       int    `json:"hits"`
	Scored     bool   `json:"scored"` // 该玩法是否已实现判奖
	Prize      string `json:"prize"`
}

// Payout 整张注单计奖结果
type Payout struct {
	Lines []LinePayout
	Prize decimal.Decimal // 已保留两位小数
}

// Win 是否中奖
func (p Payout) Win() bool { return p.Prize.IsPositive() }

// ComputePayout 计算注单奖金：Σ 单注额 × 倍数 × 命中数，最后统一保留两位小数
// 只对头奖号码判奖，且只实现 MILHAR / CENTENA / GRUPO；
// 其它玩法（DEZENA、DUQUE、TERNO）有赔率但命中数恒为 0
func ComputePayout(lines []WagerLine, total decimal.Decimal, numbers []string, odds OddsTable) Payout {
	first := ""
	if len(numbers) > 0 {
		if d := helper.DigitsOnly(numbers[0]); d != "" {
			first = helper.LastN(helper.PadLeft(d, 4, '0'), 4)
		}
	}

	sum := decimal.Zero
	out := Payout{Lines: make([]LinePayout, 0, len(lines))}
	for i, line := range lines {
		key, mult := odds.Lookup(line.Modality)
		tier := line.Placement.Tier()
		if tier == TierExtended {
			mult = mult.Mul(extendedTierFactor)
		}
		unit := unitStake(line, total, len(lines))
		hits, scored := countHits(key, line.Guesses, first)

		prize := unit.Mul(mult).Mul(decimal.NewFromInt(int64(hits)))
		sum = sum.Add(prize)
		out.Lines = append(out.Lines, LinePayout{
			Index:      i,
			Modality:   line.Modality,
			Key:        key,
			Tier:       tier,
			Multiplier: mult.String(),
			UnitStake:  unit.StringFixed(2),
			Hits:       hits,
			Scored:     scored,
			Prize:      prize.StringFixed(2),
		})
	}
	out.Prize = helper.Round2(sum)
	return out
}

// unitStake 单注额：行内明确金额优先（flat 模式按号码数平分），否则注单总额按行数平分
func unitStake(line WagerLine, total decimal.Decimal, lineCount int) decimal.Decimal {
	if line.Stake.Valid {
		if line.StakeMode == StakeFlat && len(line.Guesses) > 1 {
			return line.Stake.Decimal.Div(decimal.NewFromInt(int64(len(line.Guesses))))
		}
		return line.Stake.Decimal
	}
	if lineCount <= 0 {
		return decimal.Zero
	}
	return total.Div(decimal.NewFromInt(int64(lineCount)))
}

func countHits(key string, guesses []string, first string) (int, bool) {
	var match func(g string) bool
	switch key {
	case ModMilhar:
		match = func(g string) bool { return helper.LastN(helper.PadLeft(g, 4, '0'), 4) == first }
	case ModCentena:
		want := helper.LastN(first, 3)
		match = func(g string) bool { return helper.LastN(helper.PadLeft(g, 3, '0'), 3) == want }
	case ModGrupo:
		want := GroupOf(first)
		match = func(g string) bool {
			n, err := strconv.Atoi(g)
			return err == nil && n == want
		}
	default:
		return 0, false
	}
	if first == "" {
		return 0, true
	}
	hits := 0
	for _, raw := range guesses {
		g := helper.DigitsOnly(raw)
		if g != "" && match(g) {
			hits++
		}
	}
	return hits, true
}

// GroupOf 由号码末两位计算动物组（1~25）：ceil(d/4)，d=00 为 25 组
func GroupOf(number string) int {
	d, err := strconv.Atoi(helper.LastN(helper.DigitsOnly(number), 2))
	if err != nil {
		return 0
	}
	if d == 0 {
		return 25
	}
	return (d + 3) / 4
}
