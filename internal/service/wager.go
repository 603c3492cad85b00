package service

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"lotto-server/common/helper"

	"github.com/shopspring/decimal"
)

// WagerLinesVersion 当前投注明细存储版本
const WagerLinesVersion = 1

// StakeMode 投注额计算方式
type StakeMode string

const (
	StakePerGuess StakeMode = "perGuess" // 每个号码各投 stake
	StakeFlat     StakeMode = "flat"     // stake 为整行总额，平均分到各号码
)

// Tier 名次档位
type Tier int

const (
	TierFirst    Tier = 1 // 头奖（cabeça）
	TierExtended Tier = 5 // 1~5 名
)

// Placement 名次档位的原始写法，兼容数字与字符串（"1"、"1-5"、"1/5"、5）
type Placement string

func (p *Placement) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*p = Placement(strings.TrimSpace(s))
		return nil
	}
	if string(b) == "null" {
		*p = ""
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*p = Placement(n.String())
	return nil
}

// Tier 规范化名次档位：空或仅 "1" 为头奖，其余含数字的写法视为 1~5 名
func (p Placement) Tier() Tier {
	d := helper.DigitsOnly(string(p))
	if d == "" || d == "1" {
		return TierFirst
	}
	return TierExtended
}

// WagerLine 一行投注
type WagerLine struct {
	Modality  string              `json:"modality"`
	Placement Placement           `json:"placement"`
	Guesses   []string            `json:"guesses"`
	StakeMode StakeMode           `json:"stakeMode"`
	Stake     decimal.NullDecimal `json:"stake"` // 为空时按注单总额平均分配
}

// Cost 该行扣款额
func (l WagerLine) Cost() decimal.Decimal {
	if !l.Stake.Valid {
		return decimal.Zero
	}
	if l.StakeMode == StakePerGuess {
		return l.Stake.Decimal.Mul(decimal.NewFromInt(int64(len(l.Guesses))))
	}
	return l.Stake.Decimal
}

type wagerEnvelope struct {
	Version int             `json:"v"`
	Lines   json.RawMessage `json:"lines"`
}

// legacyWagerLine 早期无版本的葡语字段格式
type legacyWagerLine struct {
	Modalidade      string          `json:"modalidade"`
	Colocacao       Placement       `json:"colocacao"`
	Palpites        []string        `json:"palpites"`
	ValorPorPalpite json.RawMessage `json:"valorPorPalpite"`
	Valor           json.RawMessage `json:"valor"`
}

// EncodeWagerLines 序列化为带版本的存储格式
func EncodeWagerLines(lines []WagerLine) (string, error) {
	if lines == nil {
		lines = []WagerLine{}
	}
	raw, err := json.Marshal(lines)
	if err != nil {
		return "", err
	}
	b, err := json.Marshal(wagerEnvelope{Version: WagerLinesVersion, Lines: raw})
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// DecodeWagerLines 解析存储的投注明细：
//   - {"v":1,"lines":[...]}：当前格式
//   - [...]：无版本数组，逐行兼容当前字段与葡语旧字段
//
// 无法解析时返回空列表与 ok=false，调用方据此按“无投注行”处理
func DecodeWagerLines(raw string) ([]WagerLine, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return []WagerLine{}, false
	}
	if raw[0] == '{' {
		var env wagerEnvelope
		if err := json.Unmarshal([]byte(raw), &env); err != nil || env.Version != WagerLinesVersion {
			return []WagerLine{}, false
		}
		var lines []WagerLine
		if err := json.Unmarshal(env.Lines, &lines); err != nil {
			return []WagerLine{}, false
		}
		return lines, true
	}

	var items []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return []WagerLine{}, false
	}
	lines := make([]WagerLine, 0, len(items))
	for _, it := range items {
		line, ok := decodeUnversionedLine(it)
		if !ok {
			return []WagerLine{}, false
		}
		lines = append(lines, line)
	}
	return lines, true
}

func decodeUnversionedLine(b json.RawMessage) (WagerLine, bool) {
	var cur WagerLine
	if err := json.Unmarshal(b, &cur); err == nil && cur.Modality != "" {
		return cur, true
	}
	var old legacyWagerLine
	if err := json.Unmarshal(b, &old); err != nil || old.Modalidade == "" {
		return WagerLine{}, false
	}
	line := WagerLine{
		Modality:  old.Modalidade,
		Placement: old.Colocacao,
		Guesses:   old.Palpites,
		StakeMode: StakeFlat,
	}
	if v, ok := legacyMoney(old.ValorPorPalpite); ok {
		line.StakeMode = StakePerGuess
		line.Stake = decimal.NewNullDecimal(v)
	} else if v, ok := legacyMoney(old.Valor); ok {
		line.Stake = decimal.NewNullDecimal(v)
	}
	return line, true
}

// legacyMoney 旧数据金额可能是数字或带逗号的字符串
func legacyMoney(b json.RawMessage) (decimal.Decimal, bool) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		return decimal.Zero, false
	}
	s := string(b)
	if b[0] == '"' {
		if uq, err := strconv.Unquote(s); err == nil {
			s = uq
		}
	}
	return helper.ParseMoney(s)
}
