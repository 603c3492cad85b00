package state

import (
	"fmt"
	"sort"
)

// Bet 注单状态
const (
	BetOpen   = "open"         // 待开奖
	BetWon    = "won"          // 中奖
	BetNotWon = "nao_premiado" // 未中奖
	BetLost   = "lost"         // 人工驳回
	BetPaid   = "paid"         // 已派奖（人工）
)

// Event 注单事件
const (
	EvtWin    = "win"    // 结算/复核判定中奖
	EvtLose   = "lose"   // 结算/复核判定未中奖
	EvtPay    = "pay"    // 人工派奖
	EvtReject = "reject" // 人工驳回
)

var transitions = map[string]map[string]string{
	BetOpen: {
		EvtWin:    BetWon,
		EvtLose:   BetNotWon,
		EvtPay:    BetPaid,
		EvtReject: BetLost,
	},
	BetWon: {
		EvtWin:    BetWon, // 复核补派：已判中奖但未入账
		EvtPay:    BetPaid,
		EvtReject: BetLost,
	},
	BetNotWon: {
		EvtWin:    BetWon,
		EvtPay:    BetPaid,
		EvtReject: BetLost,
	},
	BetLost: {
		EvtPay: BetPaid,
	},
}

// NextBetStatus 根据当前状态与事件计算下一个状态，非法转换报错
func NextBetStatus(cur, evt string) (string, error) {
	if next, ok := transitions[cur][evt]; ok {
		return next, nil
	}
	return cur, fmt.Errorf("invalid transition: %s --%s--> ?", cur, evt)
}

// SourcesOf 返回允许触发 evt 的全部状态（用于条件更新的守卫谓词）
func SourcesOf(evt string) []string {
	var out []string
	for from, m := range transitions {
		if _, ok := m[evt]; ok {
			out = append(out, from)
		}
	}
	sort.Strings(out)
	return out
}

// IsTerminal 是否为终态
func IsTerminal(status string) bool {
	return len(transitions[status]) == 0
}
