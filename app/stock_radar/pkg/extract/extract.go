// Package extract 从流水线的最终叙述中尽力提取投资建议。
//
// 规则按行单次正向扫描，大小写不敏感，子串匹配：
//   - 含 RECOMMENDATION/BUY/SELL/HOLD 的行进入建议段，并按 BUY > SELL > HOLD 设置动作；
//   - 建议段内含 TARGET PRICE 的行，取第一个冒号之后那一段里的第一个数字；
//   - 含 TIMEFRAME 的行，或建议段内含 TIME HORIZON 的行，按 SHORT > MEDIUM/MID > LONG 设置期限。
//
// TIMEFRAME 不要求处于建议段而 TIME HORIZON 要求，这个不对称是有意保留的。
package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/iWorld-y/stock_radar/app/stock_radar/pkg/model"
)

var pricePattern = regexp.MustCompile(`[$€£¥]?(\d+(?:\.\d+)?)`)

// Recommendation 永不失败，没有匹配时返回空结果
func Recommendation(narrative string) model.Recommendation {
	var rec model.Recommendation
	inSection := false

	for _, line := range strings.Split(narrative, "\n") {
		upper := strings.ToUpper(line)

		if containsAny(upper, "RECOMMENDATION", "BUY", "SELL", "HOLD") {
			inSection = true
			switch {
			case strings.Contains(upper, "BUY"):
				rec.Action = model.ActionBuy
			case strings.Contains(upper, "SELL"):
				rec.Action = model.ActionSell
			case strings.Contains(upper, "HOLD"):
				rec.Action = model.ActionHold
			}
		}

		if inSection && strings.Contains(upper, "TARGET PRICE") {
			if price, ok := targetPrice(line); ok {
				rec.TargetPrice = &price
			}
		}

		if strings.Contains(upper, "TIMEFRAME") || (strings.Contains(upper, "TIME HORIZON") && inSection) {
			switch {
			case strings.Contains(upper, "SHORT"):
				rec.TimeHorizon = model.HorizonShort
			case strings.Contains(upper, "MEDIUM"), strings.Contains(upper, "MID"):
				rec.TimeHorizon = model.HorizonMedium
			case strings.Contains(upper, "LONG"):
				rec.TimeHorizon = model.HorizonLong
			}
		}
	}
	return rec
}

// targetPrice 只看第一个和第二个冒号之间的内容
func targetPrice(line string) (float64, bool) {
	parts := strings.Split(line, ":")
	if len(parts) < 2 {
		return 0, false
	}
	m := pricePattern.FindStringSubmatch(strings.TrimSpace(parts[1]))
	if m == nil {
		return 0, false
	}
	price, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return price, true
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
