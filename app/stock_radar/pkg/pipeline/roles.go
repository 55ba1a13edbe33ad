package pipeline

import (
	"fmt"
	"strings"
)

// Role 阶段的角色设定
type Role struct {
	Name      string
	Goal      string
	Backstory string
}

// 三个固定角色
var (
	CollectorRole = Role{
		Name: "Financial Data Collector",
		Goal: "Collect comprehensive and accurate financial data for the target company.",
		Backstory: "You are an expert at gathering financial data from various sources. " +
			"You know how to retrieve and organize financial statements, stock prices, market data, " +
			"and company information efficiently and accurately.",
	}
	AnalystRole = Role{
		Name: "Financial Analyst",
		Goal: "Analyze financial data and identify key insights, trends, and risks.",
		Backstory: "You are a seasoned financial analyst with decades of experience in " +
			"evaluating companies across multiple sectors. You have a keen eye for identifying " +
			"financial strengths and weaknesses from balance sheets and income statements.",
	}
	AdvisorRole = Role{
		Name: "Investment Advisor",
		Goal: "Provide actionable investment recommendations based on financial analysis.",
		Backstory: "You have advised numerous clients on investment decisions and portfolio " +
			"management. You understand risk profiles, time horizons, and how to translate complex " +
			"financial analysis into clear investment recommendations with solid reasoning.",
	}
)

// SystemPrompt 角色的 system 消息
func (r Role) SystemPrompt() string {
	return fmt.Sprintf("You are a %s.\nYour goal: %s\n%s", r.Name, r.Goal, r.Backstory)
}

const collectorTask = `Collect all relevant financial information for %s.
This should include:
1. Current stock price and recent price movements
2. Company profile and basic information
3. Key financial metrics from income statements and balance sheets
4. Recent news and significant events

Organize this information in a clear, structured format.`

const analystTask = `Analyze the financial data collected for %s.
Your analysis should include:
1. Assessment of financial health and stability
2. Evaluation of growth trends and profitability
3. Comparison to industry benchmarks
4. Identification of key risks and strengths
5. Valuation assessment (e.g., P/E ratio analysis)

Provide a comprehensive analysis with clear insights.`

// 最后一段固定的输出格式是给推荐提取用的
const advisorTask = `Based on the financial analysis of %s, provide:
1. A clear investment recommendation (Buy, Hold, or Sell)
2. Target price range
3. Recommended time horizon
4. Risk assessment
5. Key factors supporting your recommendation
6. Potential catalysts and risks to monitor

Your recommendation should be well-reasoned and actionable.
Start your answer with these three lines:
Recommendation: <BUY|HOLD|SELL>
Target Price: $<number>
Time Horizon: <Short-term|Medium-term|Long-term>`

// section 拼接带标题的上下文块
func section(title, body string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "### %s\n", title)
	sb.WriteString(strings.TrimSpace(body))
	sb.WriteString("\n\n")
	return sb.String()
}
