package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iWorld-y/stock_radar/app/stock_radar/pkg/model"
)

func price(v float64) *float64 { return &v }

func TestRecommendation(t *testing.T) {
	tests := []struct {
		name      string
		narrative string
		want      model.Recommendation
	}{
		{
			name:      "empty",
			narrative: "",
			want:      model.Recommendation{},
		},
		{
			name:      "no keywords",
			narrative: "Revenue grew 12% year over year.\nMargins expanded.",
			want:      model.Recommendation{},
		},
		{
			name:      "full block",
			narrative: "Recommendation: BUY\nTarget Price: $200.00\nTime Horizon: Long-term",
			want:      model.Recommendation{Action: model.ActionBuy, TargetPrice: price(200), TimeHorizon: model.HorizonLong},
		},
		{
			name:      "buy wins over sell on one line",
			narrative: "Recommendation: BUY on dips, SELL into strength",
			want:      model.Recommendation{Action: model.ActionBuy},
		},
		{
			name:      "sell wins over hold on one line",
			narrative: "We would SELL rather than HOLD",
			want:      model.Recommendation{Action: model.ActionSell},
		},
		{
			name:      "later line overrides action",
			narrative: "Initial view: BUY\nFinal recommendation: HOLD",
			want:      model.Recommendation{Action: model.ActionHold},
		},
		{
			name:      "recommendation keyword alone opens section",
			narrative: "## Recommendation\nTarget Price: 150.5",
			want:      model.Recommendation{TargetPrice: price(150.5)},
		},
		{
			name:      "target price outside section ignored",
			narrative: "Target Price: $150.00\nRecommendation: HOLD",
			want:      model.Recommendation{Action: model.ActionHold},
		},
		{
			name:      "target price without number",
			narrative: "Recommendation: BUY\nTarget Price: to be determined",
			want:      model.Recommendation{Action: model.ActionBuy},
		},
		{
			name:      "target price range takes first number",
			narrative: "Recommendation: BUY\nTarget Price: €150 - €170",
			want:      model.Recommendation{Action: model.ActionBuy, TargetPrice: price(150)},
		},
		{
			name:      "only segment after first colon is searched",
			narrative: "Recommendation: BUY\nTarget Price: within 12 months: $180",
			want:      model.Recommendation{Action: model.ActionBuy, TargetPrice: price(12)},
		},
		{
			name:      "thousands separator stops at comma",
			narrative: "Recommendation: BUY\nTarget Price: $1,200",
			want:      model.Recommendation{Action: model.ActionBuy, TargetPrice: price(1)},
		},
		{
			name:      "timeframe outside section",
			narrative: "Timeframe: short-term trade",
			want:      model.Recommendation{TimeHorizon: model.HorizonShort},
		},
		{
			name:      "time horizon outside section ignored",
			narrative: "Time Horizon: Long-term\nRecommendation: BUY",
			want:      model.Recommendation{Action: model.ActionBuy},
		},
		{
			name:      "mid maps to medium",
			narrative: "Recommendation: HOLD\nTime horizon: mid term",
			want:      model.Recommendation{Action: model.ActionHold, TimeHorizon: model.HorizonMedium},
		},
		{
			name:      "short wins over long",
			narrative: "Recommendation: BUY\nTime Horizon: short to long",
			want:      model.Recommendation{Action: model.ActionBuy, TimeHorizon: model.HorizonShort},
		},
		{
			name:      "substring match on threshold",
			narrative: "Key threshold to watch",
			want:      model.Recommendation{Action: model.ActionHold},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Recommendation(tt.narrative)
			assert.Equal(t, tt.want.Action, got.Action)
			assert.Equal(t, tt.want.TimeHorizon, got.TimeHorizon)
			if tt.want.TargetPrice == nil {
				assert.Nil(t, got.TargetPrice)
			} else {
				require.NotNil(t, got.TargetPrice)
				assert.InDelta(t, *tt.want.TargetPrice, *got.TargetPrice, 1e-9)
			}
		})
	}
}

func TestRecommendation_TargetPrice150(t *testing.T) {
	got := Recommendation("RECOMMENDATION: HOLD\nTarget Price: $150.00")
	require.NotNil(t, got.TargetPrice)
	assert.Equal(t, 150.0, *got.TargetPrice)
}

func TestRecommendation_EmptyIsEmpty(t *testing.T) {
	assert.True(t, Recommendation("\n\n").Empty())
}
