package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractTickers(t *testing.T) {
	cases := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "cashtag",
			text: "loading up on $GME before earnings",
			want: []string{"GME"},
		},
		{
			name: "lowercase cashtag uppercased",
			text: "$gme to the moon",
			want: []string{"GME"},
		},
		{
			name: "bare uppercase symbol",
			text: "NVDA keeps printing",
			want: []string{"NVDA"},
		},
		{
			name: "stopwords never match bare",
			text: "YOLO BUY NOW AND HOLD THE MOON",
			want: nil,
		},
		{
			name: "cashtag overrides stopword",
			text: "$HOLD is an actual ETF ticker",
			want: []string{"HOLD"},
		},
		{
			name: "dedup keeps first-mention order",
			text: "$TSLA then $AAPL then $TSLA again, also AAPL bare",
			want: []string{"TSLA", "AAPL"},
		},
		{
			name: "cashtags listed before bare mentions",
			text: "MSFT is fine but $AMD is the play",
			want: []string{"AMD", "MSFT"},
		},
		{
			name: "too long for a symbol",
			text: "BANANAS are not tickers",
			want: nil,
		},
		{
			name: "single letter bare ignored",
			text: "grade A setup",
			want: nil,
		},
		{
			name: "no mentions",
			text: "what a quiet friday on the market",
			want: nil,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ExtractTickers(tc.text))
		})
	}
}
