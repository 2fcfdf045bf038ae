package pipeline

import (
	"regexp"
	"strings"
)

// cashtagPattern matches $-prefixed symbols, the unambiguous mention form.
var cashtagPattern = regexp.MustCompile(`\$([A-Za-z]{1,5})\b`)

// barePattern matches bare uppercase tokens that look like symbols.
var bareTickerPattern = regexp.MustCompile(`\b([A-Z]{2,5})\b`)

// bareStopwords are uppercase English words that collide with ticker shapes.
// Bare-token matches against these are ignored; a cashtag always wins.
var bareStopwords = map[string]bool{
	"A": true, "I": true, "AI": true, "ALL": true, "AND": true, "ARE": true,
	"ATH": true, "BE": true, "BUY": true, "CALL": true, "CEO": true,
	"CFO": true, "DD": true, "DOWN": true, "EPS": true, "ETF": true,
	"EV": true, "FOMO": true, "FOR": true, "FUD": true, "GAIN": true,
	"GO": true, "HOLD": true, "HUGE": true, "IMO": true, "IPO": true,
	"IS": true, "IT": true, "LOSS": true, "MOON": true, "NEW": true,
	"NOT": true, "NOW": true, "ON": true, "OR": true, "PUT": true,
	"PUTS": true, "SEC": true, "SELL": true, "SO": true, "THE": true,
	"TO": true, "UP": true, "USA": true, "USD": true, "WSB": true,
	"YOLO": true, "YOY": true,
}

// ExtractTickers returns the distinct ticker symbols mentioned in the text,
// uppercased, in first-mention order. Cashtags are taken verbatim; bare
// uppercase tokens are accepted only when they do not collide with common
// words.
func ExtractTickers(text string) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(sym string) {
		sym = strings.ToUpper(sym)
		if !seen[sym] {
			seen[sym] = true
			out = append(out, sym)
		}
	}

	for _, m := range cashtagPattern.FindAllStringSubmatch(text, -1) {
		add(m[1])
	}
	for _, m := range bareTickerPattern.FindAllStringSubmatch(text, -1) {
		if !bareStopwords[m[1]] {
			add(m[1])
		}
	}
	return out
}
