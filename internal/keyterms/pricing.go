package keyterms

import "strings"

// Price is USD per million tokens.
type Price struct {
	Input  float64
	Output float64
}

// Matched by substring so provider-prefixed ids such as
// anthropic/claude-sonnet-4 resolve. More specific names come first.
var modelPrices = []struct {
	match string
	price Price
}{
	{"claude-sonnet-4", Price{Input: 3.00, Output: 15.00}},
	{"claude-haiku-4", Price{Input: 0.25, Output: 1.25}},
	{"gpt-4o-mini", Price{Input: 0.15, Output: 0.60}},
	{"gpt-4-turbo", Price{Input: 10.00, Output: 30.00}},
}

// PriceFor returns the token price of model.
func PriceFor(model string) (Price, bool) {
	model = strings.ToLower(model)
	for _, entry := range modelPrices {
		if strings.Contains(model, entry.match) {
			return entry.price, true
		}
	}
	return Price{}, false
}

// Cost estimates USD for a total token count, assuming 85% input and 15%
// output tokens. Unknown models cost zero.
func Cost(model string, tokens int) float64 {
	input := int(float64(tokens) * 0.85)
	return UsageCost(model, input, tokens-input)
}

// UsageCost prices an exact input/output token split.
func UsageCost(model string, input, output int) float64 {
	price, ok := PriceFor(model)
	if !ok {
		return 0
	}
	return float64(input)/1_000_000*price.Input + float64(output)/1_000_000*price.Output
}
