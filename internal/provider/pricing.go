package provider

// modelRate is the EUR price per 1M tokens, split by direction.
type modelRate struct {
	inputEURPerM  float64
	outputEURPerM float64
}

// modelRates drives cost estimation for usage accounting and routing cost
// checks. Unknown models fall back to defaultRate. Prices are deliberately
// conservative approximations; billing reconciles against provider invoices.
var modelRates = map[string]modelRate{
	"gpt-4o":                     {inputEURPerM: 2.30, outputEURPerM: 9.20},
	"gpt-4o-mini":                {inputEURPerM: 0.14, outputEURPerM: 0.55},
	"claude-sonnet-4-20250514":   {inputEURPerM: 2.75, outputEURPerM: 13.80},
	"claude-3-5-haiku-20241022":  {inputEURPerM: 0.73, outputEURPerM: 3.70},
	"claude-3-5-sonnet-20241022": {inputEURPerM: 2.75, outputEURPerM: 13.80},
}

var defaultRate = modelRate{inputEURPerM: 2.00, outputEURPerM: 8.00}

// EstimateCostEUR converts token usage into an approximate EUR cost for the
// given model. Observational only: routing decisions use table ceilings, not
// this estimate.
func EstimateCostEUR(model string, usage TokenUsage) float64 {
	rate, ok := modelRates[model]
	if !ok {
		rate = defaultRate
	}
	in := float64(usage.PromptTokens) / 1_000_000 * rate.inputEURPerM
	out := float64(usage.CompletionTokens) / 1_000_000 * rate.outputEURPerM
	return in + out
}
