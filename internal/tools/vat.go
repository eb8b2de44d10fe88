package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/fiscogo/fisco/internal/provider"
)

// Italian VAT rates in force: ordinary plus the three reduced brackets.
var vatRates = map[float64]bool{22: true, 10: true, 5: true, 4: true}

const defaultVATRate = 22

// VATCalculator computes Italian VAT either by adding it to a net amount or
// extracting it from a gross amount.
type VATCalculator struct{}

// NewVATCalculator returns the VAT calculator tool.
func NewVATCalculator() *VATCalculator { return &VATCalculator{} }

// Name implements Tool.
func (*VATCalculator) Name() string { return "vat_calculator" }

// Definition implements Tool.
func (*VATCalculator) Definition() provider.ToolDefinition {
	return provider.ToolDefinition{
		Name:        "vat_calculator",
		Description: "Computes Italian VAT (IVA). Adds VAT to a net amount or extracts VAT from a gross amount, at the ordinary 22% rate or the reduced 10%, 5% and 4% rates.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"amount": map[string]any{
					"type":        "number",
					"description": "Amount in EUR",
				},
				"rate": map[string]any{
					"type":        "number",
					"description": "VAT rate percent: 22, 10, 5 or 4. Defaults to 22.",
				},
				"operation": map[string]any{
					"type":        "string",
					"enum":        []string{"add", "extract"},
					"description": "add: amount is net, compute gross. extract: amount is gross, compute net.",
				},
			},
			"required": []string{"amount"},
		},
	}
}

type vatArgs struct {
	Amount    float64 `json:"amount"`
	Rate      float64 `json:"rate"`
	Operation string  `json:"operation"`
}

type vatResult struct {
	NetEUR   float64 `json:"net_eur"`
	VATEUR   float64 `json:"vat_eur"`
	GrossEUR float64 `json:"gross_eur"`
	Rate     float64 `json:"rate"`
}

// Execute implements Tool.
func (*VATCalculator) Execute(_ context.Context, arguments string) (string, error) {
	var args vatArgs
	if err := json.Unmarshal([]byte(arguments), &args); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	if args.Amount < 0 {
		return "", fmt.Errorf("amount must be non-negative, got %v", args.Amount)
	}
	if args.Rate == 0 {
		args.Rate = defaultVATRate
	}
	if !vatRates[args.Rate] {
		return "", fmt.Errorf("unsupported VAT rate %v (valid: 22, 10, 5, 4)", args.Rate)
	}

	var res vatResult
	res.Rate = args.Rate
	switch args.Operation {
	case "", "add":
		res.NetEUR = args.Amount
		res.VATEUR = roundEUR(args.Amount * args.Rate / 100)
		res.GrossEUR = roundEUR(res.NetEUR + res.VATEUR)
	case "extract":
		res.GrossEUR = args.Amount
		res.NetEUR = roundEUR(args.Amount / (1 + args.Rate/100))
		res.VATEUR = roundEUR(res.GrossEUR - res.NetEUR)
	default:
		return "", fmt.Errorf("unknown operation %q (valid: add, extract)", args.Operation)
	}

	raw, err := json.Marshal(res)
	if err != nil {
		return "", fmt.Errorf("encode result: %w", err)
	}
	return string(raw), nil
}

// roundEUR rounds to euro cents.
func roundEUR(v float64) float64 {
	return math.Round(v*100) / 100
}
