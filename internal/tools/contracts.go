package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/fiscogo/fisco/internal/provider"
)

// contract summarizes one national collective labor agreement (CCNL).
type contract struct {
	Sector        string `json:"sector"`
	Name          string `json:"name"`
	MinMonthlyEUR int    `json:"min_monthly_eur"`
	WeeklyHours   int    `json:"weekly_hours"`
	NoticeDays    int    `json:"notice_days"`
	Renewed       string `json:"renewed"`
}

// ccnlTable is a static snapshot of the most commonly requested sectors.
// Figures refer to the lowest standard level of each agreement.
var ccnlTable = map[string]contract{
	"metalmeccanici": {
		Sector:        "metalmeccanici",
		Name:          "CCNL Metalmeccanici Industria",
		MinMonthlyEUR: 1795,
		WeeklyHours:   40,
		NoticeDays:    15,
		Renewed:       "2024-11",
	},
	"commercio": {
		Sector:        "commercio",
		Name:          "CCNL Commercio e Terziario",
		MinMonthlyEUR: 1655,
		WeeklyHours:   40,
		NoticeDays:    20,
		Renewed:       "2024-03",
	},
	"edilizia": {
		Sector:        "edilizia",
		Name:          "CCNL Edilizia Industria",
		MinMonthlyEUR: 1710,
		WeeklyHours:   40,
		NoticeDays:    10,
		Renewed:       "2022-07",
	},
	"turismo": {
		Sector:        "turismo",
		Name:          "CCNL Turismo e Pubblici Esercizi",
		MinMonthlyEUR: 1520,
		WeeklyHours:   40,
		NoticeDays:    20,
		Renewed:       "2024-06",
	},
	"studi professionali": {
		Sector:        "studi professionali",
		Name:          "CCNL Studi Professionali",
		MinMonthlyEUR: 1480,
		WeeklyHours:   40,
		NoticeDays:    30,
		Renewed:       "2024-03",
	},
}

// ContractLookup answers questions about national labor agreements from a
// static table.
type ContractLookup struct{}

// NewContractLookup returns the contract lookup tool.
func NewContractLookup() *ContractLookup { return &ContractLookup{} }

// Name implements Tool.
func (*ContractLookup) Name() string { return "contract_lookup" }

// Definition implements Tool.
func (*ContractLookup) Definition() provider.ToolDefinition {
	sectors := make([]string, 0, len(ccnlTable))
	for s := range ccnlTable {
		sectors = append(sectors, s)
	}
	sort.Strings(sectors)

	return provider.ToolDefinition{
		Name:        "contract_lookup",
		Description: "Looks up key terms of Italian national collective labor agreements (CCNL): minimum monthly pay, weekly hours, notice period, last renewal.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"sector": map[string]any{
					"type":        "string",
					"description": fmt.Sprintf("Sector name, one of: %s", strings.Join(sectors, ", ")),
				},
			},
			"required": []string{"sector"},
		},
	}
}

type contractArgs struct {
	Sector string `json:"sector"`
}

// Execute implements Tool.
func (*ContractLookup) Execute(_ context.Context, arguments string) (string, error) {
	var args contractArgs
	if err := json.Unmarshal([]byte(arguments), &args); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}

	sector := strings.ToLower(strings.TrimSpace(args.Sector))
	c, ok := ccnlTable[sector]
	if !ok {
		return "", fmt.Errorf("unknown sector %q", args.Sector)
	}

	raw, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("encode result: %w", err)
	}
	return string(raw), nil
}
