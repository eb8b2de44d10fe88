package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fiscogo/fisco/internal/provider"
)

// obligation is one recurring fiscal deadline.
type obligation struct {
	Topic    string `json:"topic"`
	Name     string `json:"name"`
	Deadline string `json:"deadline"`
	Form     string `json:"form,omitempty"`
	Notes    string `json:"notes,omitempty"`
}

// obligationTable maps compliance topics to their standard deadlines.
var obligationTable = map[string][]obligation{
	"iva": {
		{
			Topic:    "iva",
			Name:     "Liquidazione IVA mensile",
			Deadline: "day 16 of the following month",
			Form:     "F24",
		},
		{
			Topic:    "iva",
			Name:     "Liquidazione IVA trimestrale",
			Deadline: "day 16 of the second month after the quarter",
			Form:     "F24",
			Notes:    "1% interest applies to quarterly settlement",
		},
		{
			Topic:    "iva",
			Name:     "Dichiarazione IVA annuale",
			Deadline: "April 30",
		},
	},
	"irpef": {
		{
			Topic:    "irpef",
			Name:     "Saldo e primo acconto IRPEF",
			Deadline: "June 30",
			Form:     "F24",
		},
		{
			Topic:    "irpef",
			Name:     "Secondo acconto IRPEF",
			Deadline: "November 30",
			Form:     "F24",
		},
	},
	"730": {
		{
			Topic:    "730",
			Name:     "Presentazione modello 730",
			Deadline: "September 30",
		},
	},
	"fattura elettronica": {
		{
			Topic:    "fattura elettronica",
			Name:     "Emissione fattura elettronica immediata",
			Deadline: "within 12 days of the operation",
			Notes:    "via Sistema di Interscambio (SdI)",
		},
	},
	"certificazione unica": {
		{
			Topic:    "certificazione unica",
			Name:     "Invio Certificazione Unica",
			Deadline: "March 16",
		},
	},
}

// ComplianceCheck reports standard Italian fiscal deadlines for a topic.
type ComplianceCheck struct{}

// NewComplianceCheck returns the compliance check tool.
func NewComplianceCheck() *ComplianceCheck { return &ComplianceCheck{} }

// Name implements Tool.
func (*ComplianceCheck) Name() string { return "compliance_check" }

// Definition implements Tool.
func (*ComplianceCheck) Definition() provider.ToolDefinition {
	return provider.ToolDefinition{
		Name:        "compliance_check",
		Description: "Returns the standard Italian fiscal obligations and deadlines for a topic (iva, irpef, 730, fattura elettronica, certificazione unica).",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"topic": map[string]any{
					"type":        "string",
					"description": "Compliance topic, e.g. iva, irpef, 730, fattura elettronica",
				},
			},
			"required": []string{"topic"},
		},
	}
}

type complianceArgs struct {
	Topic string `json:"topic"`
}

// Execute implements Tool.
func (*ComplianceCheck) Execute(_ context.Context, arguments string) (string, error) {
	var args complianceArgs
	if err := json.Unmarshal([]byte(arguments), &args); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}

	topic := strings.ToLower(strings.TrimSpace(args.Topic))
	obligations, ok := obligationTable[topic]
	if !ok {
		return "", fmt.Errorf("unknown compliance topic %q", args.Topic)
	}

	raw, err := json.Marshal(map[string]any{
		"topic":       topic,
		"obligations": obligations,
	})
	if err != nil {
		return "", fmt.Errorf("encode result: %w", err)
	}
	return string(raw), nil
}
