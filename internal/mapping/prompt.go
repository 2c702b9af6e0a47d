package mapping

import (
	"encoding/json"
	"strings"
)

// buildMappingPrompt renders the instruction block sent to the model on a
// cache miss. The model sees the target schema with semantic descriptions,
// the cleaned source column names, and a few sample rows for context.
func buildMappingPrompt(columns []string, samples [][]string, schema Schema) string {
	var b strings.Builder

	b.WriteString("You are a data mapping expert. Map source spreadsheet columns ")
	b.WriteString("to target schema fields based on their meaning and content.\n\n")

	b.WriteString("TARGET SCHEMA FIELDS:\n")
	for _, f := range schema.Fields {
		b.WriteString("- \"" + f.Name + "\": " + f.Description)
		if f.Required {
			b.WriteString(" (required)")
		}
		b.WriteString("\n")
	}

	b.WriteString("\nSOURCE COLUMNS:\n")
	writeJSONBlock(&b, columns)

	b.WriteString("\nSAMPLE DATA FROM SOURCE (first few rows, values per column):\n")
	writeJSONBlock(&b, sampleObjects(columns, samples))

	b.WriteString("\nINSTRUCTIONS:\n" +
		"1. Analyze the source column names and sample data.\n" +
		"2. Map each TARGET field to the most appropriate SOURCE column.\n" +
		"3. If no appropriate source column exists, set the value to null.\n" +
		"4. The JSON maps TARGET field names (keys) to SOURCE column names (values).\n\n" +
		"Return ONLY valid raw JSON.\n" +
		"Do NOT wrap the response in code fences.\n" +
		"Do NOT use ```json or any Markdown.\n" +
		"Output must begin with \"{\" and end with \"}\".\n\n" +
		"Example output format:\n" +
		"{\"asset_name\": \"stock_symbol\", \"date\": \"trade_date\", \"fee\": null}\n\n" +
		"Now provide the mapping:")

	return b.String()
}

// sampleObjects pairs each sample row's values with its column name so the
// model sees values in context.
func sampleObjects(columns []string, samples [][]string) []map[string]string {
	out := make([]map[string]string, 0, len(samples))
	for _, row := range samples {
		obj := make(map[string]string, len(columns))
		for i, col := range columns {
			if i < len(row) {
				obj[col] = row[i]
			}
		}
		out = append(out, obj)
	}
	return out
}

func writeJSONBlock(b *strings.Builder, v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		b.WriteString("[]")
		return
	}
	b.Write(data)
	b.WriteString("\n")
}
