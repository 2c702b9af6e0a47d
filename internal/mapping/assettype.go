package mapping

import (
	"context"
	"fmt"
	"strings"
)

// Asset types a classification may resolve to.
const (
	AssetTypeStock  = "stock"
	AssetTypeCrypto = "crypto"
	AssetTypeBond   = "bond"
	AssetTypeETF    = "etf"
	AssetTypeFund   = "fund"
	AssetTypeOther  = "other"
)

var validAssetTypes = []string{
	AssetTypeStock, AssetTypeCrypto, AssetTypeBond, AssetTypeETF, AssetTypeFund, AssetTypeOther,
}

// KnownAssetType reports whether s is one of the recognized asset types.
func KnownAssetType(s string) bool {
	for _, t := range validAssetTypes {
		if s == t {
			return true
		}
	}
	return false
}

// AssetInfo is the result of classifying an asset by name.
type AssetInfo struct {
	AssetType string
	Symbol    string
}

// AssetClassifier infers an asset's type and ticker symbol from its name.
// Classification is best-effort; failures never abort an ingestion, rows
// simply keep the default type.
type AssetClassifier interface {
	ClassifyAsset(ctx context.Context, assetName string) (AssetInfo, error)
}

// ClassifyAsset implements AssetClassifier on the Gemini service.
func (s *GeminiService) ClassifyAsset(ctx context.Context, assetName string) (AssetInfo, error) {
	name := strings.TrimSpace(assetName)
	if name == "" {
		return AssetInfo{}, fmt.Errorf("mapping: empty asset name")
	}

	raw, err := s.generateObject(ctx, buildAssetClassificationPrompt(name))
	if err != nil {
		return AssetInfo{}, fmt.Errorf("mapping: classify asset %q: %w", name, err)
	}

	info := AssetInfo{
		AssetType: strings.ToLower(strings.TrimSpace(stringField(raw, "asset_type"))),
		Symbol:    strings.TrimSpace(stringField(raw, "symbol")),
	}

	for _, t := range validAssetTypes {
		if info.AssetType == t {
			return info, nil
		}
	}
	return AssetInfo{}, fmt.Errorf("mapping: model returned unknown asset type %q", info.AssetType)
}

func buildAssetClassificationPrompt(assetName string) string {
	var b strings.Builder
	b.WriteString("You are an asset classification expert. Classify the asset type and provide a ticker symbol.\n\n")
	b.WriteString("ASSET NAME: " + assetName + "\n\n")
	b.WriteString("ASSET TYPES (valid options):\n")
	for _, t := range validAssetTypes {
		b.WriteString("- " + t + "\n")
	}
	b.WriteString("\nINSTRUCTIONS:\n" +
		"1. Determine the most likely asset type from the list above.\n" +
		"2. Suggest a ticker/symbol if available (empty string if none).\n" +
		"3. Return ONLY valid JSON: {\"asset_type\": \"...\", \"symbol\": \"...\"}\n\n" +
		"Example: {\"asset_type\": \"stock\", \"symbol\": \"AAPL\"}\n\n" +
		"IMPORTANT: Return ONLY the JSON object, no additional text or explanation.")
	return b.String()
}

func stringField(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}
