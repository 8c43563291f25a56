package extraction

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/quipufin/quipu/internal/model"
)

// wireTransaction mirrors the JSON shape the prompt asks the model for.
type wireTransaction struct {
	Amount        json.Number `json:"amount"`
	Direction     string      `json:"direction"`
	Category      string      `json:"category"`
	Description   string      `json:"description"`
	PaymentMethod string      `json:"payment_method"`
	Currency      string      `json:"currency"`
}

type wireResult struct {
	Transactions []wireTransaction `json:"transactions"`
	IsMultiple   bool              `json:"is_multiple"`
}

// parseExtraction converts raw model output into an ExtractionResult. The
// output is treated as unreliable: markdown fences are stripped, text around
// the JSON object is ignored, and candidates with unusable amounts are
// dropped rather than failing the whole message. Empty or unparseable output
// degrades to zero candidates.
func parseExtraction(content string) (model.ExtractionResult, error) {
	jsonStr := extractJSON(content)
	if jsonStr == "" {
		return model.ExtractionResult{}, nil
	}

	var wire wireResult
	if err := json.Unmarshal([]byte(jsonStr), &wire); err != nil {
		// Some models answer with a bare transaction object instead of the
		// wrapper; try that shape before giving up.
		var single wireTransaction
		if singleErr := json.Unmarshal([]byte(jsonStr), &single); singleErr != nil {
			return model.ExtractionResult{}, fmt.Errorf("failed to parse extraction output: %w", err)
		}
		wire.Transactions = []wireTransaction{single}
	}

	result := model.ExtractionResult{}
	for _, wt := range wire.Transactions {
		txn, ok := convertTransaction(wt)
		if !ok {
			continue
		}
		result.Transactions = append(result.Transactions, txn)
	}
	result.IsMultiple = len(result.Transactions) > 1
	return result, nil
}

func convertTransaction(wt wireTransaction) (model.ExtractedTransaction, bool) {
	if wt.Amount == "" {
		return model.ExtractedTransaction{}, false
	}
	amount, err := decimal.NewFromString(wt.Amount.String())
	if err != nil || amount.Sign() <= 0 {
		return model.ExtractedTransaction{}, false
	}

	direction := model.TransactionDirection(strings.ToLower(strings.TrimSpace(wt.Direction)))
	if direction != model.DirectionDebit && direction != model.DirectionCredit {
		direction = model.DirectionDebit
	}

	return model.ExtractedTransaction{
		Amount:        amount,
		Direction:     direction,
		Category:      strings.TrimSpace(wt.Category),
		Description:   strings.TrimSpace(wt.Description),
		PaymentMethod: strings.TrimSpace(wt.PaymentMethod),
		Currency:      strings.ToUpper(strings.TrimSpace(wt.Currency)),
	}, true
}

// extractJSON locates the outermost JSON object in model output, tolerating
// markdown code fences and commentary around it.
func extractJSON(content string) string {
	content = strings.TrimSpace(content)

	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimPrefix(content, "```")
		if idx := strings.LastIndex(content, "```"); idx >= 0 {
			content = content[:idx]
		}
		content = strings.TrimSpace(content)
	}

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return ""
	}
	return content[start : end+1]
}
