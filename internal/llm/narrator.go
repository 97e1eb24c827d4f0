package llm

import (
	"context"
	"fmt"

	"github.com/dukerupert/apcore/internal/domain"
)

// Narrator adapts a Port into internal/exception's Narrator interface,
// without internal/llm importing internal/exception (the interface is
// satisfied structurally).
type Narrator struct {
	port      Port
	maxTokens int
}

func NewNarrator(port Port, maxTokens int) *Narrator {
	return &Narrator{port: port, maxTokens: maxTokens}
}

func (n *Narrator) Narrate(ctx context.Context, exc domain.ExceptionRecord, inv domain.Invoice) (string, string, int, int, error) {
	user := fmt.Sprintf(
		"Invoice %s from %s, total %s %s.\nException code: %s\nDescription: %s\n",
		inv.InvoiceNumber, inv.VendorNameRaw, inv.Currency, inv.TotalAmount.String(),
		exc.Code, exc.Description,
	)

	content, model, promptTokens, completionTokens, _, err := n.port.Chat(ctx, narrationSystemPrompt, user, n.maxTokens)
	if err != nil {
		return "", model, promptTokens, completionTokens, err
	}
	return content, model, promptTokens, completionTokens, nil
}
