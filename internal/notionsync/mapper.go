package notionsync

import (
	"fmt"

	"github.com/jomei/notionapi"

	"github.com/dvloznov/ledger-bot/internal/domain"
)

// TransactionToNotionProperties converts a ledger transaction to Notion
// properties. The "Ledger ID" number property is the idempotency key the
// sync matches existing pages on.
func TransactionToNotionProperties(tx domain.Transaction) notionapi.Properties {
	title := tx.Description
	if title == "" {
		title = tx.Category
	}

	props := notionapi.Properties{
		"Name": notionapi.TitleProperty{
			Title: []notionapi.RichText{
				{
					Type: notionapi.ObjectTypeText,
					Text: &notionapi.Text{
						Content: title,
					},
				},
			},
		},
		"Ledger ID": notionapi.NumberProperty{
			Number: float64(tx.ID),
		},
		"Amount": notionapi.NumberProperty{
			Number: tx.Signed(),
		},
		"Date": notionapi.DateProperty{
			Date: &notionapi.DateObject{
				Start: dateOf(tx),
			},
		},
	}

	if tx.Category != "" {
		props["Category"] = notionapi.SelectProperty{
			Select: notionapi.Option{
				Name: tx.Category,
			},
		}
	}

	props["Type"] = notionapi.SelectProperty{
		Select: notionapi.Option{
			Name: string(tx.Type),
		},
	}

	return props
}

func dateOf(tx domain.Transaction) *notionapi.Date {
	d := notionapi.Date(tx.Date)
	return &d
}

// pageLedgerID extracts the "Ledger ID" property from an existing page, or
// 0 if the page has none.
func pageLedgerID(page notionapi.Page) int64 {
	prop, ok := page.Properties["Ledger ID"]
	if !ok {
		return 0
	}
	num, ok := prop.(*notionapi.NumberProperty)
	if !ok {
		return 0
	}
	return int64(num.Number)
}

func pageID(page notionapi.Page) string {
	return fmt.Sprintf("%s", page.ID)
}
