package transaction

import (
	"time"

	"github.com/google/uuid"

	"github.com/yonatanw/ledgerscope/internal/transaction"
)

type installmentsResponse struct {
	Number int `json:"number"`
	Total  int `json:"total"`
}

type transactionResponse struct {
	ID               uuid.UUID             `json:"id"`
	AccountID        uuid.UUID             `json:"account_id"`
	Date             time.Time             `json:"date"`
	ProcessedDate    time.Time             `json:"processed_date"`
	OriginalAmount   int64                 `json:"original_amount"`
	OriginalCurrency string                `json:"original_currency"`
	ChargedAmount    int64                 `json:"charged_amount"`
	ChargedCurrency  string                `json:"charged_currency"`
	Description      string                `json:"description"`
	Memo             string                `json:"memo,omitempty"`
	Status           transaction.Status    `json:"status"`
	Identifier       string                `json:"identifier,omitempty"`
	Installments     *installmentsResponse `json:"installments,omitempty"`
	CategoryID       *uuid.UUID            `json:"category_id,omitempty"`
	CreatedAt        time.Time             `json:"created_at"`
}

func toResponse(tx *transaction.Transaction) transactionResponse {
	resp := transactionResponse{
		ID:               tx.ID,
		AccountID:        tx.AccountID,
		Date:             tx.Date,
		ProcessedDate:    tx.ProcessedDate,
		OriginalAmount:   tx.OriginalAmount,
		OriginalCurrency: tx.OriginalCurrency,
		ChargedAmount:    tx.ChargedAmount,
		ChargedCurrency:  tx.ChargedCurrency,
		Description:      tx.Description,
		Memo:             tx.Memo,
		Status:           tx.Status,
		Identifier:       tx.Identifier,
		CategoryID:       tx.CategoryID,
		CreatedAt:        tx.CreatedAt,
	}

	if tx.Installments != nil {
		resp.Installments = &installmentsResponse{
			Number: tx.Installments.Number,
			Total:  tx.Installments.Total,
		}
	}

	return resp
}

func toResponseList(txs []*transaction.Transaction) []transactionResponse {
	resp := make([]transactionResponse, len(txs))
	for i, tx := range txs {
		resp[i] = toResponse(tx)
	}

	return resp
}
