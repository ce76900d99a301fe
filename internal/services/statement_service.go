package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strings"
	"time"

	"bankloan/internal/models"
	"bankloan/internal/money"
)

type StatementFormat string

const (
	FormatText StatementFormat = "text"
	FormatCSV  StatementFormat = "csv"
)

func ParseStatementFormat(v string) (StatementFormat, error) {
	switch f := StatementFormat(strings.ToLower(strings.TrimSpace(v))); f {
	case "":
		return FormatText, nil
	case FormatText, FormatCSV:
		return f, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidFormat, v)
}

type StatementLine struct {
	OccurredAt   time.Time              `json:"timestamp"`
	Type         models.TransactionType `json:"type"`
	Amount       int64                  `json:"amount"`
	RefAccountID *string                `json:"ref_account,omitempty"`
}

type Statement struct {
	AccountNumber string          `json:"account_number"`
	From          time.Time       `json:"from"`
	To            time.Time       `json:"to"`
	Opening       int64           `json:"opening"`
	Closing       int64           `json:"closing"`
	Lines         []StatementLine `json:"lines"`
}

type StatementService struct {
	accounts     AccountStore
	transactions TransactionStore
}

func NewStatementService(accounts AccountStore, transactions TransactionStore) *StatementService {
	return &StatementService{accounts: accounts, transactions: transactions}
}

// Build replays the account log from zero. The opening balance folds every
// entry before the start of from (UTC) and the lines cover whole days
// from..to inclusive.
func (s *StatementService) Build(ctx context.Context, customerID, number string, from, to time.Time) (Statement, error) {
	start := startOfDay(from)
	end := startOfDay(to)
	if end.Before(start) {
		return Statement{}, ErrInvalidDateRange
	}
	account, err := s.accounts.GetByNumber(ctx, number)
	if err != nil {
		return Statement{}, notFound(err, ErrAccountNotFound)
	}
	if account.CustomerID != customerID {
		return Statement{}, ErrUnauthorizedAccount
	}
	before, err := s.transactions.ListBefore(ctx, account.ID, start)
	if err != nil {
		return Statement{}, err
	}
	within, err := s.transactions.ListBetween(ctx, account.ID, start, end.Add(24*time.Hour))
	if err != nil {
		return Statement{}, err
	}
	st := Statement{
		AccountNumber: account.Number,
		From:          start,
		To:            end,
		Opening:       fold(0, before),
		Lines:         make([]StatementLine, 0, len(within)),
	}
	for _, t := range within {
		st.Lines = append(st.Lines, StatementLine{
			OccurredAt:   t.OccurredAt.UTC(),
			Type:         t.Type,
			Amount:       t.Amount,
			RefAccountID: t.RefAccountID,
		})
	}
	st.Closing = fold(st.Opening, within)
	return st, nil
}

// Generate builds the statement and renders it in the requested format.
func (s *StatementService) Generate(ctx context.Context, customerID, number string, from, to time.Time, format StatementFormat) ([]byte, error) {
	if format != FormatText && format != FormatCSV {
		return nil, fmt.Errorf("%w: %q", ErrInvalidFormat, format)
	}
	st, err := s.Build(ctx, customerID, number, from, to)
	if err != nil {
		return nil, err
	}
	if format == FormatCSV {
		return renderCSV(st)
	}
	return renderText(st), nil
}

func fold(opening int64, entries []models.Transaction) int64 {
	balance := opening
	for _, t := range entries {
		balance += t.Type.Signed(t.Amount)
	}
	return balance
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

const statementDate = "2006-01-02"

func renderText(st Statement) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "Statement for %s\n", st.AccountNumber)
	fmt.Fprintf(&b, "Period: %s to %s\n", st.From.Format(statementDate), st.To.Format(statementDate))
	fmt.Fprintf(&b, "Opening: %s\n", money.FormatMinor(st.Opening))
	for _, l := range st.Lines {
		fmt.Fprintf(&b, "%s %s %s", l.OccurredAt.Format(time.RFC3339), l.Type, money.FormatMinor(l.Amount))
		if l.RefAccountID != nil {
			fmt.Fprintf(&b, " Ref:%s", *l.RefAccountID)
		}
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "Closing: %s\n", money.FormatMinor(st.Closing))
	return []byte(b.String())
}

func renderCSV(st Statement) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	rows := [][]string{
		{"Account", "From", "To", "Opening", "Closing"},
		{st.AccountNumber, st.From.Format(statementDate), st.To.Format(statementDate), money.FormatMinor(st.Opening), money.FormatMinor(st.Closing)},
		{"OccurredAt", "Type", "Amount", "RefAccount"},
	}
	for _, l := range st.Lines {
		ref := ""
		if l.RefAccountID != nil {
			ref = *l.RefAccountID
		}
		rows = append(rows, []string{l.OccurredAt.Format(time.RFC3339), string(l.Type), money.FormatMinor(l.Amount), ref})
	}
	if err := w.WriteAll(rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
