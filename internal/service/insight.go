package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/family-finance/internal/apperror"
	"github.com/sakif/family-finance/internal/insight"
	"github.com/sakif/family-finance/internal/model"
	"github.com/sakif/family-finance/internal/stats"
)

const (
	InsightUnavailable = "Análise indisponível."
	InsightFailed      = "Erro na análise."
)

// Insight is the AI-written note about one month. Generated is false when
// Text is one of the fallback messages.
type Insight struct {
	Month     string `json:"month"`
	Text      string `json:"text"`
	Generated bool   `json:"generated"`
}

type InsightService struct {
	txs      TransactionReader
	provider insight.Provider
	timeout  time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

func NewInsightService(txs TransactionReader, provider insight.Provider, timeout time.Duration, logger *slog.Logger) *InsightService {
	return &InsightService{
		txs:      txs,
		provider: provider,
		timeout:  timeout,
		logger:   logger,
		now:      time.Now,
	}
}

// MonthlySummary asks the provider to comment on viewerID's month. Provider
// problems never surface as errors: the caller gets a fallback text instead.
// Only failing to read the transactions is an error.
func (s *InsightService) MonthlySummary(ctx context.Context, viewerID, month string) (*Insight, error) {
	if month == "" {
		month = model.MonthOf(s.now())
	} else if !model.ValidMonth(month) {
		return nil, apperror.ValidationFailed("month", "month must be YYYY-MM")
	}

	txs, err := s.txs.GetAll(ctx, viewerID)
	if err != nil {
		return nil, fmt.Errorf("service/insight: loading transactions: %w", err)
	}
	summary := stats.Summarize(txs, month, s.now())

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	text, err := s.provider.Generate(ctx, BuildInsightPrompt(summary))
	switch {
	case errors.Is(err, insight.ErrDisabled):
		return &Insight{Month: month, Text: InsightUnavailable}, nil
	case err != nil:
		s.logger.Warn("insight generation failed",
			slog.String("userID", viewerID),
			slog.String("month", month),
			slog.String("error", err.Error()),
		)
		return &Insight{Month: month, Text: InsightFailed}, nil
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return &Insight{Month: month, Text: InsightUnavailable}, nil
	}
	return &Insight{Month: month, Text: text, Generated: true}, nil
}

// BuildInsightPrompt renders the month's figures into the pt-BR prompt.
func BuildInsightPrompt(s stats.Summary) string {
	cats := make([]string, len(s.CategoryBreakdown))
	for i, c := range s.CategoryBreakdown {
		cats[i] = fmt.Sprintf("%s: R$ %s", c.Category, c.Total.String())
	}

	return fmt.Sprintf(
		"Analise a saúde financeira familiar: Receita R$ %s, Despesa R$ %s, Investimentos R$ %s. "+
			"Categorias: %s. Responda como um CFO familiar em Português do Brasil, curto e motivador.",
		s.Totals.Income.String(),
		s.Totals.Expense.String(),
		s.InvestmentTotal.String(),
		strings.Join(cats, ", "),
	)
}
