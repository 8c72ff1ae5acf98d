package ledger

import (
	"context"
	"log/slog"

	id "profilereg/pkg/domain"
)

// BurnSink destroys forfeited value by shrinking total issuance.
type BurnSink struct {
	ledger *Memory
	logger *slog.Logger
}

func NewBurnSink(ledger *Memory, logger *slog.Logger) *BurnSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &BurnSink{ledger: ledger, logger: logger}
}

func (s *BurnSink) OnForfeited(ctx context.Context, value id.Forfeited) {
	if value.Amount.IsZero() {
		return
	}
	s.ledger.burn(value.Amount)
	s.logger.InfoContext(ctx, "forfeited value burned",
		"source", value.Source.String(),
		"amount", uint64(value.Amount),
	)
}

// TreasurySink redirects forfeited value to a treasury account's free balance.
type TreasurySink struct {
	ledger   *Memory
	treasury id.AccountID
	logger   *slog.Logger
}

func NewTreasurySink(ledger *Memory, treasury id.AccountID, logger *slog.Logger) *TreasurySink {
	if logger == nil {
		logger = slog.Default()
	}
	return &TreasurySink{ledger: ledger, treasury: treasury, logger: logger}
}

func (s *TreasurySink) OnForfeited(ctx context.Context, value id.Forfeited) {
	if value.Amount.IsZero() {
		return
	}
	s.ledger.credit(s.treasury, value.Amount)
	s.logger.InfoContext(ctx, "forfeited value sent to treasury",
		"source", value.Source.String(),
		"treasury", s.treasury.String(),
		"amount", uint64(value.Amount),
	)
}
