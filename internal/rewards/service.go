package rewards

import (
	"context"

	"tng-backend/internal/domain"
	"tng-backend/internal/transfer"

	"github.com/google/uuid"
)

// Service issues rewards from the explicit system account. Issuance is an
// ordinary double-entry transfer: the system account is debited like any
// sender and must be funded by treasury deposits first, so rewards can
// never mint value outside the ledger's conservation invariant.
type Service struct {
	Engine *transfer.Engine
}

// Issue pays amount of assetSymbol to the user, keyed for idempotent retries.
func (s *Service) Issue(ctx context.Context, userID uuid.UUID, assetSymbol string, amount int64, idempotencyKey, description string) (*transfer.Result, error) {
	if description == "" {
		description = "reward"
	}
	return s.Engine.Execute(ctx, transfer.Request{
		FromUserID:     domain.SystemUserID,
		ToUserID:       userID,
		AssetSymbol:    assetSymbol,
		Amount:         amount,
		IdempotencyKey: idempotencyKey,
		Description:    description,
		TxType:         domain.TxReward,
	})
}
