package usecase

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/everstory-ai/everstory/pkg/domain/model"
	"github.com/everstory-ai/everstory/pkg/utils/logging"
)

// CalculateCallCost converts a call's duration into cost, persists both on
// the call record, and deducts the cost from the linked user's balance.
// Billing is per started minute.
func (uc *UseCases) CalculateCallCost(ctx context.Context, callID model.CallID, durationSec int) error {
	call, err := uc.repo.Call().Get(ctx, callID)
	if err != nil {
		return goerr.Wrap(err, "failed to load call for billing", goerr.V("callID", callID))
	}

	minutes := (durationSec + 59) / 60
	costCents := minutes * uc.costPerMinuteCents

	call.DurationSec = durationSec
	call.CostCents = costCents
	call.UpdatedAt = time.Now().UTC()
	if err := uc.repo.Call().Update(ctx, call); err != nil {
		return goerr.Wrap(err, "failed to persist call cost", goerr.V("callID", callID))
	}

	if call.UserID != "" {
		user, err := uc.repo.User().Get(ctx, call.UserID)
		if err != nil {
			return goerr.Wrap(err, "failed to load user for billing", goerr.V("userID", call.UserID))
		}
		user.BalanceCents -= costCents
		user.UpdatedAt = time.Now().UTC()
		if err := uc.repo.User().Update(ctx, user); err != nil {
			return goerr.Wrap(err, "failed to deduct balance", goerr.V("userID", user.ID))
		}
	}

	logging.From(ctx).Info("call billed",
		"call_id", callID,
		"duration_sec", durationSec,
		"cost_cents", costCents,
		"user_id", call.UserID,
	)
	return nil
}
