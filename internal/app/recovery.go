/**
 * @description
 * This file contains the foreign-asset-recovery pathway: a thin pass-through
 * that lets the administrator move assets mistakenly sent to the engine's
 * custodial account out through an externally supplied transfer capability.
 * The capability is injected per call rather than resolved dynamically.
 */

package app

import (
	"context"
	"fmt"
	"log"
)

// AssetContract is the generic asset-transfer capability consumed by the
// recovery pathway. Any contract exposing this method set can be recovered
// from; the engine never interprets the asset beyond calling Transfer.
type AssetContract interface {
	Name(ctx context.Context) (string, error)
	Symbol(ctx context.Context) (string, error)
	Decimals(ctx context.Context) (uint8, error)
	BalanceOf(ctx context.Context, account string) (int64, error)
	TotalSupply(ctx context.Context) (int64, error)
	TokenURI(ctx context.Context) (*string, error)
	Transfer(ctx context.Context, amount int64, from, to string, memo *string) (bool, error)
}

// RecoverForeignAsset delegates an asset transfer from the custodial account
// to the administrative account via the supplied capability. Success or
// failure is whatever the capability reports.
func (s *Service) RecoverForeignAsset(ctx context.Context, caller string, asset AssetContract, amount int64) error {
	if err := s.requireAdmin(caller); err != nil {
		return err
	}
	if asset == nil {
		return fmt.Errorf("no asset capability supplied: %w", ErrRecoveryFailed)
	}
	if amount < 1 {
		return ErrInvalidAmount
	}

	ok, err := asset.Transfer(ctx, amount, s.custodialAccount, s.adminAccount, nil)
	if err != nil {
		log.Printf("level=warn component=admin op=recover_foreign_asset outcome=failed amount=%d err=%v", amount, err)
		return fmt.Errorf("asset transfer: %v: %w", err, ErrRecoveryFailed)
	}
	if !ok {
		log.Printf("level=warn component=admin op=recover_foreign_asset outcome=rejected amount=%d", amount)
		return fmt.Errorf("asset transfer rejected: %w", ErrRecoveryFailed)
	}
	log.Printf("level=info component=admin op=recover_foreign_asset amount=%d", amount)
	return nil
}
