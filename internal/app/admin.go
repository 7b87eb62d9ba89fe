/**
 * @description
 * This file contains the administrative controller: privileged mutation of the
 * engine's global parameters. Every operation is gated on a single fixed
 * administrative account established at deployment; any other caller receives
 * ErrUnauthorized. There is no role system, just an identity comparison on
 * every privileged entry point.
 */

package app

import (
	"context"
	"fmt"
	"log"
)

func (s *Service) requireAdmin(caller string) error {
	if caller == "" || caller != s.adminAccount {
		return ErrUnauthorized
	}
	return nil
}

// SetOperational flips the pause flag. Repeated calls with the same value are
// idempotent.
func (s *Service) SetOperational(ctx context.Context, caller string, operational bool) error {
	if err := s.requireAdmin(caller); err != nil {
		return err
	}
	if err := s.repo.SetPaused(ctx, !operational); err != nil {
		return fmt.Errorf("failed to set operational flag: %w", err)
	}
	log.Printf("level=info component=admin op=set_operational operational=%t", operational)
	return nil
}

// SetFeeRate assigns the fee rate in basis points (denominator 1000).
func (s *Service) SetFeeRate(ctx context.Context, caller string, basisPoints int64) error {
	if err := s.requireAdmin(caller); err != nil {
		return err
	}
	if basisPoints < 0 || basisPoints > MaxFeeBasisPoints {
		return ErrInvalidFeeRate
	}
	if err := s.repo.SetFeeBasisPoints(ctx, basisPoints); err != nil {
		return fmt.Errorf("failed to set fee rate: %w", err)
	}
	log.Printf("level=info component=admin op=set_fee_rate basis_points=%d", basisPoints)
	return nil
}

// SetTreasury assigns the account that collects per-leg fees.
func (s *Service) SetTreasury(ctx context.Context, caller, account string) error {
	if err := s.requireAdmin(caller); err != nil {
		return err
	}
	if err := s.repo.SetTreasuryAccount(ctx, account); err != nil {
		return fmt.Errorf("failed to set treasury account: %w", err)
	}
	log.Printf("level=info component=admin op=set_treasury account=%s", account)
	return nil
}

// Restrict adds an account to the trust registry's restricted set. A
// restricted account may not receive transfers.
func (s *Service) Restrict(ctx context.Context, caller, account string) error {
	if err := s.requireAdmin(caller); err != nil {
		return err
	}
	if err := s.repo.Restrict(ctx, account, s.now()); err != nil {
		return fmt.Errorf("failed to restrict account: %w", err)
	}
	log.Printf("level=info component=admin op=restrict account=%s", account)
	return nil
}

// Unrestrict removes an account from the restricted set.
func (s *Service) Unrestrict(ctx context.Context, caller, account string) error {
	if err := s.requireAdmin(caller); err != nil {
		return err
	}
	if err := s.repo.Unrestrict(ctx, account); err != nil {
		return fmt.Errorf("failed to unrestrict account: %w", err)
	}
	log.Printf("level=info component=admin op=unrestrict account=%s", account)
	return nil
}

// GrantUnlimitedPrivilege exempts an account from velocity limits.
func (s *Service) GrantUnlimitedPrivilege(ctx context.Context, caller, account string) error {
	if err := s.requireAdmin(caller); err != nil {
		return err
	}
	if err := s.repo.GrantPrivilege(ctx, account); err != nil {
		return fmt.Errorf("failed to grant privilege: %w", err)
	}
	log.Printf("level=info component=admin op=grant_privilege account=%s", account)
	return nil
}

// EmergencyWithdraw moves funds held by the engine's custodial account to the
// administrative account. It fails when the custodial balance is insufficient.
func (s *Service) EmergencyWithdraw(ctx context.Context, caller string, amount int64) error {
	if err := s.requireAdmin(caller); err != nil {
		return err
	}
	if amount < 1 {
		return ErrInvalidAmount
	}

	balance, err := s.ledger.GetBalance(ctx, s.custodialAccount)
	if err != nil {
		return fmt.Errorf("failed to query custodial balance: %w", err)
	}
	if balance < amount {
		return ErrInsufficientBalance
	}
	if err := s.ledger.Transfer(ctx, amount, s.custodialAccount, s.adminAccount); err != nil {
		log.Printf("level=error component=admin op=emergency_withdraw msg=\"custodial transfer failed\" amount=%d err=%v", amount, err)
		return fmt.Errorf("emergency withdrawal: %w", ErrTransferExecutionFailed)
	}
	log.Printf("level=info component=admin op=emergency_withdraw amount=%d", amount)
	return nil
}
