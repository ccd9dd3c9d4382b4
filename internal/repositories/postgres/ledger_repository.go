package postgres

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"ridewallet/internal/models"
	"ridewallet/internal/repositories/interfaces"
	"ridewallet/internal/utils"
	"ridewallet/pkg/database"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

type ledgerRepository struct {
	db *sqlx.DB
}

func NewLedgerRepository(db *sqlx.DB) interfaces.LedgerRepository {
	return &ledgerRepository{db: db}
}

func (r *ledgerRepository) CompleteTopUp(ctx context.Context, completion *models.TopUpCompletion) (*models.LedgerResult, error) {
	result := &models.LedgerResult{}

	err := database.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		txn, err := getTransaction(ctx, tx, `
			SELECT `+transactionColumns+` FROM wallet_transactions
			WHERE stripe_session_id = $1
			FOR UPDATE`, completion.SessionID)
		if err != nil {
			return err
		}

		if txn.Status == models.TransactionStatusCompleted {
			wallet, err := getWallet(ctx, tx, `SELECT `+walletColumns+` FROM wallets WHERE id = $1`, txn.WalletID)
			if err != nil {
				return err
			}
			result.Transaction, result.Wallet, result.Duplicate = txn, wallet, true
			return nil
		}
		if !txn.Status.CanTransitionTo(models.TransactionStatusCompleted) {
			return fmt.Errorf("transaction %s is %s: %w", txn.ID, txn.Status, interfaces.ErrInvalidTransition)
		}

		now := time.Now().UTC()
		delta := txn.Amount.Mul(decimal.NewFromInt(int64(txn.Type.Sign())))
		wallet, err := adjustBalance(ctx, tx, txn.WalletID, delta, now)
		if err != nil {
			return err
		}

		meta := txn.Metadata.Merge(models.Metadata{models.MetaEventID: completion.EventID})
		var paymentIntentID *string
		if completion.PaymentIntentID != "" {
			paymentIntentID = &completion.PaymentIntentID
		}

		updated, err := getTransaction(ctx, tx, `
			UPDATE wallet_transactions
			SET status = $2,
				stripe_payment_intent_id = COALESCE($3, stripe_payment_intent_id),
				metadata = $4,
				updated_at = $5
			WHERE id = $1
			RETURNING `+transactionColumns,
			txn.ID, models.TransactionStatusCompleted, paymentIntentID, meta, now)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("payment intent %s already credited: %w", completion.PaymentIntentID, interfaces.ErrDuplicate)
			}
			return err
		}

		result.Transaction, result.Wallet = updated, wallet
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *ledgerRepository) FinalizeTransaction(ctx context.Context, id uuid.UUID, status models.TransactionStatus, meta models.Metadata) (*models.LedgerResult, error) {
	if status != models.TransactionStatusFailed && status != models.TransactionStatusExpired {
		return nil, fmt.Errorf("cannot finalize to %s: %w", status, interfaces.ErrInvalidTransition)
	}

	result := &models.LedgerResult{}
	err := database.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		txn, err := getTransaction(ctx, tx, `
			SELECT `+transactionColumns+` FROM wallet_transactions
			WHERE id = $1
			FOR UPDATE`, id)
		if err != nil {
			return err
		}

		if txn.Status == status {
			result.Transaction, result.Duplicate = txn, true
			return nil
		}
		if !txn.Status.CanTransitionTo(status) {
			return fmt.Errorf("transaction %s is %s: %w", txn.ID, txn.Status, interfaces.ErrInvalidTransition)
		}

		updated, err := getTransaction(ctx, tx, `
			UPDATE wallet_transactions
			SET status = $2, metadata = $3, updated_at = $4
			WHERE id = $1
			RETURNING `+transactionColumns,
			txn.ID, status, txn.Metadata.Merge(meta), time.Now().UTC())
		if err != nil {
			return err
		}
		result.Transaction = updated
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *ledgerRepository) Transfer(ctx context.Context, cmd *models.TransferCommand) (*models.TransferResult, error) {
	result := &models.TransferResult{TransferReference: cmd.Reference}

	err := database.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		// Lock in a stable order so opposing transfers cannot deadlock.
		first, second := cmd.FromWalletID, cmd.ToWalletID
		if bytes.Compare(first[:], second[:]) > 0 {
			first, second = second, first
		}
		locked := make(map[uuid.UUID]*models.Wallet, 2)
		for _, id := range []uuid.UUID{first, second} {
			wallet, err := lockWallet(ctx, tx, id)
			if err != nil {
				return err
			}
			locked[id] = wallet
		}

		from, to := locked[cmd.FromWalletID], locked[cmd.ToWalletID]
		if from.Currency != to.Currency {
			return fmt.Errorf("%s vs %s: %w", from.Currency, to.Currency, interfaces.ErrCurrencyMismatch)
		}

		now := time.Now().UTC()
		debited, err := getWallet(ctx, tx, `
			UPDATE wallets SET balance = balance - $2, updated_at = $3
			WHERE id = $1 AND balance >= $2
			RETURNING `+walletColumns, from.ID, cmd.Amount, now)
		if err != nil {
			if errors.Is(err, interfaces.ErrNotFound) {
				return fmt.Errorf("wallet %s: %w", from.ID, interfaces.ErrInsufficientFunds)
			}
			return err
		}

		credited, err := adjustBalance(ctx, tx, to.ID, cmd.Amount, now)
		if err != nil {
			return err
		}

		debit, credit := transferRows(cmd, from, to, now)
		if err := insertTransaction(ctx, tx, debit); err != nil {
			return err
		}
		if err := insertTransaction(ctx, tx, credit); err != nil {
			return err
		}

		result.FromWallet = debited.BalanceView()
		result.ToWallet = credited.BalanceView()
		result.Debit, result.Credit = debit, credit
		result.DebitTransactionID, result.CreditTransactionID = debit.ID, credit.ID
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func transferRows(cmd *models.TransferCommand, from, to *models.Wallet, now time.Time) (*models.WalletTransaction, *models.WalletTransaction) {
	base := models.Metadata{
		models.MetaTransferReference: cmd.Reference,
		models.MetaFromWalletID:      from.ID.String(),
		models.MetaToWalletID:        to.ID.String(),
	}
	if cmd.RequestID != "" {
		base[models.MetaRequestID] = cmd.RequestID
	}

	debit := &models.WalletTransaction{
		ID:              uuid.New(),
		WalletID:        from.ID,
		UserID:          from.UserID,
		Amount:          cmd.Amount,
		Type:            models.TransactionTypePayment,
		Status:          models.TransactionStatusCompleted,
		Reference:       cmd.Reference,
		Description:     cmd.Description,
		Metadata:        base.Merge(models.Metadata{models.MetaPartnerUserID: to.UserID.String()}),
		TransactionDate: now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	credit := &models.WalletTransaction{
		ID:              uuid.New(),
		WalletID:        to.ID,
		UserID:          to.UserID,
		Amount:          cmd.Amount,
		Type:            models.TransactionTypeEarnings,
		Status:          models.TransactionStatusCompleted,
		Reference:       cmd.Reference,
		Description:     cmd.Description,
		Metadata:        base.Merge(models.Metadata{models.MetaPartnerUserID: from.UserID.String()}),
		TransactionDate: now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	return debit, credit
}

func (r *ledgerRepository) CreditOrderEarnings(ctx context.Context, credit *models.OrderCredit) (*models.LedgerResult, error) {
	result := &models.LedgerResult{}

	err := database.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		// An order is credited once, to whichever wallet received it first.
		existing, err := findOrderEarnings(ctx, tx, credit.OrderID)
		if err == nil {
			wallet, err := getWalletByID(ctx, tx, existing.WalletID)
			if err != nil {
				return err
			}
			result.Transaction, result.Wallet, result.Duplicate = existing, wallet, true
			return nil
		}
		if !errors.Is(err, interfaces.ErrNotFound) {
			return err
		}

		if err := ensureWallet(ctx, tx, credit.DriverID, models.UserTypeDriver, credit.Currency); err != nil {
			return err
		}
		wallet, err := getWallet(ctx, tx, `
			SELECT `+walletColumns+` FROM wallets
			WHERE user_id = $1 AND user_type = $2
			FOR UPDATE`, credit.DriverID, models.UserTypeDriver)
		if err != nil {
			return err
		}
		if wallet.Currency != credit.Currency {
			return fmt.Errorf("%s vs %s: %w", wallet.Currency, credit.Currency, interfaces.ErrCurrencyMismatch)
		}

		now := time.Now().UTC()
		meta := models.Metadata{
			models.MetaOrderID: credit.OrderID,
			models.MetaSource:  "order_completion",
		}
		if credit.RequestID != "" {
			meta[models.MetaRequestID] = credit.RequestID
		}
		txn := &models.WalletTransaction{
			ID:              uuid.New(),
			WalletID:        wallet.ID,
			UserID:          wallet.UserID,
			Amount:          credit.Amount,
			Type:            models.TransactionTypeEarnings,
			Status:          models.TransactionStatusCompleted,
			Reference:       utils.OrderCreditRefPrefix + credit.OrderID,
			Description:     "Earnings for order " + credit.OrderID,
			Metadata:        meta,
			TransactionDate: now,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := insertTransaction(ctx, tx, txn); err != nil {
			return err
		}

		updated, err := adjustBalance(ctx, tx, wallet.ID, credit.Amount, now)
		if err != nil {
			return err
		}
		result.Transaction, result.Wallet = txn, updated
		return nil
	})

	// A concurrent credit for the same order won the unique index.
	if errors.Is(err, interfaces.ErrDuplicate) {
		existing, findErr := findOrderEarnings(ctx, r.db, credit.OrderID)
		if findErr != nil {
			return nil, findErr
		}
		wallet, walletErr := getWalletByID(ctx, r.db, existing.WalletID)
		if walletErr != nil {
			return nil, walletErr
		}
		return &models.LedgerResult{Transaction: existing, Wallet: wallet, Duplicate: true}, nil
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

func getWalletByID(ctx context.Context, q sqlx.QueryerContext, id uuid.UUID) (*models.Wallet, error) {
	return getWallet(ctx, q, `SELECT `+walletColumns+` FROM wallets WHERE id = $1`, id)
}

func findOrderEarnings(ctx context.Context, q sqlx.QueryerContext, orderID string) (*models.WalletTransaction, error) {
	return getTransaction(ctx, q, `
		SELECT `+transactionColumns+` FROM wallet_transactions
		WHERE type = 'earnings' AND metadata->>'order_id' = $1
		LIMIT 1`, orderID)
}
