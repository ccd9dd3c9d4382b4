// Package memory is a process-local implementation of the wallet repositories.
// A single mutex stands in for the row locks and transactions of the
// Postgres implementation, so every ledger operation is atomic.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"ridewallet/internal/models"
	"ridewallet/internal/repositories/interfaces"
	"ridewallet/internal/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Store struct {
	mu           sync.Mutex
	wallets      map[uuid.UUID]*models.Wallet
	transactions map[uuid.UUID]*models.WalletTransaction
	now          func() time.Time

	// FailCreate, when set, is returned by the next transaction inserts.
	FailCreate error
}

func NewStore() *Store {
	return &Store{
		wallets:      make(map[uuid.UUID]*models.Wallet),
		transactions: make(map[uuid.UUID]*models.WalletTransaction),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) Wallets() interfaces.WalletRepository           { return walletView{s} }
func (s *Store) Transactions() interfaces.TransactionRepository { return transactionView{s} }
func (s *Store) Ledger() interfaces.LedgerRepository            { return ledgerView{s} }

// SetClock overrides the time source used for new rows.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// PutWallet seeds a wallet, replacing any wallet with the same id.
func (s *Store) PutWallet(w *models.Wallet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w2 := *w
	s.wallets[w.ID] = &w2
}

// TotalBalance sums every wallet in currency.
func (s *Store) TotalBalance(currency string) decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := decimal.Zero
	for _, w := range s.wallets {
		if w.Currency == currency {
			total = total.Add(w.Balance)
		}
	}
	return total
}

// TransactionCount reports how many ledger rows exist.
func (s *Store) TransactionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.transactions)
}

func copyWallet(w *models.Wallet) *models.Wallet {
	if w == nil {
		return nil
	}
	out := *w
	return &out
}

func copyTransaction(t *models.WalletTransaction) *models.WalletTransaction {
	if t == nil {
		return nil
	}
	out := *t
	out.Metadata = t.Metadata.Merge(nil)
	if t.StripeSessionID != nil {
		v := *t.StripeSessionID
		out.StripeSessionID = &v
	}
	if t.StripePaymentIntentID != nil {
		v := *t.StripePaymentIntentID
		out.StripePaymentIntentID = &v
	}
	return &out
}

func (s *Store) walletByUser(userID uuid.UUID, userType models.UserType) *models.Wallet {
	for _, w := range s.wallets {
		if w.UserID == userID && w.UserType == userType {
			return w
		}
	}
	return nil
}

func (s *Store) ensureWallet(userID uuid.UUID, userType models.UserType, currency string) *models.Wallet {
	if w := s.walletByUser(userID, userType); w != nil {
		return w
	}
	now := s.now()
	w := &models.Wallet{
		ID:        uuid.New(),
		UserID:    userID,
		UserType:  userType,
		Balance:   decimal.Zero,
		Currency:  strings.ToUpper(currency),
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.wallets[w.ID] = w
	return w
}

func (s *Store) findTransaction(match func(*models.WalletTransaction) bool) []*models.WalletTransaction {
	var out []*models.WalletTransaction
	for _, t := range s.transactions {
		if match(t) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// checkUnique mirrors the unique indexes of the wallet_transactions table.
func (s *Store) checkUnique(t *models.WalletTransaction) error {
	for _, existing := range s.transactions {
		if existing.ID == t.ID {
			return fmt.Errorf("transaction %s: %w", t.ID, interfaces.ErrDuplicate)
		}
		if t.StripeSessionID != nil && existing.StripeSessionID != nil && *existing.StripeSessionID == *t.StripeSessionID {
			return fmt.Errorf("session %s: %w", *t.StripeSessionID, interfaces.ErrDuplicate)
		}
		if orderID, ok := t.Metadata[models.MetaOrderID]; ok && t.Type == models.TransactionTypeEarnings &&
			existing.Type == models.TransactionTypeEarnings && existing.Metadata[models.MetaOrderID] == orderID {
			return fmt.Errorf("order %s: %w", orderID, interfaces.ErrDuplicate)
		}
	}
	return nil
}

func (s *Store) insert(t *models.WalletTransaction) error {
	if s.FailCreate != nil {
		return s.FailCreate
	}
	if err := s.checkUnique(t); err != nil {
		return err
	}
	s.transactions[t.ID] = copyTransaction(t)
	return nil
}

type walletView struct{ s *Store }

func (v walletView) GetByID(ctx context.Context, id uuid.UUID) (*models.Wallet, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	w, ok := v.s.wallets[id]
	if !ok {
		return nil, fmt.Errorf("wallet: %w", interfaces.ErrNotFound)
	}
	return copyWallet(w), nil
}

func (v walletView) GetByUser(ctx context.Context, userID uuid.UUID, userType models.UserType) (*models.Wallet, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	w := v.s.walletByUser(userID, userType)
	if w == nil {
		return nil, fmt.Errorf("wallet: %w", interfaces.ErrNotFound)
	}
	return copyWallet(w), nil
}

func (v walletView) GetOrCreate(ctx context.Context, userID uuid.UUID, userType models.UserType, currency string) (*models.Wallet, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	return copyWallet(v.s.ensureWallet(userID, userType, currency)), nil
}

type transactionView struct{ s *Store }

func (v transactionView) Create(ctx context.Context, tx *models.WalletTransaction) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	if _, ok := v.s.wallets[tx.WalletID]; !ok {
		return fmt.Errorf("wallet %s: %w", tx.WalletID, interfaces.ErrNotFound)
	}
	return v.s.insert(tx)
}

func (v transactionView) GetByID(ctx context.Context, id uuid.UUID) (*models.WalletTransaction, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	t, ok := v.s.transactions[id]
	if !ok {
		return nil, fmt.Errorf("transaction: %w", interfaces.ErrNotFound)
	}
	return copyTransaction(t), nil
}

func (v transactionView) first(match func(*models.WalletTransaction) bool) (*models.WalletTransaction, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	found := v.s.findTransaction(match)
	if len(found) == 0 {
		return nil, fmt.Errorf("transaction: %w", interfaces.ErrNotFound)
	}
	return copyTransaction(found[0]), nil
}

func (v transactionView) GetBySessionID(ctx context.Context, sessionID string) (*models.WalletTransaction, error) {
	return v.first(func(t *models.WalletTransaction) bool {
		return t.StripeSessionID != nil && *t.StripeSessionID == sessionID
	})
}

func (v transactionView) GetByPaymentIntentID(ctx context.Context, paymentIntentID string) (*models.WalletTransaction, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	found := v.s.findTransaction(func(t *models.WalletTransaction) bool {
		return t.StripePaymentIntentID != nil && *t.StripePaymentIntentID == paymentIntentID
	})
	if len(found) == 0 {
		return nil, fmt.Errorf("transaction: %w", interfaces.ErrNotFound)
	}
	for _, t := range found {
		if t.Status == models.TransactionStatusCompleted {
			return copyTransaction(t), nil
		}
	}
	return copyTransaction(found[len(found)-1]), nil
}

func (v transactionView) GetByReference(ctx context.Context, reference string) (*models.WalletTransaction, error) {
	return v.first(func(t *models.WalletTransaction) bool { return t.Reference == reference })
}

func (v transactionView) ListByWallet(ctx context.Context, walletID uuid.UUID, params *utils.PaginationParams) ([]*models.WalletTransaction, int64, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	found := v.s.findTransaction(func(t *models.WalletTransaction) bool { return t.WalletID == walletID })
	sort.SliceStable(found, func(i, j int) bool {
		if params.Order == "asc" {
			return found[i].TransactionDate.Before(found[j].TransactionDate)
		}
		return found[i].TransactionDate.After(found[j].TransactionDate)
	})

	total := int64(len(found))
	start := params.GetSkip()
	if start > len(found) {
		start = len(found)
	}
	end := start + params.GetLimit()
	if end > len(found) {
		end = len(found)
	}

	out := make([]*models.WalletTransaction, 0, end-start)
	for _, t := range found[start:end] {
		out = append(out, copyTransaction(t))
	}
	return out, total, nil
}

func (v transactionView) ListStaleUnsettled(ctx context.Context, olderThan time.Time, limit int) ([]*models.WalletTransaction, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	found := v.s.findTransaction(func(t *models.WalletTransaction) bool {
		return !t.Status.IsTerminal() && t.Type == models.TransactionTypeDeposit &&
			t.StripeSessionID != nil && t.CreatedAt.Before(olderThan)
	})
	if len(found) > limit {
		found = found[:limit]
	}
	out := make([]*models.WalletTransaction, 0, len(found))
	for _, t := range found {
		out = append(out, copyTransaction(t))
	}
	return out, nil
}

type ledgerView struct{ s *Store }

func (v ledgerView) CompleteTopUp(ctx context.Context, completion *models.TopUpCompletion) (*models.LedgerResult, error) {
	s := v.s
	s.mu.Lock()
	defer s.mu.Unlock()

	found := s.findTransaction(func(t *models.WalletTransaction) bool {
		return t.StripeSessionID != nil && *t.StripeSessionID == completion.SessionID
	})
	if len(found) == 0 {
		return nil, fmt.Errorf("transaction: %w", interfaces.ErrNotFound)
	}
	txn := found[0]
	wallet, ok := s.wallets[txn.WalletID]
	if !ok {
		return nil, fmt.Errorf("wallet: %w", interfaces.ErrNotFound)
	}

	if txn.Status == models.TransactionStatusCompleted {
		return &models.LedgerResult{Transaction: copyTransaction(txn), Wallet: copyWallet(wallet), Duplicate: true}, nil
	}
	if !txn.Status.CanTransitionTo(models.TransactionStatusCompleted) {
		return nil, fmt.Errorf("transaction %s is %s: %w", txn.ID, txn.Status, interfaces.ErrInvalidTransition)
	}
	if completion.PaymentIntentID != "" {
		for _, other := range s.transactions {
			if other.ID != txn.ID && other.Status == models.TransactionStatusCompleted &&
				other.StripePaymentIntentID != nil && *other.StripePaymentIntentID == completion.PaymentIntentID {
				return nil, fmt.Errorf("payment intent %s already credited: %w", completion.PaymentIntentID, interfaces.ErrDuplicate)
			}
		}
	}

	newBalance := wallet.Balance.Add(txn.Amount.Mul(decimal.NewFromInt(int64(txn.Type.Sign()))))
	if newBalance.IsNegative() {
		return nil, fmt.Errorf("wallet %s: %w", wallet.ID, interfaces.ErrInsufficientFunds)
	}

	now := s.now()
	wallet.Balance = newBalance
	wallet.UpdatedAt = now
	txn.Status = models.TransactionStatusCompleted
	if completion.PaymentIntentID != "" {
		pi := completion.PaymentIntentID
		txn.StripePaymentIntentID = &pi
	}
	txn.Metadata = txn.Metadata.Merge(models.Metadata{models.MetaEventID: completion.EventID})
	txn.UpdatedAt = now

	return &models.LedgerResult{Transaction: copyTransaction(txn), Wallet: copyWallet(wallet)}, nil
}

func (v ledgerView) FinalizeTransaction(ctx context.Context, id uuid.UUID, status models.TransactionStatus, meta models.Metadata) (*models.LedgerResult, error) {
	if status != models.TransactionStatusFailed && status != models.TransactionStatusExpired {
		return nil, fmt.Errorf("cannot finalize to %s: %w", status, interfaces.ErrInvalidTransition)
	}

	s := v.s
	s.mu.Lock()
	defer s.mu.Unlock()

	txn, ok := s.transactions[id]
	if !ok {
		return nil, fmt.Errorf("transaction: %w", interfaces.ErrNotFound)
	}
	if txn.Status == status {
		return &models.LedgerResult{Transaction: copyTransaction(txn), Duplicate: true}, nil
	}
	if !txn.Status.CanTransitionTo(status) {
		return nil, fmt.Errorf("transaction %s is %s: %w", txn.ID, txn.Status, interfaces.ErrInvalidTransition)
	}

	txn.Status = status
	txn.Metadata = txn.Metadata.Merge(meta)
	txn.UpdatedAt = s.now()
	return &models.LedgerResult{Transaction: copyTransaction(txn)}, nil
}

func (v ledgerView) Transfer(ctx context.Context, cmd *models.TransferCommand) (*models.TransferResult, error) {
	s := v.s
	s.mu.Lock()
	defer s.mu.Unlock()

	from, ok := s.wallets[cmd.FromWalletID]
	if !ok {
		return nil, fmt.Errorf("wallet %s: %w", cmd.FromWalletID, interfaces.ErrNotFound)
	}
	to, ok := s.wallets[cmd.ToWalletID]
	if !ok {
		return nil, fmt.Errorf("wallet %s: %w", cmd.ToWalletID, interfaces.ErrNotFound)
	}
	if from.Currency != to.Currency {
		return nil, fmt.Errorf("%s vs %s: %w", from.Currency, to.Currency, interfaces.ErrCurrencyMismatch)
	}
	if from.Balance.LessThan(cmd.Amount) {
		return nil, fmt.Errorf("wallet %s: %w", from.ID, interfaces.ErrInsufficientFunds)
	}

	now := s.now()
	debit, credit := newTransferRows(cmd, from, to, now)
	if err := s.checkUnique(debit); err != nil {
		return nil, err
	}
	if err := s.checkUnique(credit); err != nil {
		return nil, err
	}
	if s.FailCreate != nil {
		return nil, s.FailCreate
	}

	from.Balance = from.Balance.Sub(cmd.Amount)
	from.UpdatedAt = now
	to.Balance = to.Balance.Add(cmd.Amount)
	to.UpdatedAt = now
	s.transactions[debit.ID] = debit
	s.transactions[credit.ID] = credit

	return &models.TransferResult{
		TransferReference:   cmd.Reference,
		FromWallet:          from.BalanceView(),
		ToWallet:            to.BalanceView(),
		DebitTransactionID:  debit.ID,
		CreditTransactionID: credit.ID,
		Debit:               copyTransaction(debit),
		Credit:              copyTransaction(credit),
	}, nil
}

func newTransferRows(cmd *models.TransferCommand, from, to *models.Wallet, now time.Time) (*models.WalletTransaction, *models.WalletTransaction) {
	base := models.Metadata{
		models.MetaTransferReference: cmd.Reference,
		models.MetaFromWalletID:      from.ID.String(),
		models.MetaToWalletID:        to.ID.String(),
	}
	if cmd.RequestID != "" {
		base[models.MetaRequestID] = cmd.RequestID
	}

	row := func(w *models.Wallet, partner uuid.UUID, txType models.TransactionType) *models.WalletTransaction {
		return &models.WalletTransaction{
			ID:              uuid.New(),
			WalletID:        w.ID,
			UserID:          w.UserID,
			Amount:          cmd.Amount,
			Type:            txType,
			Status:          models.TransactionStatusCompleted,
			Reference:       cmd.Reference,
			Description:     cmd.Description,
			Metadata:        base.Merge(models.Metadata{models.MetaPartnerUserID: partner.String()}),
			TransactionDate: now,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
	}
	return row(from, to.UserID, models.TransactionTypePayment), row(to, from.UserID, models.TransactionTypeEarnings)
}

func (v ledgerView) CreditOrderEarnings(ctx context.Context, credit *models.OrderCredit) (*models.LedgerResult, error) {
	s := v.s
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range s.transactions {
		if t.Type == models.TransactionTypeEarnings && t.Metadata[models.MetaOrderID] == credit.OrderID {
			return &models.LedgerResult{
				Transaction: copyTransaction(t),
				Wallet:      copyWallet(s.wallets[t.WalletID]),
				Duplicate:   true,
			}, nil
		}
	}

	wallet := s.ensureWallet(credit.DriverID, models.UserTypeDriver, credit.Currency)
	if wallet.Currency != credit.Currency {
		return nil, fmt.Errorf("%s vs %s: %w", wallet.Currency, credit.Currency, interfaces.ErrCurrencyMismatch)
	}

	now := s.now()
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
	if err := s.insert(txn); err != nil {
		return nil, err
	}

	wallet.Balance = wallet.Balance.Add(credit.Amount)
	wallet.UpdatedAt = now
	return &models.LedgerResult{Transaction: copyTransaction(txn), Wallet: copyWallet(wallet)}, nil
}
