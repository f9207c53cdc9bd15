package services

import (
	"context"
	"errors"
	"fmt"

	"stitchmart/internal/caching"
	"stitchmart/internal/common"
	"stitchmart/internal/metrics"
	"stitchmart/internal/models"
	"stitchmart/internal/payments"
	"stitchmart/internal/repositories"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TransactionService drives a purchase through the payment provider.
type TransactionService interface {
	// Checkout opens a pending transaction for the design and returns the
	// provider URL where the buyer approves it.
	Checkout(ctx context.Context, userID, designID uuid.UUID) (*models.CheckoutResponse, error)
	// Execute settles an approved payment and counts the sale.
	Execute(ctx context.Context, userID uuid.UUID, req models.ExecutePaymentRequest) (*models.Transaction, error)
	Cancel(ctx context.Context, userID uuid.UUID, token string) (*models.Transaction, error)
	Purchases(ctx context.Context, userID uuid.UUID) ([]models.Purchase, error)
}

type transactionService struct {
	transactions repositories.TransactionRepository
	designs      repositories.DesignRepository
	provider     payments.Provider
	cache        caching.CacheService
	metrics      *metrics.Collector
	logger       *zap.Logger
}

func NewTransactionService(transactions repositories.TransactionRepository, designs repositories.DesignRepository, provider payments.Provider, cache caching.CacheService, collector *metrics.Collector, logger *zap.Logger) TransactionService {
	return &transactionService{
		transactions: transactions,
		designs:      designs,
		provider:     provider,
		cache:        cache,
		metrics:      collector,
		logger:       logger,
	}
}

func (s *transactionService) Checkout(ctx context.Context, userID, designID uuid.UUID) (*models.CheckoutResponse, error) {
	design, err := s.designs.GetByID(ctx, designID)
	if err != nil {
		return nil, storeError(err, "Design")
	}
	if design.AssetState != models.AssetStateComplete {
		return nil, common.NotFound("Design")
	}

	tx := &models.Transaction{
		ID:            uuid.New(),
		UserID:        userID,
		DesignID:      designID,
		Amount:        design.Price,
		Status:        models.TransactionPending,
		PaymentMethod: models.PaymentMethodPayPal,
	}
	if err := s.transactions.Create(ctx, tx); err != nil {
		return nil, storeError(err, "Transaction")
	}
	log := s.logger.With(zap.Stringer("transaction_id", tx.ID))

	payment, err := s.provider.CreatePayment(ctx, payments.Order{
		Reference:   tx.ID.String(),
		Description: design.Title,
		Amount:      design.Price,
	})
	if err != nil {
		log.Warn("payment creation failed", zap.Error(err))
		s.fail(ctx, tx)
		return nil, common.Upstream("create payment", err)
	}

	tx.PaymentID = &payment.ID
	if payment.Token != "" {
		tx.Token = &payment.Token
	}
	if err := s.transactions.UpdateStatus(ctx, tx); err != nil {
		return nil, storeError(err, "Transaction")
	}
	s.metrics.Payment(string(models.TransactionPending))
	log.Info("checkout started", zap.String("payment_id", payment.ID))

	return &models.CheckoutResponse{TransactionID: tx.ID, ApprovalURL: payment.ApprovalURL}, nil
}

func (s *transactionService) Execute(ctx context.Context, userID uuid.UUID, req models.ExecutePaymentRequest) (*models.Transaction, error) {
	tx, err := s.owned(ctx, userID, func() (*models.Transaction, error) {
		return s.transactions.GetByPaymentID(ctx, req.PaymentID)
	})
	if err != nil {
		return nil, err
	}
	if tx.Status != models.TransactionPending {
		return nil, common.Conflict(fmt.Sprintf("transaction is already %s", tx.Status))
	}
	log := s.logger.With(zap.Stringer("transaction_id", tx.ID))

	exec, err := s.provider.ExecutePayment(ctx, req.PaymentID, req.PayerID)
	if err != nil {
		log.Warn("payment execution failed", zap.Error(err))
		s.fail(ctx, tx)
		return nil, common.Upstream("execute payment", err)
	}
	if !exec.Approved() {
		log.Warn("payment not approved", zap.String("state", exec.State))
		s.fail(ctx, tx)
		return nil, common.Conflict("payment was not approved")
	}

	tx.Token = &req.Token
	tx.PayerID = &req.PayerID
	if err := s.transition(ctx, tx, models.TransactionCompleted); err != nil {
		return nil, err
	}

	if err := s.designs.IncrementSales(ctx, tx.DesignID); err != nil {
		// The design may have been removed since checkout; the payment stands.
		log.Warn("sales counter not incremented", zap.Stringer("design_id", tx.DesignID), zap.Error(err))
	} else {
		s.invalidateDesign(ctx, tx.DesignID)
	}
	log.Info("payment completed")
	return tx, nil
}

func (s *transactionService) Cancel(ctx context.Context, userID uuid.UUID, token string) (*models.Transaction, error) {
	tx, err := s.owned(ctx, userID, func() (*models.Transaction, error) {
		return s.transactions.GetByToken(ctx, token)
	})
	if err != nil {
		return nil, err
	}
	if err := s.transition(ctx, tx, models.TransactionCancelled); err != nil {
		return nil, err
	}
	return tx, nil
}

func (s *transactionService) Purchases(ctx context.Context, userID uuid.UUID) ([]models.Purchase, error) {
	txs, err := s.transactions.ListByUser(ctx, userID, models.TransactionCompleted)
	if err != nil {
		return nil, common.Upstream("list purchases", err)
	}
	return purchases(ctx, s.designs, nil, txs)
}

// invalidateDesign drops cached copies that carry the old sales count.
func (s *transactionService) invalidateDesign(ctx context.Context, id uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteDesign(ctx, id); err != nil {
		s.logger.Warn("cache invalidation failed", zap.Stringer("design_id", id), zap.Error(err))
	}
	if err := s.cache.InvalidateDesignLists(ctx); err != nil {
		s.logger.Warn("cache invalidation failed", zap.String("scope", "lists"), zap.Error(err))
	}
}

// owned loads a transaction and hides it from anyone but its buyer.
func (s *transactionService) owned(ctx context.Context, userID uuid.UUID, load func() (*models.Transaction, error)) (*models.Transaction, error) {
	tx, err := load()
	if err != nil {
		return nil, storeError(err, "Transaction")
	}
	if tx.UserID != userID {
		return nil, common.NotFound("Transaction")
	}
	return tx, nil
}

func (s *transactionService) transition(ctx context.Context, tx *models.Transaction, next models.TransactionStatus) error {
	if err := tx.Transition(next); err != nil {
		return common.Conflict(fmt.Sprintf("transaction is already %s", tx.Status))
	}
	if err := s.transactions.UpdateStatus(ctx, tx); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return common.Conflict("transaction is no longer pending")
		}
		return storeError(err, "Transaction")
	}
	s.metrics.Payment(string(next))
	return nil
}

// fail marks tx failed after a provider error; the provider error is what the caller sees.
func (s *transactionService) fail(ctx context.Context, tx *models.Transaction) {
	if err := s.transition(ctx, tx, models.TransactionFailed); err != nil {
		s.logger.Warn("could not mark transaction failed", zap.Stringer("transaction_id", tx.ID), zap.Error(err))
	}
}

// purchases expands transactions with design summaries and, when users is
// set, the buyer's username.
func purchases(ctx context.Context, designs repositories.DesignRepository, users repositories.UserRepository, txs []*models.Transaction) ([]models.Purchase, error) {
	designIDs := make([]uuid.UUID, 0, len(txs))
	userIDs := make([]uuid.UUID, 0, len(txs))
	for _, tx := range txs {
		designIDs = append(designIDs, tx.DesignID)
		userIDs = append(userIDs, tx.UserID)
	}

	summaries, err := designs.Summaries(ctx, designIDs)
	if err != nil {
		return nil, common.Upstream("load purchased designs", err)
	}
	var names map[uuid.UUID]string
	if users != nil {
		names, err = users.Usernames(ctx, userIDs)
		if err != nil {
			return nil, common.Upstream("load buyers", err)
		}
	}

	out := make([]models.Purchase, 0, len(txs))
	for _, tx := range txs {
		p := models.Purchase{Transaction: *tx, Design: summaries[tx.DesignID]}
		if p.Design.ID == uuid.Nil {
			p.Design.ID = tx.DesignID
		}
		p.Username = names[tx.UserID]
		out = append(out, p)
	}
	return out, nil
}
