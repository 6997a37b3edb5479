package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/omniflow/installment-engine/internal/domain"
)

type walletRepository struct {
	db *sqlx.DB
}

func NewWalletRepository(db *sqlx.DB) WalletRepository {
	return &walletRepository{db: db}
}

func (r *walletRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error) {
	query := `
		SELECT id, user_id, balance, updated_at
		FROM wallets
		WHERE user_id = $1
	`

	var wallet domain.Wallet
	if err := r.db.GetContext(ctx, &wallet, query, userID); err != nil {
		return nil, err
	}

	return &wallet, nil
}
