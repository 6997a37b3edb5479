package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/omniflow/installment-engine/internal/domain"
	"github.com/omniflow/installment-engine/internal/repository"
	"github.com/omniflow/installment-engine/pkg/utils"
)

// Reminder kinds surfaced by the due-date sweep.
const (
	ReminderOverdue  = "overdue"
	ReminderDueToday = "due_today"
	ReminderDueSoon  = "due_soon"
)

// Reminder describes one due-date notification for an order.
type Reminder struct {
	Kind     string
	OrderID  uuid.UUID
	BuyerID  uuid.UUID
	DueDate  time.Time
	DaysLate int
}

// Notifier delivers reminders. Push delivery is an external concern; the
// default implementation just logs.
type Notifier interface {
	Notify(ctx context.Context, reminder Reminder) error
}

type logNotifier struct {
	logger zerolog.Logger
}

func NewLogNotifier(logger zerolog.Logger) Notifier {
	return &logNotifier{logger: logger}
}

func (n *logNotifier) Notify(_ context.Context, reminder Reminder) error {
	n.logger.Info().
		Str("kind", reminder.Kind).
		Str("order_id", reminder.OrderID.String()).
		Str("buyer_id", reminder.BuyerID.String()).
		Time("due_date", reminder.DueDate).
		Int("days_late", reminder.DaysLate).
		Msg("installment reminder")
	return nil
}

// Syncer keeps per-buyer order and wallet snapshots fresh in the cache
// without overloading the system of record, and deduplicates due-date
// reminders per order per calendar day.
type Syncer struct {
	store       Store
	orders      repository.OrderRepository
	wallets     repository.WalletRepository
	notifier    Notifier
	logger      zerolog.Logger
	minInterval time.Duration
	snapshotTTL time.Duration
	reminderTTL time.Duration
	dueSoonDays int
	now         func() time.Time
}

// SyncerOptions configures a Syncer.
type SyncerOptions struct {
	MinInterval time.Duration
	SnapshotTTL time.Duration
	ReminderTTL time.Duration
	DueSoonDays int
}

func NewSyncer(
	store Store,
	orders repository.OrderRepository,
	wallets repository.WalletRepository,
	notifier Notifier,
	logger zerolog.Logger,
	opts SyncerOptions,
) *Syncer {
	return &Syncer{
		store:       store,
		orders:      orders,
		wallets:     wallets,
		notifier:    notifier,
		logger:      logger,
		minInterval: opts.MinInterval,
		snapshotTTL: opts.SnapshotTTL,
		reminderTTL: opts.ReminderTTL,
		dueSoonDays: opts.DueSoonDays,
		now:         time.Now,
	}
}

func ordersKey(buyerID uuid.UUID) string  { return "orders:" + buyerID.String() }
func walletKey(buyerID uuid.UUID) string  { return "wallet:" + buyerID.String() }
func refreshKey(buyerID uuid.UUID) string { return "refresh:" + buyerID.String() }

func reminderKey(orderID uuid.UUID, day time.Time) string {
	return fmt.Sprintf("reminder_sent:%s:%s", orderID, utils.DateKey(day))
}

// Refresh re-reads the buyer's orders and wallet from the system of record
// into the cache. A refresh that completed less than the minimum interval
// ago suppresses this one; the bool result reports whether a refresh ran.
// Overlapping timers and manual refreshes collapse into the guard key.
func (s *Syncer) Refresh(ctx context.Context, buyerID uuid.UUID) (bool, error) {
	fresh, err := s.store.SetNX(ctx, refreshKey(buyerID), utils.DateKey(s.now()), s.minInterval)
	if err != nil {
		return false, err
	}
	if !fresh {
		return false, nil
	}

	var orders []*domain.InstallmentOrder
	var wallet *domain.Wallet

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		orders, err = s.orders.ListByBuyer(gctx, buyerID)
		return err
	})
	g.Go(func() error {
		var err error
		wallet, err = s.wallets.GetByUserID(gctx, buyerID)
		return err
	})
	if err := g.Wait(); err != nil {
		// Release the guard so a failed refresh does not block the next
		// attempt for the whole interval.
		_ = s.store.Del(ctx, refreshKey(buyerID))
		return false, err
	}

	if err := s.setJSON(ctx, ordersKey(buyerID), orders); err != nil {
		return false, err
	}
	if err := s.setJSON(ctx, walletKey(buyerID), wallet); err != nil {
		return false, err
	}

	s.sendReminders(ctx, orders)

	return true, nil
}

// RefreshAll sweeps every buyer with an active order. Driven by the
// scheduler on the refresh cadence; per-buyer guards still apply.
func (s *Syncer) RefreshAll(ctx context.Context) error {
	active, err := s.orders.ListActive(ctx)
	if err != nil {
		return err
	}

	seen := make(map[uuid.UUID]struct{}, len(active))
	for _, order := range active {
		if _, ok := seen[order.BuyerID]; ok {
			continue
		}
		seen[order.BuyerID] = struct{}{}

		if _, err := s.Refresh(ctx, order.BuyerID); err != nil {
			s.logger.Error().Err(err).
				Str("buyer_id", order.BuyerID.String()).
				Msg("buyer refresh failed")
		}
	}

	return nil
}

// CachedOrders returns the buyer's last order snapshot, if present.
func (s *Syncer) CachedOrders(ctx context.Context, buyerID uuid.UUID) ([]*domain.InstallmentOrder, bool, error) {
	raw, ok, err := s.store.Get(ctx, ordersKey(buyerID))
	if err != nil || !ok {
		return nil, false, err
	}

	var orders []*domain.InstallmentOrder
	if err := json.Unmarshal([]byte(raw), &orders); err != nil {
		return nil, false, err
	}
	return orders, true, nil
}

// CachedWallet returns the buyer's last wallet snapshot, if present.
func (s *Syncer) CachedWallet(ctx context.Context, buyerID uuid.UUID) (*domain.Wallet, bool, error) {
	raw, ok, err := s.store.Get(ctx, walletKey(buyerID))
	if err != nil || !ok {
		return nil, false, err
	}

	var wallet domain.Wallet
	if err := json.Unmarshal([]byte(raw), &wallet); err != nil {
		return nil, false, err
	}
	return &wallet, true, nil
}

// LocalHealth recomputes the financial health score from the cached order
// snapshot, the fallback when the system of record is unreachable.
func (s *Syncer) LocalHealth(ctx context.Context, buyerID uuid.UUID) (domain.FinancialHealth, bool, error) {
	orders, ok, err := s.CachedOrders(ctx, buyerID)
	if err != nil || !ok {
		return domain.FinancialHealth{}, false, err
	}
	return domain.ScoreFinancialHealth(s.now(), buyerID, orders), true, nil
}

// sendReminders evaluates due-date reminders for the given orders,
// deduplicated per order per calendar day with an explicit TTL.
func (s *Syncer) sendReminders(ctx context.Context, orders []*domain.InstallmentOrder) {
	now := s.now()

	for _, order := range orders {
		if order.IsCompleted() || order.NextDueDate == nil {
			continue
		}

		days := utils.DaysUntil(now, *order.NextDueDate)
		var kind string
		switch {
		case days < 0:
			kind = ReminderOverdue
		case days == 0:
			kind = ReminderDueToday
		case days <= s.dueSoonDays:
			kind = ReminderDueSoon
		default:
			continue
		}

		sent, err := s.store.SetNX(ctx, reminderKey(order.ID, now), kind, s.reminderTTL)
		if err != nil {
			s.logger.Error().Err(err).Str("order_id", order.ID.String()).Msg("reminder dedup check failed")
			continue
		}
		if !sent {
			continue
		}

		reminder := Reminder{
			Kind:     kind,
			OrderID:  order.ID,
			BuyerID:  order.BuyerID,
			DueDate:  *order.NextDueDate,
			DaysLate: utils.DaysLate(now, *order.NextDueDate),
		}
		if err := s.notifier.Notify(ctx, reminder); err != nil {
			s.logger.Error().Err(err).Str("order_id", order.ID.String()).Msg("reminder delivery failed")
		}
	}
}

func (s *Syncer) setJSON(ctx context.Context, key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.store.Set(ctx, key, string(raw), s.snapshotTTL)
}
