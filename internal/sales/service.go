package sales

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

var (
	// ErrUnauthorized is returned when the caller fails an identity check.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInsufficientFunds is returned when the buyer cannot cover the price.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrTransferFailed is returned when the balance service fails or declines a transfer.
	ErrTransferFailed = errors.New("transfer failed")
	// ErrBelowMinimum is returned when a tip is under the artist's minimum payment.
	ErrBelowMinimum = errors.New("payment below minimum")
	// ErrInvalidArgument is returned for malformed input such as an empty name.
	ErrInvalidArgument = errors.New("invalid argument")
)

// Bank is the external balance/transfer service. A failed Transfer must leave
// both balances unchanged.
type Bank interface {
	BalanceOf(ctx context.Context, id Identity) (uint64, error)
	Transfer(ctx context.Context, amount uint64, from, to Identity) error
}

// Config holds the identities fixed at start-up.
type Config struct {
	// Owner may register as artist, manage the catalog and withdraw funds.
	Owner Identity
	// Custody holds the funds WithdrawFunds pays out from.
	Custody Identity
	// Clock timestamps sales; defaults to a MonotonicClock.
	Clock Clock
}

// Service provides the ledger operations on a Storage backend.
// Mutating operations are serialized; reads go straight to the storage.
type Service struct {
	storage Storage
	bank    Bank
	clock   Clock
	owner   Identity
	custody Identity
	logger  *zap.Logger

	mu sync.Mutex
}

// NewService creates a new Service.
func NewService(storage Storage, bank Bank, cfg Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger, _ = zap.NewProduction()
	}
	if cfg.Clock == nil {
		cfg.Clock = NewMonotonicClock()
	}

	return &Service{
		storage: storage,
		bank:    bank,
		clock:   cfg.Clock,
		owner:   cfg.Owner,
		custody: cfg.Custody,
		logger:  logger,
	}
}

// Owner returns the contract owner identity.
func (s *Service) Owner() Identity { return s.owner }

func (s *Service) requireOwner(caller Identity) error {
	if caller != s.owner {
		return fmt.Errorf("%q is not the owner: %w", caller, ErrUnauthorized)
	}
	return nil
}

func validateName(name string) error {
	if name == "" || len(name) > MaxNameLength {
		return fmt.Errorf("%w: name must be 1 to %d bytes", ErrInvalidArgument, MaxNameLength)
	}
	return nil
}

// transferFailed keeps ErrInsufficientFunds visible and classifies anything
// else coming back from the bank as ErrTransferFailed.
func transferFailed(err error) error {
	if errors.Is(err, ErrInsufficientFunds) || errors.Is(err, ErrTransferFailed) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrTransferFailed, err)
}

// RegisterArtist creates or overwrites the owner's artist profile.
func (s *Service) RegisterArtist(caller Identity, name string, minPayment uint64) (*ArtistProfile, error) {
	if err := s.requireOwner(caller); err != nil {
		return nil, err
	}
	if err := validateName(name); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	profile := &ArtistProfile{
		Identity:               caller,
		Name:                   name,
		MerchandiseAvailable:   false,
		AcceptsOfflinePayments: true,
		MinPayment:             minPayment,
	}
	if err := s.storage.Update(func(tx Tx) error {
		return tx.PutProfile(profile)
	}); err != nil {
		s.logger.Error("failed to save profile", zap.String("artist", string(caller)), zap.Error(err))
		return nil, fmt.Errorf("failed to save profile: %w", err)
	}

	s.logger.Info("artist registered", zap.String("artist", string(caller)), zap.Uint64("min_payment", minPayment))
	return profile, nil
}

// AddMerchandise adds an item owned by the caller to the catalog and returns its id.
func (s *Service) AddMerchandise(caller Identity, name string, price, quantity uint64) (uint64, error) {
	if err := s.requireOwner(caller); err != nil {
		return 0, err
	}
	if err := validateName(name); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var itemID uint64
	if err := s.storage.Update(func(tx Tx) (err error) {
		itemID, err = tx.CreateItem(name, price, quantity, caller)
		return err
	}); err != nil {
		s.logger.Error("failed to save item", zap.String("item_name", name), zap.Error(err))
		return 0, fmt.Errorf("failed to save item: %w", err)
	}

	s.logger.Info("merchandise added",
		zap.Uint64("item_id", itemID),
		zap.String("item_name", name),
		zap.Uint64("price", price),
		zap.Uint64("quantity", quantity),
	)
	return itemID, nil
}

// Purchase pays the item's price from caller to the artist and records an online sale.
func (s *Service) Purchase(ctx context.Context, caller Identity, itemID uint64) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		saleID uint64
		paid   *MerchandiseItem
	)
	err := s.storage.Update(func(tx Tx) error {
		item, err := tx.Item(itemID)
		if err != nil {
			return err
		}
		if item.Inventory == 0 {
			return fmt.Errorf("item %d: %w", itemID, ErrInventoryExhausted)
		}
		balance, err := s.bank.BalanceOf(ctx, caller)
		if err != nil {
			return transferFailed(fmt.Errorf("balance of %q: %w", caller, err))
		}
		if balance < item.Price {
			return fmt.Errorf("balance %d is below price %d: %w", balance, item.Price, ErrInsufficientFunds)
		}
		if err := s.bank.Transfer(ctx, item.Price, caller, item.Artist); err != nil {
			return transferFailed(err)
		}
		paid = item

		if _, err := tx.DecrementInventory(itemID); err != nil {
			return err
		}
		saleID, err = tx.AppendSale(caller, itemID, item.Price, s.clock.CurrentLogicalTime(), false)
		return err
	})
	if err != nil {
		if paid != nil {
			s.refund(ctx, paid.Price, paid.Artist, caller, err)
		}
		return 0, err
	}

	s.logger.Info("sale recorded",
		zap.Uint64("sale_id", saleID),
		zap.Uint64("item_id", itemID),
		zap.String("buyer", string(caller)),
		zap.Uint64("amount", paid.Price),
	)
	return saleID, nil
}

// refund reverses a transfer whose sale could not be committed.
func (s *Service) refund(ctx context.Context, amount uint64, from, to Identity, cause error) {
	s.logger.Error("sale not committed after transfer, refunding",
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.Uint64("amount", amount),
		zap.Error(cause),
	)
	if err := s.bank.Transfer(context.WithoutCancel(ctx), amount, from, to); err != nil {
		s.logger.Error("refund failed", zap.String("from", string(from)), zap.String("to", string(to)),
			zap.Uint64("amount", amount), zap.Error(err))
	}
}

// RecordOfflineSale records a sale the artist was paid for outside the bank,
// e.g. in cash at a venue. No funds move.
func (s *Service) RecordOfflineSale(caller Identity, itemID uint64, buyer Identity, amount uint64) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var saleID uint64
	err := s.storage.Update(func(tx Tx) error {
		item, err := tx.Item(itemID)
		if err != nil {
			return err
		}
		profile, err := tx.Profile(caller)
		if err != nil {
			return err
		}
		if caller != item.Artist {
			return fmt.Errorf("%q does not sell item %d: %w", caller, itemID, ErrUnauthorized)
		}
		if !profile.AcceptsOfflinePayments {
			return fmt.Errorf("%q does not accept offline payments: %w", caller, ErrUnauthorized)
		}
		if item.Inventory == 0 {
			return fmt.Errorf("item %d: %w", itemID, ErrInventoryExhausted)
		}
		if buyer == "" {
			return fmt.Errorf("%w: buyer is required", ErrInvalidArgument)
		}

		if _, err := tx.DecrementInventory(itemID); err != nil {
			return err
		}
		saleID, err = tx.AppendSale(buyer, itemID, amount, s.clock.CurrentLogicalTime(), true)
		return err
	})
	if err != nil {
		return 0, err
	}

	s.logger.Info("offline sale recorded",
		zap.Uint64("sale_id", saleID),
		zap.Uint64("item_id", itemID),
		zap.String("buyer", string(buyer)),
		zap.Uint64("amount", amount),
	)
	return saleID, nil
}

// updateProfile applies fn to the caller's existing profile.
func (s *Service) updateProfile(caller Identity, fn func(p *ArtistProfile)) (*ArtistProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var profile *ArtistProfile
	if err := s.storage.Update(func(tx Tx) (err error) {
		if profile, err = tx.Profile(caller); err != nil {
			return err
		}
		fn(profile)
		return tx.PutProfile(profile)
	}); err != nil {
		return nil, err
	}
	return profile, nil
}

// ToggleOfflinePayments sets whether the caller accepts offline payments.
func (s *Service) ToggleOfflinePayments(caller Identity, enable bool) (bool, error) {
	if _, err := s.updateProfile(caller, func(p *ArtistProfile) {
		p.AcceptsOfflinePayments = enable
	}); err != nil {
		return false, err
	}
	s.logger.Info("offline payments toggled", zap.String("artist", string(caller)), zap.Bool("enabled", enable))
	return enable, nil
}

// SetMerchandiseAvailability sets the caller's merchandise availability flag.
func (s *Service) SetMerchandiseAvailability(caller Identity, available bool) (bool, error) {
	if _, err := s.updateProfile(caller, func(p *ArtistProfile) {
		p.MerchandiseAvailable = available
	}); err != nil {
		return false, err
	}
	s.logger.Info("merchandise availability set", zap.String("artist", string(caller)), zap.Bool("available", available))
	return available, nil
}

// SendTip transfers the caller's whole balance to the owner and returns the
// amount sent. Tips are not journaled.
func (s *Service) SendTip(ctx context.Context, caller Identity) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var profile *ArtistProfile
	if err := s.storage.View(func(r Reader) (err error) {
		profile, err = r.Profile(s.owner)
		return err
	}); err != nil {
		return 0, err
	}

	amount, err := s.bank.BalanceOf(ctx, caller)
	if err != nil {
		return 0, transferFailed(fmt.Errorf("balance of %q: %w", caller, err))
	}
	if amount < profile.MinPayment {
		return 0, fmt.Errorf("tip %d is below minimum %d: %w", amount, profile.MinPayment, ErrBelowMinimum)
	}
	if err := s.bank.Transfer(ctx, amount, caller, s.owner); err != nil {
		return 0, transferFailed(err)
	}

	s.logger.Info("tip sent", zap.String("from", string(caller)), zap.Uint64("amount", amount))
	return amount, nil
}

// WithdrawFunds moves amount from the custodial account to the owner.
func (s *Service) WithdrawFunds(ctx context.Context, caller Identity, amount uint64) (uint64, error) {
	if err := s.requireOwner(caller); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.bank.Transfer(ctx, amount, s.custody, s.owner); err != nil {
		s.logger.Error("withdrawal failed", zap.Uint64("amount", amount), zap.Error(err))
		return 0, transferFailed(err)
	}

	s.logger.Info("funds withdrawn", zap.Uint64("amount", amount))
	return amount, nil
}

// Profile returns the artist profile of id.
func (s *Service) Profile(id Identity) (*ArtistProfile, error) {
	var p *ArtistProfile
	err := s.storage.View(func(r Reader) (err error) {
		p, err = r.Profile(id)
		return err
	})
	return p, err
}

// Item returns the catalog entry with the given id.
func (s *Service) Item(id uint64) (*MerchandiseItem, error) {
	var item *MerchandiseItem
	err := s.storage.View(func(r Reader) (err error) {
		item, err = r.Item(id)
		return err
	})
	return item, err
}

// Sale returns the journal entry with the given id.
func (s *Service) Sale(id uint64) (*Sale, error) {
	var sale *Sale
	err := s.storage.View(func(r Reader) (err error) {
		sale, err = r.Sale(id)
		return err
	})
	return sale, err
}

// Counts returns the number of sales and items recorded so far.
func (s *Service) Counts() (saleCount, itemCount uint64, err error) {
	err = s.storage.View(func(r Reader) (err error) {
		if saleCount, err = r.SaleCount(); err != nil {
			return err
		}
		itemCount, err = r.ItemCount()
		return err
	})
	return saleCount, itemCount, err
}
