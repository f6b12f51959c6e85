package sales

import (
	"errors"
	"fmt"
	"sync"
)

// ErrNotFound is returned when a profile, item or sale does not exist.
var ErrNotFound = errors.New("not found")

// ErrInventoryExhausted is returned when a sale is attempted on an item with no stock left.
var ErrInventoryExhausted = errors.New("inventory exhausted")

// Reader exposes the read side of the catalog, the profiles and the sales journal.
type Reader interface {
	Profile(id Identity) (*ArtistProfile, error)
	Item(id uint64) (*MerchandiseItem, error)
	// ItemCount is the next merchandise id to be assigned.
	ItemCount() (uint64, error)
	Sale(id uint64) (*Sale, error)
	// SaleCount is the next sale id to be assigned, i.e. the number of sales recorded.
	SaleCount() (uint64, error)
}

// Tx is a read-write transaction. Nothing it writes is visible to readers
// until the surrounding Update commits.
type Tx interface {
	Reader
	PutProfile(p *ArtistProfile) error
	CreateItem(name string, price, quantity uint64, artist Identity) (uint64, error)
	DecrementInventory(id uint64) (*MerchandiseItem, error)
	AppendSale(buyer Identity, itemID, amount uint64, timestamp int64, offline bool) (uint64, error)
}

// Storage is the main interface for our ledger storage layer.
//
// Update runs fn in a read-write transaction. Only one Update runs at a time;
// changes are committed when fn returns nil and discarded otherwise.
// View runs fn against a consistent snapshot and may run concurrently with
// other Views.
type Storage interface {
	View(fn func(Reader) error) error
	Update(fn func(Tx) error) error
	Close() error
}

// LocalStorage provides an in-memory implementation of Storage.
type LocalStorage struct {
	writeMu sync.Mutex // serializes Update calls

	mu       sync.RWMutex // guards the committed state below
	profiles map[Identity]ArtistProfile
	items    []MerchandiseItem
	sales    []Sale
}

// NewLocalStorage instantiates a new, empty LocalStorage.
func NewLocalStorage() *LocalStorage {
	return &LocalStorage{
		profiles: map[Identity]ArtistProfile{},
	}
}

func (l *LocalStorage) View(fn func(Reader) error) error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return fn(localReader{l})
}

func (l *LocalStorage) Update(fn func(Tx) error) error {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	// the committed state only changes under writeMu, so the transaction can
	// read it without holding mu
	tx := &localTx{
		localReader: localReader{l},
		profiles:    map[Identity]ArtistProfile{},
		changed:     map[uint64]MerchandiseItem{},
	}
	if err := fn(tx); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for id, p := range tx.profiles {
		l.profiles[id] = p
	}
	l.items = append(l.items, tx.newItems...)
	for id, item := range tx.changed {
		l.items[id] = item
	}
	l.sales = append(l.sales, tx.newSales...)
	return nil
}

func (l *LocalStorage) Close() error { return nil }

type localReader struct {
	l *LocalStorage
}

func (r localReader) Profile(id Identity) (*ArtistProfile, error) {
	p, ok := r.l.profiles[id]
	if !ok {
		return nil, fmt.Errorf("profile %q: %w", id, ErrNotFound)
	}
	return &p, nil
}

func (r localReader) Item(id uint64) (*MerchandiseItem, error) {
	if id >= uint64(len(r.l.items)) {
		return nil, fmt.Errorf("item %d: %w", id, ErrNotFound)
	}
	item := r.l.items[id]
	return &item, nil
}

func (r localReader) ItemCount() (uint64, error) { return uint64(len(r.l.items)), nil }

func (r localReader) Sale(id uint64) (*Sale, error) {
	if id >= uint64(len(r.l.sales)) {
		return nil, fmt.Errorf("sale %d: %w", id, ErrNotFound)
	}
	s := r.l.sales[id]
	return &s, nil
}

func (r localReader) SaleCount() (uint64, error) { return uint64(len(r.l.sales)), nil }

// localTx stages writes on top of the committed state.
type localTx struct {
	localReader
	profiles map[Identity]ArtistProfile
	changed  map[uint64]MerchandiseItem
	newItems []MerchandiseItem
	newSales []Sale
}

func (t *localTx) Profile(id Identity) (*ArtistProfile, error) {
	if p, ok := t.profiles[id]; ok {
		return &p, nil
	}
	return t.localReader.Profile(id)
}

func (t *localTx) PutProfile(p *ArtistProfile) error {
	t.profiles[p.Identity] = *p
	return nil
}

func (t *localTx) Item(id uint64) (*MerchandiseItem, error) {
	if item, ok := t.changed[id]; ok {
		return &item, nil
	}
	committed := uint64(len(t.l.items))
	if id >= committed && id-committed < uint64(len(t.newItems)) {
		item := t.newItems[id-committed]
		return &item, nil
	}
	return t.localReader.Item(id)
}

func (t *localTx) ItemCount() (uint64, error) {
	return uint64(len(t.l.items) + len(t.newItems)), nil
}

func (t *localTx) CreateItem(name string, price, quantity uint64, artist Identity) (uint64, error) {
	id, _ := t.ItemCount()
	t.newItems = append(t.newItems, MerchandiseItem{
		ID:        id,
		ItemName:  name,
		Price:     price,
		Inventory: quantity,
		Artist:    artist,
	})
	return id, nil
}

func (t *localTx) DecrementInventory(id uint64) (*MerchandiseItem, error) {
	item, err := t.Item(id)
	if err != nil {
		return nil, err
	}
	if item.Inventory == 0 {
		return nil, fmt.Errorf("item %d: %w", id, ErrInventoryExhausted)
	}
	item.Inventory--
	t.changed[id] = *item
	return item, nil
}

func (t *localTx) Sale(id uint64) (*Sale, error) {
	committed := uint64(len(t.l.sales))
	if id >= committed && id-committed < uint64(len(t.newSales)) {
		s := t.newSales[id-committed]
		return &s, nil
	}
	return t.localReader.Sale(id)
}

func (t *localTx) SaleCount() (uint64, error) {
	return uint64(len(t.l.sales) + len(t.newSales)), nil
}

func (t *localTx) AppendSale(buyer Identity, itemID, amount uint64, timestamp int64, offline bool) (uint64, error) {
	id, _ := t.SaleCount()
	t.newSales = append(t.newSales, Sale{
		ID:            id,
		Buyer:         buyer,
		ItemID:        itemID,
		PaymentAmount: amount,
		Timestamp:     timestamp,
		IsOffline:     offline,
	})
	return id, nil
}
