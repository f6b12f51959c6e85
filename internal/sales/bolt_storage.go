package sales

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
	"go.etcd.io/bbolt"
)

var (
	bucketProfiles = []byte("profiles")
	bucketItems    = []byte("items")
	bucketSales    = []byte("sales")
	bucketMeta     = []byte("meta")

	keySaleCounter  = []byte("saleCounter")
	keyMerchCounter = []byte("merchCounter")
)

var errNoBucket = errors.New("bucket not found")

/*
BoltStorage is the persistent Storage backed by a bbolt database file.

Items and sales are keyed by their big-endian id so that cursor order is id
order. Both counters live in the meta bucket and are written in the same
transaction as the record they assign.
*/
type BoltStorage struct {
	db *bbolt.DB
}

// NewBoltStorage opens (or creates) the database in file.
func NewBoltStorage(file string) (_ *BoltStorage, err error) {
	db, err := bbolt.Open(file, 0600, &bbolt.Options{Timeout: 3 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	defer func() {
		if err != nil {
			_ = db.Close()
		}
	}()

	if err := db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketProfiles, bucketItems, bucketSales, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}
		return nil
	}); err != nil {
		return nil, fmt.Errorf("initializing database: %w", err)
	}
	return &BoltStorage{db: db}, nil
}

func (s *BoltStorage) Path() string { return s.db.Path() }

func (s *BoltStorage) View(fn func(Reader) error) error {
	return s.db.View(func(tx *bbolt.Tx) error {
		return fn(boltTx{tx: tx})
	})
}

func (s *BoltStorage) Update(fn func(Tx) error) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return fn(boltTx{tx: tx})
	})
}

func (s *BoltStorage) Close() error { return s.db.Close() }

type boltTx struct {
	tx *bbolt.Tx
}

func idKey(id uint64) []byte {
	return binary.BigEndian.AppendUint64(make([]byte, 0, 8), id)
}

func (t boltTx) bucket(name []byte) (*bbolt.Bucket, error) {
	b := t.tx.Bucket(name)
	if b == nil {
		return nil, fmt.Errorf("%s: %w", name, errNoBucket)
	}
	return b, nil
}

func (t boltTx) get(bucket, key []byte, v any) (bool, error) {
	b, err := t.bucket(bucket)
	if err != nil {
		return false, err
	}
	data := b.Get(key)
	if data == nil {
		return false, nil
	}
	if err := cbor.Unmarshal(data, v); err != nil {
		return true, fmt.Errorf("decoding %s/%x: %w", bucket, key, err)
	}
	return true, nil
}

func (t boltTx) put(bucket, key []byte, v any) error {
	data, err := cbor.Marshal(v)
	if err != nil {
		return fmt.Errorf("serializing %s/%x: %w", bucket, key, err)
	}
	b, err := t.bucket(bucket)
	if err != nil {
		return err
	}
	return b.Put(key, data)
}

func (t boltTx) counter(key []byte) (uint64, error) {
	b, err := t.bucket(bucketMeta)
	if err != nil {
		return 0, err
	}
	v := b.Get(key)
	if v == nil {
		return 0, nil
	}
	if len(v) != 8 {
		return 0, fmt.Errorf("counter %s has invalid length %d", key, len(v))
	}
	return binary.BigEndian.Uint64(v), nil
}

func (t boltTx) setCounter(key []byte, n uint64) error {
	b, err := t.bucket(bucketMeta)
	if err != nil {
		return err
	}
	return b.Put(key, idKey(n))
}

func (t boltTx) Profile(id Identity) (*ArtistProfile, error) {
	var p ArtistProfile
	ok, err := t.get(bucketProfiles, []byte(id), &p)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("profile %q: %w", id, ErrNotFound)
	}
	return &p, nil
}

func (t boltTx) PutProfile(p *ArtistProfile) error {
	return t.put(bucketProfiles, []byte(p.Identity), p)
}

func (t boltTx) Item(id uint64) (*MerchandiseItem, error) {
	var item MerchandiseItem
	ok, err := t.get(bucketItems, idKey(id), &item)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("item %d: %w", id, ErrNotFound)
	}
	return &item, nil
}

func (t boltTx) ItemCount() (uint64, error) { return t.counter(keyMerchCounter) }

func (t boltTx) CreateItem(name string, price, quantity uint64, artist Identity) (uint64, error) {
	id, err := t.counter(keyMerchCounter)
	if err != nil {
		return 0, err
	}
	item := &MerchandiseItem{
		ID:        id,
		ItemName:  name,
		Price:     price,
		Inventory: quantity,
		Artist:    artist,
	}
	if err := t.put(bucketItems, idKey(id), item); err != nil {
		return 0, fmt.Errorf("storing item: %w", err)
	}
	return id, t.setCounter(keyMerchCounter, id+1)
}

func (t boltTx) DecrementInventory(id uint64) (*MerchandiseItem, error) {
	item, err := t.Item(id)
	if err != nil {
		return nil, err
	}
	if item.Inventory == 0 {
		return nil, fmt.Errorf("item %d: %w", id, ErrInventoryExhausted)
	}
	item.Inventory--
	if err := t.put(bucketItems, idKey(id), item); err != nil {
		return nil, fmt.Errorf("storing item: %w", err)
	}
	return item, nil
}

func (t boltTx) Sale(id uint64) (*Sale, error) {
	var s Sale
	ok, err := t.get(bucketSales, idKey(id), &s)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("sale %d: %w", id, ErrNotFound)
	}
	return &s, nil
}

func (t boltTx) SaleCount() (uint64, error) { return t.counter(keySaleCounter) }

func (t boltTx) AppendSale(buyer Identity, itemID, amount uint64, timestamp int64, offline bool) (uint64, error) {
	id, err := t.counter(keySaleCounter)
	if err != nil {
		return 0, err
	}
	key := idKey(id)
	b, err := t.bucket(bucketSales)
	if err != nil {
		return 0, err
	}
	if b.Get(key) != nil {
		return 0, fmt.Errorf("sale %d already recorded", id)
	}
	sale := &Sale{
		ID:            id,
		Buyer:         buyer,
		ItemID:        itemID,
		PaymentAmount: amount,
		Timestamp:     timestamp,
		IsOffline:     offline,
	}
	if err := t.put(bucketSales, key, sale); err != nil {
		return 0, fmt.Errorf("storing sale: %w", err)
	}
	return id, t.setCounter(keySaleCounter, id+1)
}
