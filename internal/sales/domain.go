package sales

// MaxNameLength bounds artist and merchandise names, in bytes.
const MaxNameLength = 64

// Identity identifies a caller, buyer or artist.
type Identity string

// ArtistProfile describes the selling artist.
type ArtistProfile struct {
	Identity               Identity `json:"identity" cbor:"1,keyasint"`
	Name                   string   `json:"name" cbor:"2,keyasint"`
	MerchandiseAvailable   bool     `json:"merchandise_available" cbor:"3,keyasint"`
	AcceptsOfflinePayments bool     `json:"accepts_offline_payments" cbor:"4,keyasint"`
	MinPayment             uint64   `json:"min_payment" cbor:"5,keyasint"`
}

// MerchandiseItem is a catalog entry. Only Inventory changes after creation.
type MerchandiseItem struct {
	ID        uint64   `json:"id" cbor:"1,keyasint"`
	ItemName  string   `json:"item_name" cbor:"2,keyasint"`
	Price     uint64   `json:"price" cbor:"3,keyasint"`
	Inventory uint64   `json:"inventory" cbor:"4,keyasint"`
	Artist    Identity `json:"artist" cbor:"5,keyasint"`
}

// Sale is an immutable sales journal entry.
type Sale struct {
	ID            uint64   `json:"id" cbor:"1,keyasint"`
	Buyer         Identity `json:"buyer" cbor:"2,keyasint"`
	ItemID        uint64   `json:"item_id" cbor:"3,keyasint"`
	PaymentAmount uint64   `json:"payment_amount" cbor:"4,keyasint"`
	Timestamp     int64    `json:"timestamp" cbor:"5,keyasint"`
	IsOffline     bool     `json:"is_offline" cbor:"6,keyasint"`
}

// InPeriod reports whether the sale timestamp lies in [start, end].
func (s *Sale) InPeriod(start, end int64) bool {
	return start <= s.Timestamp && s.Timestamp <= end
}
