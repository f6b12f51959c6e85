package sales

import (
	"errors"
	"fmt"
)

// MaxScanResults caps the number of sales a single range scan may return.
const MaxScanResults = 500

// ErrCapacityExceeded is returned when a range scan would produce more than MaxScanResults sales.
var ErrCapacityExceeded = errors.New("scan capacity exceeded")

// SalesMetadata summarizes a scan result.
type SalesMetadata struct {
	Quantity    int    `json:"quantity"`
	Online      int    `json:"online"`
	Offline     int    `json:"offline"`
	TotalAmount uint64 `json:"total_amount"`
}

// ScanRange returns, in id order, every sale with id in [startID, endID] and
// timestamp in [startTime, endTime]. endID is clamped to the last recorded
// sale. A range with no matches yields an empty slice, while more than
// MaxScanResults matches fail with ErrCapacityExceeded rather than truncate.
func (s *Service) ScanRange(startID, endID uint64, startTime, endTime int64) ([]*Sale, error) {
	var found []*Sale
	err := s.storage.View(func(r Reader) (err error) {
		found, err = scanRange(r, startID, endID, startTime, endTime)
		return err
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

func scanRange(r Reader, startID, endID uint64, startTime, endTime int64) ([]*Sale, error) {
	found := make([]*Sale, 0)
	count, err := r.SaleCount()
	if err != nil {
		return nil, fmt.Errorf("reading sale count: %w", err)
	}
	if count == 0 {
		return found, nil
	}
	maxID := min(endID, count-1)
	if startID > maxID {
		return found, nil
	}

	for id := startID; ; id++ {
		sale, err := r.Sale(id)
		if err != nil {
			return nil, fmt.Errorf("scanning sale %d: %w", id, err)
		}
		if sale.InPeriod(startTime, endTime) {
			if len(found) == MaxScanResults {
				return nil, fmt.Errorf("more than %d sales in [%d, %d]: %w", MaxScanResults, startID, maxID, ErrCapacityExceeded)
			}
			found = append(found, sale)
		}
		if id == maxID {
			return found, nil
		}
	}
}

// GetSaleIfInPeriod returns the sale with the given id when it exists and its
// timestamp is in [startTime, endTime].
func (s *Service) GetSaleIfInPeriod(id uint64, startTime, endTime int64) (*Sale, bool, error) {
	sale, err := s.Sale(id)
	if errors.Is(err, ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if !sale.InPeriod(startTime, endTime) {
		return nil, false, nil
	}
	return sale, true, nil
}

// IsSaleInPeriod reports whether the sale exists and falls in [startTime, endTime].
func (s *Service) IsSaleInPeriod(id uint64, startTime, endTime int64) (bool, error) {
	_, ok, err := s.GetSaleIfInPeriod(id, startTime, endTime)
	return ok, err
}

// Summarize computes the metadata of a scan result.
func Summarize(found []*Sale) SalesMetadata {
	var m SalesMetadata
	for _, sale := range found {
		m.Quantity++
		m.TotalAmount += sale.PaymentAmount
		if sale.IsOffline {
			m.Offline++
		} else {
			m.Online++
		}
	}
	return m
}
