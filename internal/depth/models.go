package depth

import "time"

// Side selects the book half and with it the rounding and ordering policy.
type Side string

const (
	Bid Side = "BID"
	Ask Side = "ASK"
)


// PriceLevel is one raw entry from the feed.
type PriceLevel struct {
	Price float64 `json:"price"`
	Size  float64 `json:"size"`
}

// BookEntry is one aggregated integer price band.
type BookEntry struct {
	BucketPrice  int64   `json:"price"`
	Amount       float64 `json:"amount"`
	RunningTotal float64 `json:"total"` // cumulative depth at or better than this bucket
}

// Snapshot is a complete raw view of both sides as delivered by a feed.
type Snapshot struct {
	Symbol       string       `json:"symbol"`
	Bids         []PriceLevel `json:"bids"`
	Asks         []PriceLevel `json:"asks"`
	LastUpdateID int64        `json:"lastUpdateId"`
	Received     time.Time    `json:"received"`
}

// Book is the aggregated view handed to display layers.
type Book struct {
	Symbol          string      `json:"symbol"`
	Bids            []BookEntry `json:"bids"` // best (highest) first
	Asks            []BookEntry `json:"asks"` // best (lowest) first
	MaxOverallDepth float64     `json:"maxOverallDepth"`
	LastUpdateID    int64       `json:"lastUpdateId"`
	Updated         time.Time   `json:"updated"`
}

// BestBid returns the top bid bucket, if any.
func (b Book) BestBid() (BookEntry, bool) {
	if len(b.Bids) == 0 {
		return BookEntry{}, false
	}
	return b.Bids[0], true
}

// BestAsk returns the top ask bucket, if any.
func (b Book) BestAsk() (BookEntry, bool) {
	if len(b.Asks) == 0 {
		return BookEntry{}, false
	}
	return b.Asks[0], true
}

// Clone returns a copy that shares no slices with b.
func (b Book) Clone() Book {
	out := b
	out.Bids = append([]BookEntry(nil), b.Bids...)
	out.Asks = append([]BookEntry(nil), b.Asks...)
	return out
}
