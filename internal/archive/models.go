package archive

import (
	"time"

	"github.com/shopspring/decimal"
)

// Sample mirrors one accepted price point into the archive. The JSON history
// file remains the contractual artifact; the archive exists for reporting
// queries and exports.
type Sample struct {
	ObservedAt time.Time
	Price      decimal.Decimal
	Cycle      int64
	EventType  string
	CreatedAt  time.Time
}
