// Package stats reports how much of its size limit a vault uses.
package stats

import (
	"encoding/json"
	"fmt"
	"unicode/utf16"

	humanize "github.com/dustin/go-humanize"
	"github.com/jrife/vault/storage/backend"
	"github.com/jrife/vault/vault"
)

// Source is the read-only view of a vault that statistics are computed
// from. *vault.Engine implements it.
type Source interface {
	Records() (vault.RecordSet, error)
	Available() bool
	Kind() backend.Kind
	MaxSizeBytes() int
}

var _ Source = (*vault.Engine)(nil)

// Stats describes the raw record set of a vault, expired records included
type Stats struct {
	ItemCount int
	// SizeBytes is the UTF-8 length of the serialized record set
	SizeBytes int
	// StringLength is the length of the serialized record set in UTF-16
	// code units, which is what browser storage quotas count
	StringLength    int
	MaxSizeBytes    int
	QuotaPercentage float64
	BackendKind     string
}

// Collect computes statistics for source. It never fails: an unavailable
// or unreadable source yields zero values.
func Collect(source Source) Stats {
	if !source.Available() {
		return Stats{BackendKind: backend.Unavailable.String()}
	}

	stats := Stats{
		MaxSizeBytes: source.MaxSizeBytes(),
		BackendKind:  source.Kind().String(),
	}

	records, err := source.Records()

	if err != nil {
		return stats
	}

	encoded, err := json.Marshal(records)

	if err != nil {
		return stats
	}

	stats.ItemCount = len(records)
	stats.SizeBytes = len(encoded)
	stats.StringLength = utf16Length(string(encoded))

	if stats.MaxSizeBytes > 0 {
		stats.QuotaPercentage = float64(stats.SizeBytes) / float64(stats.MaxSizeBytes) * 100
	}

	return stats
}

func utf16Length(text string) int {
	return len(utf16.Encode([]rune(text)))
}

func (stats Stats) String() string {
	return fmt.Sprintf("%s vault: %s items, %s of %s (%.1f%%)",
		stats.BackendKind,
		humanize.Comma(int64(stats.ItemCount)),
		humanize.Bytes(uint64(stats.SizeBytes)),
		humanize.Bytes(uint64(stats.MaxSizeBytes)),
		stats.QuotaPercentage)
}
