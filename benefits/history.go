/*
history.go - Cashback history codec

PURPOSE:
  The cashback history is a JSON array stored inside ONE metadata value
  (cashback_history). Two encodings exist in production data:

    compact (legacy):  {"d":"2024-01-01","a":100,"c":10,"desc":"x","e":"emp1","t":"e"}
    full (current):    {"id":"...","date":"2024-01-01T00:00:00.000Z","amount":100,
                        "cashback":10,"description":"x","employee":"emp1","type":"earned"}

  Reads always produce full-shape entries. Writes keep whatever encoding the
  stored history already uses, so a legacy history is never upgraded as a
  side effect of an append. UpgradeHistory is the explicit migration step.

DECODING RULES:
  - Empty input                      -> empty history
  - First element has the "d" field  -> whole array is compact
  - t == "e" -> earned, anything else -> used
  - Compact dates are widened with a fabricated midnight UTC time of day
  - Any parse error                  -> empty history (silent recovery)

SIZE LIMIT:
  The provider caps metadata values at 500 characters. Encoding drops the
  oldest entries until the array fits and reports how many were dropped.

SEE ALSO:
  - balance.go: Cashback totals computed from decoded entries
  - cashback.go: Appends entries
*/
package benefits

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// MetadataValueLimit is the provider's maximum metadata value length.
const MetadataValueLimit = 500

type HistoryType string

const (
	HistoryEarned HistoryType = "earned"
	HistoryUsed   HistoryType = "used"
)

type HistoryFormat string

const (
	FormatFull    HistoryFormat = "full"
	FormatCompact HistoryFormat = "compact"
)

// HistoryEntry is one cashback transaction in full shape.
type HistoryEntry struct {
	ID          string
	Date        string
	Amount      decimal.Decimal
	Cashback    decimal.Decimal
	Description string
	Employee    string
	Type        HistoryType
}

// History is a decoded cashback history and the encoding it was stored in.
type History struct {
	Format  HistoryFormat
	Entries []HistoryEntry
}

// =============================================================================
// WIRE SHAPES
// =============================================================================

type compactEntry struct {
	D    string          `json:"d"`
	A    decimal.Decimal `json:"a"`
	C    decimal.Decimal `json:"c"`
	Desc string          `json:"desc"`
	E    string          `json:"e"`
	T    string          `json:"t"`
}

type fullEntry struct {
	ID          flexString      `json:"id"`
	Date        string          `json:"date"`
	Amount      decimal.Decimal `json:"amount"`
	Cashback    decimal.Decimal `json:"cashback"`
	Description string          `json:"description"`
	Employee    string          `json:"employee"`
	Type        HistoryType     `json:"type"`
}

// flexString accepts both "id":"abc" and "id":1700000000000.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

// =============================================================================
// DECODE
// =============================================================================

// DecodeHistory parses a stored cashback_history value.
func DecodeHistory(raw string) History {
	empty := History{Format: FormatFull}
	if strings.TrimSpace(raw) == "" {
		return empty
	}

	var probe []map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &probe); err != nil || len(probe) == 0 {
		return empty
	}

	if _, compact := probe[0]["d"]; compact {
		var items []compactEntry
		if err := json.Unmarshal([]byte(raw), &items); err != nil {
			return empty
		}
		entries := make([]HistoryEntry, 0, len(items))
		for i, c := range items {
			entries = append(entries, c.upgrade(i))
		}
		return History{Format: FormatCompact, Entries: entries}
	}

	var items []fullEntry
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return empty
	}
	entries := make([]HistoryEntry, 0, len(items))
	for _, f := range items {
		entries = append(entries, HistoryEntry{
			ID:          string(f.ID),
			Date:        f.Date,
			Amount:      f.Amount,
			Cashback:    f.Cashback,
			Description: f.Description,
			Employee:    f.Employee,
			Type:        f.Type,
		})
	}
	return History{Format: FormatFull, Entries: entries}
}

func (c compactEntry) upgrade(index int) HistoryEntry {
	typ := HistoryUsed
	if c.T == "e" {
		typ = HistoryEarned
	}
	date := c.D
	if len(date) == len("2006-01-02") {
		date += "T00:00:00.000Z"
	}
	return HistoryEntry{
		ID:          fmt.Sprintf("legacy-%d", index),
		Date:        date,
		Amount:      c.A,
		Cashback:    c.C,
		Description: c.Desc,
		Employee:    c.E,
		Type:        typ,
	}
}

// =============================================================================
// ENCODE
// =============================================================================

// EncodeHistory serializes h in its own format. The oldest entries are dropped
// until the value fits MetadataValueLimit; the number dropped is returned.
func EncodeHistory(h History) (string, int) {
	entries := h.Entries
	dropped := 0
	for {
		raw := marshalHistory(h.Format, entries)
		if len(raw) <= MetadataValueLimit || len(entries) == 0 {
			return raw, dropped
		}
		entries = entries[1:]
		dropped++
	}
}

// UpgradeHistory converts a compact history to the full encoding.
// Only the explicit migration command calls this.
func UpgradeHistory(h History) History {
	return History{Format: FormatFull, Entries: h.Entries}
}

type compactWire struct {
	D    string      `json:"d"`
	A    json.Number `json:"a"`
	C    json.Number `json:"c"`
	Desc string      `json:"desc"`
	E    string      `json:"e"`
	T    string      `json:"t"`
}

type fullWire struct {
	ID          string      `json:"id"`
	Date        string      `json:"date"`
	Amount      json.Number `json:"amount"`
	Cashback    json.Number `json:"cashback"`
	Description string      `json:"description"`
	Employee    string      `json:"employee"`
	Type        HistoryType `json:"type"`
}

func marshalHistory(format HistoryFormat, entries []HistoryEntry) string {
	var out any
	if format == FormatCompact {
		items := make([]compactWire, 0, len(entries))
		for _, e := range entries {
			t := "u"
			if e.Type == HistoryEarned {
				t = "e"
			}
			d := e.Date
			if len(d) > len("2006-01-02") {
				d = d[:len("2006-01-02")]
			}
			items = append(items, compactWire{
				D: d, A: json.Number(e.Amount.String()), C: json.Number(e.Cashback.String()),
				Desc: e.Description, E: e.Employee, T: t,
			})
		}
		out = items
	} else {
		items := make([]fullWire, 0, len(entries))
		for _, e := range entries {
			items = append(items, fullWire{
				ID: e.ID, Date: e.Date,
				Amount: json.Number(e.Amount.String()), Cashback: json.Number(e.Cashback.String()),
				Description: e.Description, Employee: e.Employee, Type: e.Type,
			})
		}
		out = items
	}
	b, err := json.Marshal(out)
	if err != nil {
		return "[]"
	}
	return string(b)
}
