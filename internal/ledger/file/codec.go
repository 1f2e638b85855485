package file

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"

	"balancebot/internal/core"
)

// encodeLedger renders the ledger as an indented JSON object with one
// member per line. encoding/json maps do not keep key order, so the object
// is written by hand; balances come out as plain 2-decimal numbers.
func encodeLedger(members []core.Member) []byte {
	if len(members) == 0 {
		return []byte("{}\n")
	}

	var buf bytes.Buffer
	buf.WriteString("{\n")
	for i, m := range members {
		if i > 0 {
			buf.WriteString(",\n")
		}
		name, _ := json.Marshal(m.Name)
		fmt.Fprintf(&buf, "  %s: %s", name, m.Balance.Decimal())
	}
	buf.WriteString("\n}\n")
	return buf.Bytes()
}

// readLedger loads the ledger file, preserving the order keys appear in.
// A missing file is an empty ledger without error.
func readLedger(path string) ([]core.Member, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	return decodeLedger(data)
}

// decodeLedger walks the JSON token stream instead of unmarshalling into a
// map, since the map would lose insertion order.
func decodeLedger(data []byte) ([]core.Member, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("decode ledger: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("decode ledger: expected object, got %v", tok)
	}

	var members []core.Member
	seen := make(map[string]struct{})
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("decode ledger key: %w", err)
		}
		name, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("decode ledger: non-string key %v", keyTok)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("decode ledger: duplicate member %q", name)
		}

		valTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("decode ledger value for %q: %w", name, err)
		}
		num, ok := valTok.(json.Number)
		if !ok {
			return nil, fmt.Errorf("decode ledger: balance for %q is not a number", name)
		}
		f, err := strconv.ParseFloat(num.String(), 64)
		if err != nil {
			return nil, fmt.Errorf("decode ledger: balance for %q: %w", name, err)
		}

		seen[name] = struct{}{}
		members = append(members, core.Member{
			Name:    name,
			Balance: core.Money{Cents: core.RoundCents(f)},
		})
	}

	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("decode ledger: %w", err)
	}
	return members, nil
}

func decodeState(data []byte) (string, error) {
	var state struct {
		LastFired string `json:"last_fired"`
	}
	if err := json.Unmarshal(data, &state); err != nil {
		return "", err
	}
	return state.LastFired, nil
}
