package export

import (
	"bufio"
	"fmt"
	"io"

	"github.com/bikecast/bikecast/backtest"
	"github.com/goccy/go-json"
)

// WriteRecords writes a record set as JSON Lines, one self-contained record
// per line, preserving the order given.
func WriteRecords(w io.Writer, recs []backtest.Record) error {
	enc := json.NewEncoder(w)
	for i, rec := range recs {
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("record %d, %w", i, err)
		}
	}
	return nil
}

// ReadRecords reads a JSON Lines record set, preserving line order.
func ReadRecords(r io.Reader) ([]backtest.Record, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)

	var recs []backtest.Record
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var rec backtest.Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("line %d, %w", line, err)
		}
		recs = append(recs, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return recs, nil
}
