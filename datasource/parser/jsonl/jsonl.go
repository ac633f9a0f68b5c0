// Package jsonl loads JSON Lines data into in-memory partitions. Values are
// extracted with https://github.com/tidwall/gjson, so column names may be
// gjson paths into nested objects. Keys which do not correspond to a
// requested column are ignored; missing keys become nil values.
package jsonl

import (
	"bufio"
	"io"

	"github.com/tidwall/gjson"

	"github.com/go-preflow/preflow"
	"github.com/go-preflow/preflow/datasource/memory"
)

// Load parses JSON Lines into partitions of at most partitionSize rows each
func Load(r io.Reader, cols []string, partitionSize int) ([]preflow.Partition, error) {
	if partitionSize < 1 {
		partitionSize = 1
	}
	var parts []preflow.Partition
	pending := emptyColumns(cols)
	rows := 0
	flush := func() error {
		if rows == 0 {
			return nil
		}
		part, err := memory.CreatePartition(cols, pending)
		if err != nil {
			return err
		}
		parts = append(parts, part)
		pending = emptyColumns(cols)
		rows = 0
		return nil
	}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		parsed := gjson.Parse(line)
		for _, col := range cols {
			pending[col] = append(pending[col], parseValue(parsed.Get(col)))
		}
		rows++
		if rows == partitionSize {
			if err := flush(); err != nil {
				return nil, err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return parts, nil
}

// LoadDataset parses JSON Lines directly into an in-memory Dataset
func LoadDataset(r io.Reader, cols []string, partitionSize int) (preflow.Dataset, error) {
	parts, err := Load(r, cols, partitionSize)
	if err != nil {
		return nil, err
	}
	return memory.FromPartitions(parts), nil
}

func emptyColumns(cols []string) map[string][]interface{} {
	pending := make(map[string][]interface{}, len(cols))
	for _, col := range cols {
		pending[col] = []interface{}{}
	}
	return pending
}

func parseValue(res gjson.Result) interface{} {
	switch res.Type {
	case gjson.Number:
		return res.Float()
	case gjson.True, gjson.False:
		return res.Bool()
	case gjson.Null:
		return nil
	case gjson.String:
		return res.String()
	default:
		if !res.Exists() {
			return nil
		}
		return res.Raw
	}
}
