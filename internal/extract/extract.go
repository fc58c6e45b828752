// Package extract provides the typed value extractor registry used by the
// result set parser.
//
// An extractor converts one raw result set cell into a typed record value,
// or reports null. Extractors are pure functions: stateless, side-effect
// free, and total over well-formed driver input (nil, bool, int64, float64,
// string, []byte, time.Time).
//
// The registry is process-wide. A parser snapshots the registry when it is
// constructed, so registering a new extractor affects only parsers
// constructed afterwards.
package extract

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/roach88/rsparser/internal/record"
)

// Func converts a raw result set cell into a typed value.
// A nil return reports a null cell. rowNum and colInd identify the cell for
// custom extractors that want positional context; the built-ins ignore them.
type Func func(raw any, rowNum, colInd int) record.Value

// Built-in extractor names. The markup compiler consults extractors only by
// name; the schema value types map onto these directly.
const (
	TypeString   = "string"
	TypeNumber   = "number"
	TypeBoolean  = "boolean"
	TypeDatetime = "datetime"
	IsNull       = "isNull"
)

var (
	registryMu sync.RWMutex
	registry   = map[string]Func{
		TypeString:   extractString,
		TypeNumber:   extractNumber,
		TypeBoolean:  extractBoolean,
		TypeDatetime: extractDatetime,
		IsNull:       extractIsNull,
	}
)

// Register adds or replaces a process-wide extractor.
// Parsers constructed before the call keep their previous snapshot.
func Register(name string, fn Func) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = fn
}

// Snapshot returns a copy of the current registry for a parser to own.
func Snapshot() map[string]Func {
	registryMu.RLock()
	defer registryMu.RUnlock()
	snap := make(map[string]Func, len(registry))
	for name, fn := range registry {
		snap[name] = fn
	}
	return snap
}

func extractString(raw any, _, _ int) record.Value {
	switch v := raw.(type) {
	case nil:
		return nil
	case string:
		return record.String(v)
	case []byte:
		return record.String(v)
	case int64:
		return record.String(strconv.FormatInt(v, 10))
	case int:
		return record.String(strconv.Itoa(v))
	case float64:
		return record.String(strconv.FormatFloat(v, 'f', -1, 64))
	case bool:
		return record.String(strconv.FormatBool(v))
	case time.Time:
		return record.String(v.UTC().Format(time.RFC3339))
	default:
		return record.String(fmt.Sprintf("%v", v))
	}
}

func extractNumber(raw any, _, _ int) record.Value {
	switch v := raw.(type) {
	case nil:
		return nil
	case int64:
		return record.Number(v)
	case int:
		return record.Number(v)
	case float64:
		return record.Number(v)
	case float32:
		return record.Number(v)
	case []byte:
		return parseNumber(string(v))
	case string:
		return parseNumber(v)
	default:
		return nil
	}
}

func parseNumber(s string) record.Value {
	n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return nil
	}
	return record.Number(n)
}

func extractBoolean(raw any, _, _ int) record.Value {
	switch v := raw.(type) {
	case nil:
		return nil
	case bool:
		return record.Bool(v)
	case int64:
		return record.Bool(v != 0)
	case int:
		return record.Bool(v != 0)
	case float64:
		return record.Bool(v != 0)
	case []byte:
		return parseBoolean(string(v))
	case string:
		return parseBoolean(v)
	default:
		return record.Bool(true)
	}
}

func parseBoolean(s string) record.Value {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "0", "false", "f", "no", "n":
		return record.Bool(false)
	default:
		return record.Bool(true)
	}
}

func extractDatetime(raw any, _, _ int) record.Value {
	switch v := raw.(type) {
	case nil:
		return nil
	case time.Time:
		return record.Datetime(v.UTC().Format(time.RFC3339))
	case string:
		return record.Datetime(v)
	case []byte:
		return record.Datetime(v)
	default:
		return nil
	}
}

func extractIsNull(raw any, _, _ int) record.Value {
	return record.Bool(raw == nil)
}
