package store

import (
	"database/sql/driver"
	"strings"
	"sync"

	"modernc.org/sqlite"
)

// SQLite's built-in LOWER only folds ASCII. unicode_lower applies the same
// strings.ToLower the search term goes through, so non-ASCII text matches.
const sqliteLowerFunc = "unicode_lower"

var (
	registerLowerOnce sync.Once
	registerLowerErr  error
)

func registerSQLiteFunctions() error {
	registerLowerOnce.Do(func() {
		registerLowerErr = sqlite.RegisterDeterministicScalarFunction(sqliteLowerFunc, 1, unicodeLower)
	})
	return registerLowerErr
}

func unicodeLower(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	switch v := args[0].(type) {
	case nil:
		return nil, nil
	case string:
		return strings.ToLower(v), nil
	case []byte:
		return strings.ToLower(string(v)), nil
	default:
		return v, nil
	}
}
