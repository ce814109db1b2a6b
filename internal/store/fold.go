package store

import (
	"database/sql/driver"
	"fmt"
	"strings"

	sqlite "modernc.org/sqlite"
)

func init() {
	// SQLite's lower() only folds ASCII; search needs full Unicode case folding.
	if err := sqlite.RegisterDeterministicScalarFunction("fold", 1, foldValue); err != nil {
		panic(fmt.Sprintf("register sqlite fold: %v", err))
	}
}

func foldValue(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	switch value := args[0].(type) {
	case nil:
		return nil, nil
	case string:
		return foldText(value), nil
	case []byte:
		return foldText(string(value)), nil
	default:
		return foldText(fmt.Sprint(value)), nil
	}
}

func foldText(text string) string {
	return strings.ToLower(text)
}
