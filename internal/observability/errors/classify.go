// Package errors derives low-cardinality labels from errors for metrics and logs.
package errors

import (
	goerrors "errors"
	"reflect"
	"strings"
)

// Classify returns the innermost error's type as a tag-safe name
// ("*pgconn.PgError" becomes "pgconn_pgerror"). It returns "" for nil.
func Classify(err error) string {
	if err == nil {
		return ""
	}
	for {
		next := goerrors.Unwrap(err)
		if next == nil {
			break
		}
		err = next
	}

	t := reflect.TypeOf(err)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	name := strings.ToLower(strings.ReplaceAll(t.String(), ".", "_"))
	if name == "" {
		return "unknown"
	}
	return name
}
