package errors

import (
	"context"
	goerrors "errors"
	"fmt"
	"testing"
)

type customErr struct{}

func (*customErr) Error() string { return "custom" }

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"plain", goerrors.New("x"), "errors_errorstring"},
		{"wrapped pointer type", fmt.Errorf("outer: %w", &customErr{}), "errors_customerr"},
		{"context", fmt.Errorf("q: %w", context.DeadlineExceeded), "context_deadlineexceedederror"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify() = %q, want %q", got, tt.want)
			}
		})
	}
}
