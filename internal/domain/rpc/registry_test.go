package rpc

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/mmk-rpc-api/internal/domain/param"
)

var noop = HandlerFunc(func(context.Context, Call) (Response, error) { return OK(nil), nil })

func TestNewRegistry_IndexesModules(t *testing.T) {
	reg, err := NewRegistry(
		Module{Name: "a", Methods: []Descriptor{{Route: "/a/one", Handler: noop}, {Route: "a/two/", Handler: noop}}},
		Module{Name: "b", Methods: []Descriptor{{Route: "/b/one", Handler: noop}}},
	)
	require.NoError(t, err)

	assert.Equal(t, 3, reg.Len())
	assert.Equal(t, []string{"/a/one", "/a/two", "/b/one"}, reg.Routes())

	d, ok := reg.Lookup("a/two")
	require.True(t, ok)
	assert.Equal(t, "/a/two", d.Route)

	_, ok = reg.Lookup("/missing")
	assert.False(t, ok)
}

func TestNewRegistry_RejectsMisconfiguration(t *testing.T) {
	tests := []struct {
		name string
		d    Descriptor
		want error
	}{
		{"no handler", Descriptor{Route: "/x"}, ErrInvalidDescriptor},
		{"empty route", Descriptor{Route: " / ", Handler: noop}, ErrInvalidDescriptor},
		{
			"both session flags",
			Descriptor{Route: "/x", Handler: noop, RequiresSession: true, RequiresNoSession: true},
			ErrInvalidDescriptor,
		},
		{
			"unknown param type",
			Descriptor{Route: "/x", Handler: noop, Params: []param.Spec{{Key: "a", Type: "blob"}}},
			ErrInvalidDescriptor,
		},
		{
			"duplicate param",
			Descriptor{Route: "/x", Handler: noop, Params: []param.Spec{
				{Key: "a", Type: param.TypeInt}, {Key: "a", Type: param.TypeInt},
			}},
			ErrInvalidDescriptor,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRegistry(Module{Name: "m", Methods: []Descriptor{tt.d}})
			require.ErrorIs(t, err, tt.want)
		})
	}

	_, err := NewRegistry(
		Module{Name: "a", Methods: []Descriptor{{Route: "/dup", Handler: noop}}},
		Module{Name: "b", Methods: []Descriptor{{Route: "dup", Handler: noop}}},
	)
	require.ErrorIs(t, err, ErrDuplicateRoute)
}

func TestRegistry_WithLeavesOriginalUntouched(t *testing.T) {
	base, err := NewRegistry(Module{Name: "a", Methods: []Descriptor{{Route: "/a", Handler: noop}}})
	require.NoError(t, err)

	extended, err := base.With(Descriptor{Route: "/b", Handler: noop})
	require.NoError(t, err)

	_, ok := base.Lookup("/b")
	assert.False(t, ok)
	_, ok = extended.Lookup("/b")
	assert.True(t, ok)

	_, err = extended.With(Descriptor{Route: "/a", Handler: noop})
	require.ErrorIs(t, err, ErrDuplicateRoute)
}

func TestResponse_EnvelopeOmitsEmptyFields(t *testing.T) {
	b, err := json.Marshal(OK(nil).Normalize())
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":true}`, string(b))

	b, err = json.Marshal(FailKind(KindParamType, "bad").WithToken("tok").Normalize())
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":false,"message":"bad","code":"PARAM_TYPE","token":"tok"}`, string(b))

	ok := Response{Success: true, Data: 1, Message: "ignored", Code: KindHandlerError}
	b, err = json.Marshal(ok.Normalize())
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":true,"data":1}`, string(b))
}
