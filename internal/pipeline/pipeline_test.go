package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/joshu-sajeev/brokerjobs/internal/config"
	"github.com/joshu-sajeev/brokerjobs/internal/policy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name  string   `json:"name" validate:"required"`
	Items []string `json:"items" validate:"max=2"`
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		want     sample
		wantKind config.ErrorKind
	}{
		{name: "empty is zero value", raw: ""},
		{name: "null is zero value", raw: "null"},
		{name: "valid document", raw: `{"name":"a","items":["x"]}`, want: sample{Name: "a", Items: []string{"x"}}},
		{name: "malformed json", raw: `{"name":`, wantKind: config.ErrorKindTerminal},
		{name: "fails validation", raw: `{"items":["x"]}`, wantKind: config.ErrorKindTerminal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode[sample]([]byte(tt.raw), "state")

			if tt.wantKind != "" {
				require.Error(t, err)
				kind, _ := policy.Classify(err)
				assert.Equal(t, tt.wantKind, kind)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodePayload_RequiresDocument(t *testing.T) {
	_, err := DecodePayload[sample](nil)

	require.Error(t, err)
	kind, _ := policy.Classify(err)
	assert.Equal(t, config.ErrorKindTerminal, kind)
}

func TestSleep(t *testing.T) {
	assert.NoError(t, Sleep(context.Background(), 0))
	assert.NoError(t, Sleep(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Sleep(ctx, time.Hour), context.Canceled)
}
