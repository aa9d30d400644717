package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		id       string
		kind     Kind
		strategy Strategy
	}{
		{
			name:     "provider native message id",
			id:       "0100018d1234abcd-aaaa-bbbb-cccc-ddddeeeeffff-000000",
			kind:     KindProviderNative,
			strategy: StrategyProviderLookup,
		},
		{
			name:     "short provider native id",
			id:       "abc123-def456-000001",
			kind:     KindProviderNative,
			strategy: StrategyProviderLookup,
		},
		{
			name:     "internal tracking id",
			id:       "trk_9f2b7c6e1a4d8f3c5e0a9b2d7c6f4e1a",
			kind:     KindInternal,
			strategy: StrategyInternalLookup,
		},
		{
			name:     "arbitrary string is ambiguous",
			id:       "something-completely-different",
			kind:     KindAmbiguous,
			strategy: StrategyDualLookup,
		},
		{
			name:     "uppercase hex is not provider native",
			id:       "0100018D1234ABCD-AAAA-000000",
			kind:     KindAmbiguous,
			strategy: StrategyDualLookup,
		},
		{
			name:     "hex without segments is ambiguous",
			id:       "deadbeef",
			kind:     KindAmbiguous,
			strategy: StrategyDualLookup,
		},
		{
			name:     "empty string is ambiguous",
			id:       "",
			kind:     KindAmbiguous,
			strategy: StrategyDualLookup,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Classify(tt.id)
			assert.Equal(t, tt.kind, c.Kind)
			assert.Equal(t, tt.strategy, c.Strategy)
		})
	}
}
