package execution

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriority_String(t *testing.T) {
	tests := []struct {
		p    Priority
		want string
	}{
		{PriorityHighest, "highest"},
		{PriorityHigh, "high"},
		{PriorityDefault, "default"},
		{PriorityLow, "low"},
		{PriorityLowest, "lowest"},
		{Priority(9), "priority(9)"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.p.String())
		})
	}
}

func TestPriority_Valid(t *testing.T) {
	assert.True(t, PriorityHighest.Valid())
	assert.True(t, PriorityLowest.Valid())
	assert.False(t, Priority(-1).Valid())
	assert.False(t, Priority(5).Valid())
}

func TestParsePriority(t *testing.T) {
	tests := []struct {
		in      string
		want    Priority
		wantErr bool
	}{
		{"highest", PriorityHighest, false},
		{"HIGH", PriorityHigh, false},
		{"", PriorityDefault, false},
		{"normal", PriorityDefault, false},
		{" low ", PriorityLow, false},
		{"lowest", PriorityLowest, false},
		{"urgent", PriorityDefault, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePriority(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrUnknownPriority)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOrderingKey_BandsDoNotOverlap(t *testing.T) {
	for p := PriorityHighest; p < PriorityLowest; p++ {
		last := NewOrderingKey(p, bandWidth-1)
		first := NewOrderingKey(p+1, 0)
		assert.Less(t, uint64(last), uint64(first), "band %s overlaps %s", p, p+1)
	}
}

func TestOrderingKey_PriorityAndSequence(t *testing.T) {
	for p := PriorityHighest; p <= PriorityLowest; p++ {
		for _, seq := range []uint64{0, 1, 42, bandWidth - 1} {
			k := NewOrderingKey(p, seq)
			assert.Equal(t, p, k.Priority())
			assert.Equal(t, seq, k.Sequence())
		}
	}
}

func TestOrderingKey_MaxValue(t *testing.T) {
	assert.Equal(t, PriorityLowest, OrderingKey(math.MaxUint64).Priority())
}

func TestOrderingKey_FIFOWithinBand(t *testing.T) {
	assert.Less(t, uint64(NewOrderingKey(PriorityDefault, 7)), uint64(NewOrderingKey(PriorityDefault, 8)))
}
