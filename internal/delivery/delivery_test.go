package delivery

import (
	"os"
	"path/filepath"
	"testing"

	"kicks/internal/money"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeeTiers(t *testing.T) {
	cases := []struct {
		items int
		speed Speed
		want  int64
	}{
		{0, Standard, 0},
		{-3, Standard, 0},
		{1, Standard, 40},
		{3, Standard, 40},
		{4, Standard, 80},
		{9, Standard, 80},
		{10, Standard, 100},
		{19, Standard, 100},
		{20, Standard, 0},
		{150, Standard, 0},
		{5, Express, 100},
		{5, Scheduled, 90},
		{20, Express, 20},
		{2, Speed("teleport"), 40},
	}

	for _, tc := range cases {
		assert.Equal(t, money.FromMajor(tc.want), Fee(tc.items, tc.speed), "items=%d speed=%s", tc.items, tc.speed)
	}
}

func TestFeeNonIncreasingWithinTiers(t *testing.T) {
	for _, speed := range []Speed{Standard, Express, Scheduled} {
		for n := 1; n < 40; n++ {
			prev, cur := Fee(n, speed), Fee(n+1, speed)
			switch n + 1 {
			case 4, 10:
				// the published table charges more for bigger carts until 20 items
				assert.Greater(t, cur, prev)
			case 20:
				assert.Less(t, cur, prev)
			default:
				assert.Equal(t, prev, cur, "speed=%s n=%d", speed, n)
			}
		}
	}
}

func TestParseSpeed(t *testing.T) {
	s, err := ParseSpeed("")
	require.NoError(t, err)
	assert.Equal(t, Standard, s)

	s, err = ParseSpeed(" Express ")
	require.NoError(t, err)
	assert.Equal(t, Express, s)

	_, err = ParseSpeed("overnight")
	assert.Error(t, err)
}

func TestLoadPolicy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "delivery.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
tiers:
  - {min_items: 1, fee: 35.5}
  - {min_items: 6, fee: 60}
surcharges:
  express: 25
`), 0o600))

	p, err := LoadPolicy(path)
	require.NoError(t, err)

	assert.Equal(t, money.FromFloat(35.5), p.Fee(5, Standard))
	assert.Equal(t, money.FromMajor(85), p.Fee(6, Express))
	assert.Equal(t, money.FromMajor(70), p.Fee(6, Scheduled), "scheduled keeps default surcharge")
}

func TestLoadPolicyRejectsBadInput(t *testing.T) {
	_, err := parsePolicy([]byte(`tiers: []`))
	assert.Error(t, err)

	_, err = parsePolicy([]byte(`tiers: [{min_items: 0, fee: 10}]`))
	assert.Error(t, err)

	_, err = parsePolicy([]byte("tiers: [{min_items: 1, fee: 10}]\nsurcharges: {warp: 5}"))
	assert.Error(t, err)
}

func TestLeadTime(t *testing.T) {
	assert.Equal(t, OrderLeadTime, LeadTime(Standard))
	assert.Less(t, LeadTime(Express), LeadTime(Standard))
}
