package market

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRoute_DefaultMarkets(t *testing.T) {
	reg := NewRegistry(Defaults()...)

	cases := []struct {
		raw       string
		wantID    string
		canonical string
	}{
		{"600519", "CNE", "600519.CN"},
		{"sh600519", "CNE", "600519.CN"},
		{"600519.SH", "CNE", "600519.CN"},
		{"000001", "CNE", "000001.CN"}, // leading 0 stays equity under the heuristic
		{"300750", "CNE", "300750.CN"},
		{"110011", "CNF", "110011.OF"},
		{"510300", "CNF", "510300.OF"},
		{"000001.OF", "CNF", "000001.OF"}, // explicit suffix beats the heuristic
		{"700", "HKE", "0700.HK"},
		{"9988.hk", "HKE", "9988.HK"},
		{"00700", "HKE", "00700.HK"},
		{"btc", "CRY", "BTC-USDT"},
		{"ETH-USDT", "CRY", "ETH-USDT"},
		{" 600519 ", "CNE", "600519.CN"},
	}

	for _, tc := range cases {
		m, canonical, err := reg.Route(tc.raw)
		require.NoErrorf(t, err, "route %q", tc.raw)
		require.Equalf(t, tc.wantID, m.ID, "market for %q", tc.raw)
		require.Equalf(t, tc.canonical, canonical, "canonical for %q", tc.raw)
	}
}

func TestRoute_NormalizationIsIdempotent(t *testing.T) {
	reg := NewRegistry(Defaults()...)

	raws := []string{"600519", "sz000001", "110011", "700", "00700.HK", "btc", "ETH-BTC", "510300.OF"}
	for _, raw := range raws {
		m1, c1, err := reg.Route(raw)
		require.NoError(t, err)

		// Routing the canonical form again must land on the same market and
		// leave the symbol unchanged.
		m2, c2, err := reg.Route(c1)
		require.NoErrorf(t, err, "re-route %q", c1)
		require.Equal(t, m1.ID, m2.ID)
		require.Equal(t, c1, c2)
		require.Equal(t, c1, m1.Canonical(c1))
	}
}

func TestRoute_Deterministic(t *testing.T) {
	reg := NewRegistry(Defaults()...)
	for i := 0; i < 10; i++ {
		m, c, err := reg.Route("510300")
		require.NoError(t, err)
		require.Equal(t, "CNF", m.ID)
		require.Equal(t, "510300.OF", c)
	}
}

func TestRoute_NoMarket(t *testing.T) {
	reg := NewRegistry(Defaults()...)
	for _, raw := range []string{"", "   ", "not a symbol!", "1234567890123"} {
		_, _, err := reg.Route(raw)
		require.Errorf(t, err, "raw %q", raw)
	}
}

func TestRoute_RegistrationOrderBreaksTies(t *testing.T) {
	always := func(string) bool { return true }
	ident := func(s string) string { return s }
	reg := NewRegistry(
		Market{ID: "first", Owns: always, Canonical: ident},
		Market{ID: "second", Owns: always, Canonical: ident},
	)
	m, _, err := reg.Route("anything")
	require.NoError(t, err)
	require.Equal(t, "first", m.ID)
}
