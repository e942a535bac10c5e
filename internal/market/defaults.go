package market

import (
	"regexp"
	"strings"

	"github.com/gary-Shen/wert-sub000/internal/quote"
)

// Provider names referenced by the default market set. The resolver maps
// these to concrete implementations at construction time.
const (
	ProviderTushare   = "tushare"
	ProviderEastmoney = "eastmoney"
	ProviderYahoo     = "yahoo"
	ProviderBinance   = "binance"
)

// IDs of the built-in markets.
const (
	IDCNFund   = "CNF"
	IDCNEquity = "CNE"
	IDHKEquity = "HKE"
	IDCrypto   = "CRY"
)

var (
	reBare6     = regexp.MustCompile(`^[0-9]{6}$`)
	reFundOF    = regexp.MustCompile(`^[0-9]{6}\.OF$`)
	reCNPrefix  = regexp.MustCompile(`^(SH|SZ|BJ)[0-9]{6}$`)
	reCNSuffix  = regexp.MustCompile(`^[0-9]{6}\.(SH|SZ|BJ|CN)$`)
	reHKBare    = regexp.MustCompile(`^[0-9]{1,5}$`)
	reHKSuffix  = regexp.MustCompile(`^[0-9]{1,5}\.HK$`)
	reCrypto    = regexp.MustCompile(`^[A-Z]{2,10}(-[A-Z]{2,10})?$`)
	fundLeading = "15"
)

// Defaults returns the built-in market set in registration order. The CN
// fund market is registered ahead of CN equity on purpose: both claim bare
// 6-digit codes and the earlier registration wins the tie.
//
// The leading-digit split between funds (1xxxxx, 5xxxxx) and equities
// (0/3/6xxxxx) is a best-effort heuristic, not authoritative: some fund
// codes collide with Shenzhen equity codes. The synced catalogue is the
// authoritative classification where available; explicit suffixes
// (.OF, .SH, ...) always bypass the heuristic.
func Defaults() []Market {
	return []Market{
		{
			ID:        IDCNFund,
			Currency:  "CNY",
			Class:     quote.ClassFund,
			Owns:      ownsCNFund,
			Canonical: canonicalCNFund,
			Providers: []string{ProviderTushare, ProviderEastmoney},
		},
		{
			ID:        IDCNEquity,
			Currency:  "CNY",
			Class:     quote.ClassEquity,
			Owns:      ownsCNEquity,
			Canonical: canonicalCNEquity,
			Providers: []string{ProviderTushare, ProviderEastmoney},
		},
		{
			ID:        IDHKEquity,
			Currency:  "HKD",
			Class:     quote.ClassEquity,
			Owns:      ownsHK,
			Canonical: canonicalHK,
			Providers: []string{ProviderYahoo, ProviderEastmoney},
		},
		{
			ID:        IDCrypto,
			Currency:  "USDT",
			Class:     quote.ClassCrypto,
			Owns:      ownsCrypto,
			Canonical: canonicalCrypto,
			Providers: []string{ProviderBinance},
		},
	}
}

func ownsCNFund(raw string) bool {
	s := strings.ToUpper(raw)
	if reFundOF.MatchString(s) {
		return true
	}
	return reBare6.MatchString(s) && strings.ContainsRune(fundLeading, rune(s[0]))
}

func canonicalCNFund(raw string) string {
	s := strings.ToUpper(strings.TrimSpace(raw))
	return strings.TrimSuffix(s, ".OF") + ".OF"
}

func ownsCNEquity(raw string) bool {
	s := strings.ToUpper(raw)
	return reCNPrefix.MatchString(s) || reCNSuffix.MatchString(s) || reBare6.MatchString(s)
}

func canonicalCNEquity(raw string) string {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if reCNPrefix.MatchString(s) {
		return s[2:] + ".CN"
	}
	if i := strings.IndexByte(s, '.'); i >= 0 {
		s = s[:i]
	}
	return s + ".CN"
}

func ownsHK(raw string) bool {
	s := strings.ToUpper(raw)
	return reHKSuffix.MatchString(s) || (reHKBare.MatchString(s) && len(s) < 6)
}

// canonicalHK zero-pads short board lots: "700" becomes "0700.HK".
// Five-digit codes (e.g. listed warrants) are kept at full width.
func canonicalHK(raw string) string {
	s := strings.ToUpper(strings.TrimSpace(raw))
	s = strings.TrimSuffix(s, ".HK")
	for len(s) < 4 {
		s = "0" + s
	}
	return s + ".HK"
}

func ownsCrypto(raw string) bool {
	return reCrypto.MatchString(strings.ToUpper(raw))
}

func canonicalCrypto(raw string) string {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if !strings.ContainsRune(s, '-') {
		s += "-USDT"
	}
	return s
}
