package cache

import (
	"time"

	"github.com/gary-Shen/wert-sub000/internal/quote"
)

// ttlPair holds the TTL to use inside and outside the reference trading
// session.
type ttlPair struct {
	session time.Duration
	closed  time.Duration
}

// FreshnessPolicy computes TTLs from the reference market's trading session:
// Asia/Shanghai, Monday to Friday, 09:30-11:30 and 13:00-15:00, no holiday
// calendar. Intraday equity prices mislead quickly when stale, so they get
// minutes; after-hours prices and fund NAVs do not move until the next
// session, so they get hours. TTLs are looked up per instrument class rather
// than computed, so adding a class never touches cache code.
type FreshnessPolicy struct {
	loc  *time.Location
	now  func() time.Time
	ttls map[quote.Class]ttlPair
}

const defaultTTL = 5 * time.Minute

func NewFreshnessPolicy() *FreshnessPolicy {
	loc, err := time.LoadLocation("Asia/Shanghai")
	if err != nil {
		loc = time.FixedZone("CST", 8*3600)
	}
	return &FreshnessPolicy{
		loc: loc,
		now: time.Now,
		ttls: map[quote.Class]ttlPair{
			quote.ClassEquity: {session: 2 * time.Minute, closed: 30 * time.Minute},
			quote.ClassFund:   {session: 30 * time.Minute, closed: 6 * time.Hour},
			// Crypto trades continuously; the intraday TTL applies around
			// the clock.
			quote.ClassCrypto:    {session: 2 * time.Minute, closed: 2 * time.Minute},
			quote.ClassCatalogue: {session: 6 * time.Hour, closed: 6 * time.Hour},
		},
	}
}

// TTL returns the freshness window for the instrument class at the current
// time. Unknown classes get a conservative default.
func (p *FreshnessPolicy) TTL(class quote.Class) time.Duration {
	pair, ok := p.ttls[class]
	if !ok {
		return defaultTTL
	}
	if p.InTradingSession(p.now()) {
		return pair.session
	}
	return pair.closed
}

// InTradingSession reports whether t falls inside the reference session.
// Business days are Monday-Friday; there is no holiday calendar, which only
// costs a few wasted upstream calls on exchange holidays.
func (p *FreshnessPolicy) InTradingSession(t time.Time) bool {
	lt := t.In(p.loc)
	switch lt.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	hm := lt.Hour()*60 + lt.Minute()
	morning := hm >= 9*60+30 && hm <= 11*60+30
	afternoon := hm >= 13*60 && hm <= 15*60
	return morning || afternoon
}

// Fresh reports whether rec is still usable for the given class.
func (p *FreshnessPolicy) Fresh(rec quote.PriceRecord, class quote.Class) bool {
	if rec.CachedAt.IsZero() {
		return false
	}
	return p.now().Sub(rec.CachedAt) < p.TTL(class)
}
