// Package universe builds and persists the daily tradable stock list. A
// pre-market job filters the full listing down to liquid common shares and
// writes filtered_stocks_<yyyymmdd>.csv; intraday ticks load that file and
// abort when it is missing.
package universe

import (
	"regexp"
	"sort"
	"strings"

	"github.com/samber/lo"

	"github.com/junghoon-woo/danta/internal/config"
	"github.com/junghoon-woo/danta/internal/domain"
)

// Name fragments that mark non-tradable listing types: SPACs and their
// numbered series, passive products, distressed or merging issues.
var excludedNameFragments = []string{
	"SPAC", "스팩",
	"리츠", "REIT",
	"ETF", "ETN",
	"인버스", "레버리지",
	"관리종목", "정리매매",
	"투자주의", "투자경고", "투자위험",
	"합병",
}

// Numbered vehicle series such as 삼성스팩4호.
var numberedSeries = regexp.MustCompile(`[0-9]+호`)

// Eligible reports whether a listing passes the hard exclusion rules:
// common share class (ticker ends in 0), no excluded name fragment, traded
// value at or above the floor, and market cap inside the configured band.
func Eligible(s domain.Stock, cfg config.UniverseConfig) bool {
	if !strings.HasSuffix(s.Ticker, "0") {
		return false
	}
	if ExcludedName(s.Name) {
		return false
	}
	if s.AvgValue < cfg.MinAvgValue {
		return false
	}
	if s.MarketCap <= 0 || s.MarketCap < cfg.MinMarketCap {
		return false
	}
	if cfg.MarketCapCeiling > 0 && s.MarketCap > cfg.MarketCapCeiling {
		return false
	}
	return true
}

// ExcludedName reports whether a listing name matches an exclusion pattern.
func ExcludedName(name string) bool {
	upper := strings.ToUpper(name)
	for _, fragment := range excludedNameFragments {
		if strings.Contains(upper, strings.ToUpper(fragment)) {
			return true
		}
	}
	return numberedSeries.MatchString(name)
}

// Select applies the exclusion rules and keeps the top-N listings per market
// by market cap. The result is ordered KOSPI before KOSDAQ, descending market
// cap within each, so the written file is deterministic for a given listing.
func Select(listings []domain.Stock, cfg config.UniverseConfig) []domain.Stock {
	eligible := lo.Filter(listings, func(s domain.Stock, _ int) bool {
		return Eligible(s, cfg)
	})

	byMarket := func(m domain.Market, limit int) []domain.Stock {
		stocks := lo.Filter(eligible, func(s domain.Stock, _ int) bool {
			return s.Market == m
		})
		sort.SliceStable(stocks, func(i, j int) bool {
			if stocks[i].MarketCap != stocks[j].MarketCap {
				return stocks[i].MarketCap > stocks[j].MarketCap
			}
			return stocks[i].Ticker < stocks[j].Ticker
		})
		if limit > 0 && len(stocks) > limit {
			stocks = stocks[:limit]
		}
		return stocks
	}

	out := byMarket(domain.MarketKOSPI, cfg.KOSPICount)
	return append(out, byMarket(domain.MarketKOSDAQ, cfg.KOSDAQCount)...)
}
