package scoring

import "time"

// Flow is the 5-day net buying of the two tracked investor classes, KRW.
type Flow struct {
	ForeignNet5D float64
	InstNet5D    float64
}

// LeaderRef points a follower ticker at one of its historically correlated
// leaders.
type LeaderRef struct {
	Leader      string
	Correlation float64
}

// Extras carries the optional side inputs some strategies consume. All maps
// may be nil; the accessors are nil-safe so scorers never check.
type Extras struct {
	AsOf time.Time

	// InvestorFlow is per-ticker foreign/institutional 5-day net buying.
	InvestorFlow map[string]Flow

	// Disclosures scores recent insider and major-holder filings per ticker,
	// positive for net buying.
	Disclosures map[string]float64

	// ShortInterestChange is the recent change in short interest per ticker,
	// positive when shorts are building.
	ShortInterestChange map[string]float64

	// Leaders maps follower tickers to their correlated leaders.
	Leaders map[string][]LeaderRef

	// ChangeMap is today's percent change per ticker, used by the
	// leader-follower strategy.
	ChangeMap map[string]float64
}

// FlowFor returns the investor flow for a ticker, zero when absent.
func (x *Extras) FlowFor(ticker string) Flow {
	if x == nil || x.InvestorFlow == nil {
		return Flow{}
	}
	return x.InvestorFlow[ticker]
}

// DisclosureFor returns the disclosure score for a ticker, 0 when absent.
func (x *Extras) DisclosureFor(ticker string) float64 {
	if x == nil || x.Disclosures == nil {
		return 0
	}
	return x.Disclosures[ticker]
}

// ShortChangeFor returns the short-interest change for a ticker, 0 when absent.
func (x *Extras) ShortChangeFor(ticker string) float64 {
	if x == nil || x.ShortInterestChange == nil {
		return 0
	}
	return x.ShortInterestChange[ticker]
}

// LeadersFor returns the leader references for a follower, nil when absent.
func (x *Extras) LeadersFor(ticker string) []LeaderRef {
	if x == nil || x.Leaders == nil {
		return nil
	}
	return x.Leaders[ticker]
}

// ChangeFor returns today's percent change for a ticker.
func (x *Extras) ChangeFor(ticker string) (float64, bool) {
	if x == nil || x.ChangeMap == nil {
		return 0, false
	}
	v, ok := x.ChangeMap[ticker]
	return v, ok
}
