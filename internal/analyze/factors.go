package analyze

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/souhailsouid/adele/internal/model"
	"github.com/souhailsouid/adele/internal/utils"
)

// Factor names
const (
	FactorOptions       = "options"
	FactorDarkPool      = "darkpool"
	FactorInsider       = "insider"
	FactorCongress      = "congress"
	FactorInstitutional = "institutional"
	FactorMomentum      = "momentum"
	FactorValuation     = "valuation"
)

// optionsSentiment compares call and put premium: +1 all calls, -1 all puts
func optionsSentiment(alerts []model.FlowAlert) model.FactorScore {
	f := model.FactorScore{Name: FactorOptions}

	var calls, puts decimal.Decimal
	for _, a := range alerts {
		switch {
		case a.IsCall():
			calls = calls.Add(a.TotalPremium)
		case a.IsPut():
			puts = puts.Add(a.TotalPremium)
		}
	}

	score, ok := utils.Imbalance(calls.InexactFloat64(), puts.InexactFloat64())
	if !ok {
		f.Reason = "no options flow"
		return f
	}
	f.Score = score
	f.Available = true
	f.Reason = fmt.Sprintf("calls %s vs puts %s premium", money(calls), money(puts))
	return f
}

// darkPoolSentiment compares volume printed at or above the NBBO mid with volume below it
func darkPoolSentiment(trades []model.DarkPoolTrade) model.FactorScore {
	f := model.FactorScore{Name: FactorDarkPool}

	var above, below int64
	for _, t := range trades {
		switch t.Side() {
		case 1:
			above += t.Size
		case -1:
			below += t.Size
		}
	}

	score, ok := utils.Imbalance(float64(above), float64(below))
	if !ok {
		f.Reason = "no classifiable dark pool prints"
		return f
	}
	f.Score = score
	f.Available = true
	f.Reason = fmt.Sprintf("%d shares at/above mid vs %d below", above, below)
	return f
}

// insiderSentiment compares open-market purchase value with sale value
func insiderSentiment(trades []model.InsiderTrade) model.FactorScore {
	f := model.FactorScore{Name: FactorInsider}

	var bought, sold decimal.Decimal
	var buys, sells int
	for _, t := range trades {
		switch {
		case t.IsPurchase():
			bought = bought.Add(t.Value())
			buys++
		case t.IsSale():
			sold = sold.Add(t.Value())
			sells++
		}
	}

	score, ok := utils.Imbalance(bought.InexactFloat64(), sold.InexactFloat64())
	if !ok {
		f.Reason = "no insider purchases or sales"
		return f
	}
	f.Score = score
	f.Available = true
	f.Reason = fmt.Sprintf("%d purchases (%s) vs %d sales (%s)", buys, money(bought), sells, money(sold))
	return f
}

// congressSentiment compares the number of buys and sells disclosed by members of Congress
func congressSentiment(trades []model.CongressTrade) model.FactorScore {
	f := model.FactorScore{Name: FactorCongress}

	var buys, sells int
	for _, t := range trades {
		switch {
		case t.IsBuy():
			buys++
		case t.IsSell():
			sells++
		}
	}

	score, ok := utils.Imbalance(float64(buys), float64(sells))
	if !ok {
		f.Reason = "no congressional trades"
		return f
	}
	f.Score = score
	f.Available = true
	f.Reason = fmt.Sprintf("%d buys vs %d sells", buys, sells)
	return f
}

// institutionalSentiment measures the aggregate 13F position change; a 10% net change saturates
func institutionalSentiment(holdings []model.InstitutionalHolding) model.FactorScore {
	f := model.FactorScore{Name: FactorInstitutional}

	var change, prior int64
	for _, h := range holdings {
		change += h.UnitsChange
		if p := h.PriorUnits(); p > 0 {
			prior += p
		}
	}

	if prior <= 0 {
		f.Reason = "no institutional holdings"
		return f
	}
	ratio := float64(change) / float64(prior)
	f.Score = utils.ClampSigned(ratio / 0.10)
	f.Available = true
	f.Reason = fmt.Sprintf("net 13F change %+.1f%% across %d holders", ratio*100, len(holdings))
	return f
}

// momentum scores the return over the window (20% saturates) and whether volume confirms it
func momentum(bars []model.Bar) model.FactorScore {
	f := model.FactorScore{Name: FactorMomentum}

	if len(bars) < 2 || bars[0].Close <= 0 {
		f.Reason = "not enough price history"
		return f
	}

	first := bars[0].Close
	last := bars[len(bars)-1].Close
	ret := (last - first) / first
	priceScore := utils.ClampSigned(ret / 0.20)

	f.Available = true
	if len(bars) < 20 {
		f.Score = priceScore
		f.Reason = fmt.Sprintf("%+.1f%% over %d sessions", ret*100, len(bars))
		return f
	}

	vols := utils.Volumes(bars)
	recent := mean(vols[len(vols)-5:])
	base := mean(vols[len(vols)-20:])
	volTrend := 0.0
	if base > 0 {
		volTrend = recent/base - 1
	}
	direction := 0.0
	if ret > 0 {
		direction = 1
	} else if ret < 0 {
		direction = -1
	}

	f.Score = utils.ClampSigned(0.7*priceScore + 0.3*direction*utils.ClampSigned(volTrend))
	f.Reason = fmt.Sprintf("%+.1f%% over %d sessions, 5d volume %+.0f%% vs 20d", ret*100, len(bars), volTrend*100)
	return f
}

// valuation scores the DCF upside; 30% upside or downside saturates
func valuation(dcf *model.DCF, price float64) model.FactorScore {
	f := model.FactorScore{Name: FactorValuation}
	if dcf == nil {
		f.Reason = "no DCF valuation"
		return f
	}

	d := *dcf
	if price > 0 {
		d.StockPrice = price
	}
	upside, ok := d.Upside()
	if !ok {
		f.Reason = "no DCF valuation"
		return f
	}
	f.Score = utils.ClampSigned(upside / 0.30)
	f.Available = true
	f.Reason = fmt.Sprintf("DCF %.2f vs price %.2f (%+.1f%%)", d.Value, d.StockPrice, upside*100)
	return f
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func money(d decimal.Decimal) string {
	v := d.InexactFloat64()
	switch {
	case math.Abs(v) >= 1e9:
		return fmt.Sprintf("$%.1fB", v/1e9)
	case math.Abs(v) >= 1e6:
		return fmt.Sprintf("$%.1fM", v/1e6)
	case math.Abs(v) >= 1e3:
		return fmt.Sprintf("$%.0fK", v/1e3)
	default:
		return fmt.Sprintf("$%.0f", v)
	}
}
