package model

import (
	"fmt"
	"strconv"
	"strings"
)

// BarAggregation is the unit an aggregator steps over.
type BarAggregation int

const (
	BarAggregationTick BarAggregation = iota
	BarAggregationVolume
	BarAggregationValue
	BarAggregationMillisecond
	BarAggregationSecond
	BarAggregationMinute
	BarAggregationHour
	BarAggregationDay
	BarAggregationWeek
	BarAggregationMonth
)

var barAggregationNames = map[BarAggregation]string{
	BarAggregationTick:        "TICK",
	BarAggregationVolume:      "VOLUME",
	BarAggregationValue:       "VALUE",
	BarAggregationMillisecond: "MILLISECOND",
	BarAggregationSecond:      "SECOND",
	BarAggregationMinute:      "MINUTE",
	BarAggregationHour:        "HOUR",
	BarAggregationDay:         "DAY",
	BarAggregationWeek:        "WEEK",
	BarAggregationMonth:       "MONTH",
}

func (a BarAggregation) String() string {
	if s, ok := barAggregationNames[a]; ok {
		return s
	}
	return "UNKNOWN"
}

// IsTimeBased reports whether the aggregation steps over wall/sim time
// rather than tick count, volume, or value.
func (a BarAggregation) IsTimeBased() bool {
	switch a {
	case BarAggregationMillisecond, BarAggregationSecond, BarAggregationMinute,
		BarAggregationHour, BarAggregationDay, BarAggregationWeek, BarAggregationMonth:
		return true
	default:
		return false
	}
}

func parseBarAggregation(s string) (BarAggregation, error) {
	for agg, name := range barAggregationNames {
		if name == s {
			return agg, nil
		}
	}
	return 0, fmt.Errorf("unknown bar aggregation %q", s)
}

// PriceType selects which side of the market a bar's OHLC is built from.
type PriceType int

const (
	PriceTypeBid PriceType = iota
	PriceTypeAsk
	PriceTypeMid
	PriceTypeLast
)

func (p PriceType) String() string {
	switch p {
	case PriceTypeBid:
		return "BID"
	case PriceTypeAsk:
		return "ASK"
	case PriceTypeMid:
		return "MID"
	case PriceTypeLast:
		return "LAST"
	default:
		return "UNKNOWN"
	}
}

// BarSpecification is (step, aggregation, price_type), e.g. 1-MINUTE-LAST.
type BarSpecification struct {
	Step        int
	Aggregation BarAggregation
	PriceType   PriceType
}

// NewBarSpecification validates step > 0.
func NewBarSpecification(step int, agg BarAggregation, priceType PriceType) (BarSpecification, error) {
	if step <= 0 {
		return BarSpecification{}, fmt.Errorf("bar specification step must be > 0, got %d", step)
	}
	return BarSpecification{Step: step, Aggregation: agg, PriceType: priceType}, nil
}

func (s BarSpecification) String() string {
	return fmt.Sprintf("%d-%s-%s", s.Step, s.Aggregation, s.PriceType)
}

// AggregationSource distinguishes bars built inside this process (Internal)
// from bars received pre-aggregated from a venue (External).
type AggregationSource int

const (
	AggregationSourceInternal AggregationSource = iota
	AggregationSourceExternal
)

func (s AggregationSource) String() string {
	if s == AggregationSourceExternal {
		return "EXTERNAL"
	}
	return "INTERNAL"
}

// BarType identifies a bar stream: instrument, specification, source, and
// an optional composite parent of form "@INTERVAL-SOURCE" chaining this
// aggregator's input to a shorter-period external bar subscription instead
// of raw ticks.
type BarType struct {
	InstrumentId InstrumentId
	Spec         BarSpecification
	Source       AggregationSource
	CompositeOf  *BarSpecification
}

func (t BarType) String() string {
	base := fmt.Sprintf("%s-%s-%s", t.InstrumentId, t.Spec, t.Source)
	if t.CompositeOf != nil {
		return fmt.Sprintf("%s@%d-%s-%s", base, t.CompositeOf.Step, t.CompositeOf.Aggregation, AggregationSourceExternal)
	}
	return base
}

// ParseBarType parses the canonical string form produced by BarType.String,
// including the optional "@INTERVAL-SOURCE" composite suffix.
func ParseBarType(s string) (BarType, error) {
	composite := strings.SplitN(s, "@", 2)
	head := composite[0]

	parts := strings.Split(head, "-")
	if len(parts) < 5 {
		return BarType{}, fmt.Errorf("malformed bar type %q", s)
	}
	// InstrumentId itself is "SYMBOL.VENUE", everything else is fixed arity.
	n := len(parts)
	sourceStr := parts[n-1]
	priceTypeStr := parts[n-2]
	aggStr := parts[n-3]
	stepStr := parts[n-4]
	instrumentStr := strings.Join(parts[:n-4], "-")

	instParts := strings.SplitN(instrumentStr, ".", 2)
	if len(instParts) != 2 {
		return BarType{}, fmt.Errorf("malformed instrument id in bar type %q", s)
	}
	instID, err := NewInstrumentId(instParts[0], instParts[1])
	if err != nil {
		return BarType{}, fmt.Errorf("bar type %q: %w", s, err)
	}

	step, err := strconv.Atoi(stepStr)
	if err != nil {
		return BarType{}, fmt.Errorf("bar type %q: bad step: %w", s, err)
	}
	agg, err := parseBarAggregation(aggStr)
	if err != nil {
		return BarType{}, fmt.Errorf("bar type %q: %w", s, err)
	}
	var priceType PriceType
	switch priceTypeStr {
	case "BID":
		priceType = PriceTypeBid
	case "ASK":
		priceType = PriceTypeAsk
	case "MID":
		priceType = PriceTypeMid
	case "LAST":
		priceType = PriceTypeLast
	default:
		return BarType{}, fmt.Errorf("bar type %q: bad price type %q", s, priceTypeStr)
	}
	spec, err := NewBarSpecification(step, agg, priceType)
	if err != nil {
		return BarType{}, fmt.Errorf("bar type %q: %w", s, err)
	}
	var source AggregationSource
	switch sourceStr {
	case "INTERNAL":
		source = AggregationSourceInternal
	case "EXTERNAL":
		source = AggregationSourceExternal
	default:
		return BarType{}, fmt.Errorf("bar type %q: bad source %q", s, sourceStr)
	}

	bt := BarType{InstrumentId: instID, Spec: spec, Source: source}

	if len(composite) == 2 {
		childParts := strings.Split(composite[1], "-")
		if len(childParts) != 3 {
			return BarType{}, fmt.Errorf("bar type %q: malformed composite suffix", s)
		}
		childStep, err := strconv.Atoi(childParts[0])
		if err != nil {
			return BarType{}, fmt.Errorf("bar type %q: bad composite step: %w", s, err)
		}
		childAgg, err := parseBarAggregation(childParts[1])
		if err != nil {
			return BarType{}, fmt.Errorf("bar type %q: %w", s, err)
		}
		childSpec, err := NewBarSpecification(childStep, childAgg, priceType)
		if err != nil {
			return BarType{}, fmt.Errorf("bar type %q: %w", s, err)
		}
		bt.CompositeOf = &childSpec
	}

	return bt, nil
}

// Bar is a single OHLCV candle for a BarType.
type Bar struct {
	Type    BarType
	Open    Price
	High    Price
	Low     Price
	Close   Price
	Volume  Quantity
	TsEvent int64
	TsInit  int64
}
