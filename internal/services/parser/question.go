package parser

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"PolyEdge/internal/domain/models"
	"PolyEdge/internal/domain/service"
	"PolyEdge/pkg/util"
)

// ErrUnparseable is returned when a question carries no usable threshold, direction or location.
var ErrUnparseable = errors.New("unparseable market question")

var (
	rePrice     = regexp.MustCompile(`(\$)?(\d[\d,]*(?:\.\d+)?)\s*(k\b)?`)
	reTempF     = regexp.MustCompile(`(\d+)\s*°?\s*[fF]\b`)
	reTempDeg   = regexp.MustCompile(`(\d+)\s*degrees`)
	rePrecipMM  = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(?:mm|millimeters?)\b`)
	reInches    = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(?:inch|")`)
	reMonthDay  = regexp.MustCompile(`\b(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.?\s+(\d{1,2})\b`)
	rePriceUp   = wordRegexp("above", "over", "higher than", "greater than")
	rePriceDown = wordRegexp("below", "under", "lower than", "less than")
	reTempUp    = wordRegexp("above", "over", "exceed", "exceeds", "hit", "reach", "reaches", "at least", "or more")
	reTempDown  = wordRegexp("below", "under", "drop", "drops", "fall below", "or less")
	reToday     = wordRegexp("today")
	reTomorrow  = wordRegexp("tomorrow")
)

var months = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March, "apr": time.April,
	"may": time.May, "jun": time.June, "jul": time.July, "aug": time.August,
	"sep": time.September, "oct": time.October, "nov": time.November, "dec": time.December,
}

// kindKeywords is checked in order; the first kind with a matching word prefix wins.
var kindKeywords = []struct {
	kind models.MarketKind
	re   *regexp.Regexp
}{
	{models.KindTemperature, prefixRegexp("temperature", "degrees", "hot", "cold", "heat", "freez", "high of", "low of")},
	{models.KindPrecipitation, prefixRegexp("rain", "precipitation", "shower")},
	{models.KindSnow, prefixRegexp("snow", "blizzard", "ice storm")},
	{models.KindStorm, prefixRegexp("hurricane", "typhoon", "cyclone")},
	{models.KindTornado, prefixRegexp("tornado", "twister")},
	{models.KindWind, prefixRegexp("wind", "gust")},
}

var reDegreeSymbol = regexp.MustCompile(`\d\s*°\s*[fc]\b`)

func wordRegexp(words ...string) *regexp.Regexp {
	q := make([]string, len(words))
	for i, w := range words {
		q[i] = regexp.QuoteMeta(w)
	}
	return regexp.MustCompile(`\b(?:` + strings.Join(q, "|") + `)\b`)
}

func prefixRegexp(words ...string) *regexp.Regexp {
	q := make([]string, len(words))
	for i, w := range words {
		q[i] = regexp.QuoteMeta(w)
	}
	return regexp.MustCompile(`\b(?:` + strings.Join(q, "|") + `)`)
}

// Parser extracts thresholds, directions, dates and locations from market text.
type Parser struct {
	clock          models.Clock
	cities         *cityIndex
	minPriceTarget float64
}

var _ service.QuestionParser = (*Parser)(nil)

// Option configures a Parser.
type Option func(*Parser)

// WithClock sets the clock used to resolve "today", "tomorrow" and month-day dates.
func WithClock(c models.Clock) Option {
	return func(p *Parser) { p.clock = c }
}

// WithMinPriceTarget ignores numbers at or below min when looking for a price target.
func WithMinPriceTarget(min float64) Option {
	return func(p *Parser) { p.minPriceTarget = min }
}

// New creates a parser.
func New(opts ...Option) *Parser {
	p := &Parser{
		clock:          time.Now,
		cities:         newCityIndex(knownCities),
		minPriceTarget: 1000,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ParsePrice reads a target price and direction from a price market question.
func (p *Parser) ParsePrice(question string) (models.PriceQuestion, error) {
	lower := strings.ToLower(question)

	var dir models.Direction
	switch {
	case rePriceUp.MatchString(lower):
		dir = models.DirectionAbove
	case rePriceDown.MatchString(lower):
		dir = models.DirectionBelow
	default:
		return models.PriceQuestion{}, fmt.Errorf("%w: no direction in %q", ErrUnparseable, question)
	}

	// dollar amounts are preferred over bare numbers such as years
	matches := rePrice.FindAllStringSubmatch(lower, -1)
	for _, dollar := range []bool{true, false} {
		for _, m := range matches {
			if (m[1] != "") != dollar {
				continue
			}
			v, err := strconv.ParseFloat(strings.ReplaceAll(m[2], ",", ""), 64)
			if err != nil {
				continue
			}
			if m[3] != "" {
				v *= 1000
			}
			if v > p.minPriceTarget {
				return models.PriceQuestion{Target: v, Direction: dir}, nil
			}
		}
	}
	return models.PriceQuestion{}, fmt.Errorf("%w: no price target in %q", ErrUnparseable, question)
}

// Classify returns the market kind named by text.
func Classify(text string) models.MarketKind {
	lower := strings.ToLower(text)
	if reDegreeSymbol.MatchString(lower) {
		return models.KindTemperature
	}
	for _, k := range kindKeywords {
		if k.re.MatchString(lower) {
			return k.kind
		}
	}
	return models.KindUnknown
}

// ParseWeather builds a WeatherQuestion for temperature, precipitation and snow markets.
// Other kinds are reported with their Kind set and an ErrUnparseable error.
func (p *Parser) ParseWeather(question, description string) (models.WeatherQuestion, error) {
	full := question + " " + description
	q := models.WeatherQuestion{Kind: Classify(full)}

	loc, ok := p.cities.find(full)
	if !ok {
		return q, fmt.Errorf("%w: no known location in %q", ErrUnparseable, question)
	}
	q.Location = loc

	lower := strings.ToLower(question)
	q.Direction = weatherDirection(lower)
	q.TargetDate = p.targetDate(lower)

	switch q.Kind {
	case models.KindTemperature:
		f, ok := temperatureF(question, lower)
		if !ok {
			return q, fmt.Errorf("%w: no temperature threshold in %q", ErrUnparseable, question)
		}
		q.Threshold, q.HasThreshold = f, true
	case models.KindPrecipitation:
		q.Threshold, q.HasThreshold = precipitationMM(lower)
	case models.KindSnow:
		q.Threshold, q.HasThreshold = snowInches(lower)
	default:
		return q, fmt.Errorf("%w: unsupported market kind %s", ErrUnparseable, q.Kind)
	}
	return q, nil
}

func weatherDirection(lower string) models.Direction {
	switch {
	case reTempUp.MatchString(lower):
		return models.DirectionAbove
	case reTempDown.MatchString(lower):
		return models.DirectionBelow
	default:
		return models.DirectionHit
	}
}

func temperatureF(question, lower string) (float64, bool) {
	if m := reTempF.FindStringSubmatch(question); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			return v, true
		}
	}
	if m := reTempDeg.FindStringSubmatch(lower); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			return v, true
		}
	}
	return 0, false
}

// precipitationMM returns the threshold in millimetres.
func precipitationMM(lower string) (float64, bool) {
	if m := rePrecipMM.FindStringSubmatch(lower); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil && v > 0 {
			return v, true
		}
	}
	if v, ok := inches(lower); ok {
		return v * 25.4, true
	}
	return 0, false
}

// snowInches returns the threshold in inches.
func snowInches(lower string) (float64, bool) {
	return inches(lower)
}

func inches(lower string) (float64, bool) {
	m := reInches.FindStringSubmatch(lower)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}

// targetDate resolves "<month> <day>" in the clock's current year, then "tomorrow", then "today".
func (p *Parser) targetDate(lower string) *time.Time {
	now := p.clock().UTC()
	today := util.StartOfDayUTC(now)

	if m := reMonthDay.FindStringSubmatch(lower); m != nil {
		month := months[m[1]]
		day, err := strconv.Atoi(m[2])
		if err == nil {
			d := time.Date(now.Year(), month, day, 0, 0, 0, 0, time.UTC)
			if d.Month() == month && d.Day() == day {
				return &d
			}
		}
	}
	if reTomorrow.MatchString(lower) {
		d := today.AddDate(0, 0, 1)
		return &d
	}
	if reToday.MatchString(lower) {
		return &today
	}
	return nil
}
