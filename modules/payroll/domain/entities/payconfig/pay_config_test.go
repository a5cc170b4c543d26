package payconfig

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func dayPtr(y int, m time.Month, d int) *time.Time {
	t := day(y, m, d)
	return &t
}

func validPercentage() *Config {
	return &Config{
		SubjectID:         uuid.New(),
		Kind:              KindPercentage,
		DriverPercent:     decimal.NewFromInt(70),
		CompanyPercent:    decimal.NewFromInt(20),
		ServiceFeePercent: decimal.NewFromInt(10),
		EffectiveDate:     day(2024, time.January, 1),
	}
}

func TestConfigValidate_Percentage(t *testing.T) {
	require.NoError(t, validPercentage().Validate())

	c := validPercentage()
	c.DriverPercent = decimal.NewFromInt(101)
	require.ErrorContains(t, c.Validate(), "driver_pct")

	c = validPercentage()
	c.ServiceFeePercent = decimal.NewFromInt(-1)
	require.ErrorContains(t, c.Validate(), "service_fee_pct")
}

func TestConfigValidate_RequiredFields(t *testing.T) {
	c := validPercentage()
	c.SubjectID = uuid.Nil
	require.ErrorContains(t, c.Validate(), "subject_id")

	c = validPercentage()
	c.EffectiveDate = time.Time{}
	require.ErrorContains(t, c.Validate(), "effective_date")

	c = validPercentage()
	c.Kind = Kind("hourly")
	require.ErrorContains(t, c.Validate(), "unknown pay kind")
}

func TestConfigValidate_EndBeforeStart(t *testing.T) {
	c := validPercentage()
	c.EndDate = dayPtr(2023, time.December, 31)
	require.ErrorContains(t, c.Validate(), "precedes")
}

func TestConfigValidate_FlatRateAndPerMile(t *testing.T) {
	c := &Config{
		SubjectID:      uuid.New(),
		Kind:           KindFlatRate,
		FlatRateAmount: decimal.NewFromInt(1500),
		EffectiveDate:  day(2024, time.March, 1),
	}
	require.NoError(t, c.Validate())

	c.FlatRateAmount = decimal.NewFromInt(-5)
	require.ErrorContains(t, c.Validate(), "flat_rate")

	m := &Config{
		SubjectID:     uuid.New(),
		Kind:          KindPerMile,
		PerMileRate:   decimal.RequireFromString("0.55"),
		EffectiveDate: day(2024, time.March, 1),
	}
	require.NoError(t, m.Validate())

	m.PerMileRate = decimal.RequireFromString("-0.01")
	require.ErrorContains(t, m.Validate(), "per_mile_rate")
}

func TestIntervalOverlaps(t *testing.T) {
	closed := func(a, b time.Time) Interval { return Interval{Start: a, End: &b} }
	open := func(a time.Time) Interval { return Interval{Start: a} }

	jan := day(2024, time.January, 1)
	mar := day(2024, time.March, 31)
	apr := day(2024, time.April, 1)
	jun := day(2024, time.June, 30)

	require.False(t, closed(jan, mar).Overlaps(closed(apr, jun)))
	require.False(t, closed(apr, jun).Overlaps(closed(jan, mar)))

	// Shared boundary day counts: intervals are inclusive on both ends.
	require.True(t, closed(jan, apr).Overlaps(closed(apr, jun)))

	// A candidate fully containing an existing open record overlaps it,
	// and vice versa.
	require.True(t, open(jan).Overlaps(closed(apr, jun)))
	require.True(t, closed(apr, jun).Overlaps(open(jan)))
	require.True(t, open(jan).Overlaps(open(apr)))
}

func TestIntervalContains(t *testing.T) {
	iv := Interval{Start: day(2024, time.January, 1), End: dayPtr(2024, time.May, 31)}
	require.True(t, iv.Contains(day(2024, time.January, 1)))
	require.True(t, iv.Contains(day(2024, time.May, 31)))
	require.False(t, iv.Contains(day(2024, time.June, 1)))
	require.False(t, iv.Contains(day(2023, time.December, 31)))

	openEnded := Interval{Start: day(2024, time.January, 1)}
	require.True(t, openEnded.Contains(day(2030, time.July, 4)))
}

func TestConfigState(t *testing.T) {
	today := day(2024, time.June, 15)

	c := validPercentage()
	require.Equal(t, StateOpen, c.State(today))

	c.EffectiveDate = day(2024, time.July, 1)
	require.Equal(t, StatePending, c.State(today))

	c.EffectiveDate = day(2024, time.January, 1)
	c.EndDate = dayPtr(2024, time.May, 31)
	require.Equal(t, StateClosed, c.State(today))

	// A record closing today is still in force today.
	c.EndDate = dayPtr(2024, time.June, 15)
	require.Equal(t, StateOpen, c.State(today))
}

func TestNormalizeDate(t *testing.T) {
	loc := time.FixedZone("CST", -6*3600)
	stamp := time.Date(2024, time.June, 1, 23, 30, 0, 0, loc)
	require.Equal(t, day(2024, time.June, 2), NormalizeDate(stamp))
	require.True(t, NormalizeDate(time.Time{}).IsZero())
}

func TestParseKind(t *testing.T) {
	for _, valid := range []string{"percentage", "flat_rate", "per_mile"} {
		k, err := ParseKind(valid)
		require.NoError(t, err)
		require.True(t, k.Valid())
	}
	_, err := ParseKind("salary")
	require.Error(t, err)
	require.False(t, Kind("").Valid())
}
