package recurrence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evcal/internal/model"
)

func form(date string, rule model.RepeatRule) model.EventForm {
	return model.EventForm{
		Title:            "반복 일정",
		Date:             date,
		StartTime:        "10:00",
		EndTime:          "11:00",
		Description:      "설명",
		Location:         "온라인",
		Category:         model.CategoryWork,
		Repeat:           rule,
		NotificationTime: 10,
	}
}

func dates(res Result) []string {
	out := make([]string, 0, len(res.Events))
	for _, ev := range res.Events {
		out = append(out, ev.Date)
	}
	return out
}

func TestGenerate_Cadences(t *testing.T) {
	tests := []struct {
		name string
		date string
		rule model.RepeatRule
		want []string
	}{
		{
			name: "daily crosses month end",
			date: "2025-01-30",
			rule: model.RepeatRule{Type: model.RepeatDaily, Interval: 1, EndDate: "2025-02-01"},
			want: []string{"2025-01-30", "2025-01-31", "2025-02-01"},
		},
		{
			name: "daily every third day",
			date: "2025-11-01",
			rule: model.RepeatRule{Type: model.RepeatDaily, Interval: 3, EndDate: "2025-11-10"},
			want: []string{"2025-11-01", "2025-11-04", "2025-11-07", "2025-11-10"},
		},
		{
			name: "weekly every other week",
			date: "2025-11-06",
			rule: model.RepeatRule{Type: model.RepeatWeekly, Interval: 2, EndDate: "2025-12-04"},
			want: []string{"2025-11-06", "2025-11-20", "2025-12-04"},
		},
		{
			name: "monthly skips february for the 31st",
			date: "2025-01-31",
			rule: model.RepeatRule{Type: model.RepeatMonthly, Interval: 1, EndDate: "2025-04-30"},
			want: []string{"2025-01-31", "2025-03-31"},
		},
		{
			name: "monthly every other month skips short months",
			date: "2025-01-31",
			rule: model.RepeatRule{Type: model.RepeatMonthly, Interval: 2, EndDate: "2025-12-31"},
			want: []string{"2025-01-31", "2025-03-31", "2025-05-31", "2025-07-31"},
		},
		{
			name: "monthly mid month",
			date: "2025-01-15",
			rule: model.RepeatRule{Type: model.RepeatMonthly, Interval: 1, EndDate: "2025-04-15"},
			want: []string{"2025-01-15", "2025-02-15", "2025-03-15", "2025-04-15"},
		},
		{
			name: "yearly leap day only in leap years",
			date: "2024-02-29",
			rule: model.RepeatRule{Type: model.RepeatYearly, Interval: 1, EndDate: "2032-12-31"},
			want: []string{"2024-02-29", "2028-02-29", "2032-02-29"},
		},
		{
			name: "yearly regular date",
			date: "2025-05-05",
			rule: model.RepeatRule{Type: model.RepeatYearly, Interval: 2, EndDate: "2030-01-01"},
			want: []string{"2025-05-05", "2027-05-05", "2029-05-05"},
		},
		{
			name: "end date equal to start",
			date: "2025-11-06",
			rule: model.RepeatRule{Type: model.RepeatWeekly, Interval: 1, EndDate: "2025-11-06"},
			want: []string{"2025-11-06"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Generate(form(tt.date, tt.rule), Options{})
			require.NoError(t, err)
			assert.Equal(t, tt.want, dates(res))
			assert.False(t, res.Truncated)
		})
	}
}

func TestGenerate_SharedFields(t *testing.T) {
	in := form("2025-11-06", model.RepeatRule{Type: model.RepeatDaily, Interval: 1, EndDate: "2025-11-30"})
	res, err := Generate(in, Options{})
	require.NoError(t, err)
	require.Len(t, res.Events, 25)

	seriesID := res.Events[0].Repeat.ID
	assert.NotEmpty(t, seriesID)
	for i, ev := range res.Events {
		assert.Equal(t, in.Title, ev.Title)
		assert.Equal(t, in.StartTime, ev.StartTime)
		assert.Equal(t, in.EndTime, ev.EndTime)
		assert.Equal(t, in.Description, ev.Description)
		assert.Equal(t, in.Location, ev.Location)
		assert.Equal(t, in.Category, ev.Category)
		assert.Equal(t, in.NotificationTime, ev.NotificationTime)
		assert.Equal(t, model.RepeatRule{
			Type: model.RepeatDaily, Interval: 1, EndDate: "2025-11-30", ID: seriesID,
		}, ev.Repeat)

		if i > 0 {
			assert.Greater(t, ev.Date, res.Events[i-1].Date, "dates must strictly increase")
		}
	}
	assert.Equal(t, in.Date, res.Events[0].Date)
}

func TestGenerate_SeriesID(t *testing.T) {
	rule := model.RepeatRule{Type: model.RepeatWeekly, Interval: 1, EndDate: "2025-12-31"}

	res, err := Generate(form("2025-11-06", rule), Options{SeriesID: "series-1"})
	require.NoError(t, err)
	for _, ev := range res.Events {
		assert.Equal(t, "series-1", ev.Repeat.ID)
	}

	rule.ID = "from-rule"
	res, err = Generate(form("2025-11-06", rule), Options{})
	require.NoError(t, err)
	assert.Equal(t, "from-rule", res.Events[0].Repeat.ID)

	a, err := Generate(form("2025-11-06", model.RepeatRule{Type: model.RepeatDaily, Interval: 1, EndDate: "2025-11-07"}), Options{})
	require.NoError(t, err)
	b, err := Generate(form("2025-11-06", model.RepeatRule{Type: model.RepeatDaily, Interval: 1, EndDate: "2025-11-07"}), Options{})
	require.NoError(t, err)
	assert.NotEqual(t, a.Events[0].Repeat.ID, b.Events[0].Repeat.ID)
}

func TestGenerate_None(t *testing.T) {
	in := form("2025-11-06", model.RepeatRule{Type: model.RepeatNone, EndDate: "2025-12-31", ID: "stale"})
	res, err := Generate(in, Options{})
	require.NoError(t, err)
	require.Len(t, res.Events, 1)
	assert.Equal(t, "2025-11-06", res.Events[0].Date)
	assert.Equal(t, model.NoRepeat(), res.Events[0].Repeat)
}

func TestGenerate_OpenEnded(t *testing.T) {
	rule := model.RepeatRule{Type: model.RepeatDaily, Interval: 1}

	t.Run("no horizon means no recurrence", func(t *testing.T) {
		res, err := Generate(form("2025-11-06", rule), Options{})
		require.NoError(t, err)
		assert.Equal(t, []string{"2025-11-06"}, dates(res))
		assert.Equal(t, model.NoRepeat(), res.Events[0].Repeat)
	})

	t.Run("horizon bounds the series", func(t *testing.T) {
		res, err := Generate(form("2025-11-06", rule), Options{OpenEndedHorizonDays: 3})
		require.NoError(t, err)
		assert.Equal(t, []string{"2025-11-06", "2025-11-07", "2025-11-08", "2025-11-09"}, dates(res))
		assert.Empty(t, res.Events[0].Repeat.EndDate)
	})
}

func TestGenerate_Cap(t *testing.T) {
	rule := model.RepeatRule{Type: model.RepeatDaily, Interval: 1, EndDate: "2030-12-31"}
	res, err := Generate(form("2025-01-01", rule), Options{MaxOccurrences: 10})
	require.NoError(t, err)
	assert.Len(t, res.Events, 10)
	assert.True(t, res.Truncated)
	assert.Equal(t, "2025-01-10", res.Events[9].Date)

	res, err = Generate(form("2025-01-01", model.RepeatRule{Type: model.RepeatDaily, Interval: 1, EndDate: "2025-01-10"}), Options{MaxOccurrences: 10})
	require.NoError(t, err)
	assert.Len(t, res.Events, 10)
	assert.False(t, res.Truncated)
}

func TestGenerate_Errors(t *testing.T) {
	tests := []struct {
		name string
		date string
		rule model.RepeatRule
		want error
	}{
		{"zero interval", "2025-11-06", model.RepeatRule{Type: model.RepeatDaily, EndDate: "2025-12-01"}, ErrInvalidInterval},
		{"unknown type", "2025-11-06", model.RepeatRule{Type: "hourly", Interval: 1}, ErrUnknownType},
		{"bad start", "2025-02-30", model.RepeatRule{Type: model.RepeatDaily, Interval: 1, EndDate: "2025-03-05"}, ErrInvalidDate},
		{"bad end", "2025-11-06", model.RepeatRule{Type: model.RepeatDaily, Interval: 1, EndDate: "someday"}, ErrInvalidDate},
		{"end before start", "2025-11-06", model.RepeatRule{Type: model.RepeatDaily, Interval: 1, EndDate: "2025-11-01"}, ErrEndBeforeStart},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Generate(form(tt.date, tt.rule), Options{})
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestRRule(t *testing.T) {
	got, err := RRule(model.RepeatRule{Type: model.RepeatWeekly, Interval: 2, EndDate: "2025-11-27"}, nil)
	require.NoError(t, err)
	assert.Contains(t, got, "FREQ=WEEKLY")
	assert.Contains(t, got, "INTERVAL=2")
	assert.Contains(t, got, "UNTIL=20251127T235959Z")

	seoul := time.FixedZone("KST", 9*60*60)
	got, err = RRule(model.RepeatRule{Type: model.RepeatDaily, Interval: 1, EndDate: "2025-11-27"}, seoul)
	require.NoError(t, err)
	assert.Contains(t, got, "UNTIL=20251127T145959Z")

	got, err = RRule(model.RepeatRule{Type: model.RepeatMonthly, Interval: 1}, nil)
	require.NoError(t, err)
	assert.Contains(t, got, "FREQ=MONTHLY")
	assert.NotContains(t, got, "UNTIL")

	got, err = RRule(model.NoRepeat(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = RRule(model.RepeatRule{Type: model.RepeatDaily, Interval: 1, EndDate: "nope"}, nil)
	assert.ErrorIs(t, err, ErrInvalidDate)
}
