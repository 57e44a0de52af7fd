package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseOrdinal(t *testing.T) {
	testCases := []struct {
		locale   Locale
		text     string
		expected time.Time
	}{
		{French, "1er janvier 2023", time.Date(2023, time.January, 1, 0, 0, 0, 0, French.Location)},
		{French, "03 Février 2023", time.Date(2023, time.February, 3, 0, 0, 0, 0, French.Location)},
		{French, "15 aout 2022", time.Date(2022, time.August, 15, 0, 0, 0, 0, French.Location)},
		{French, "9 DÉC. 2022", time.Date(2022, time.December, 9, 0, 0, 0, 0, French.Location)},
		{French, "28  juil  2024", time.Date(2024, time.July, 28, 0, 0, 0, 0, French.Location)},
		{English, "3rd January 2023", time.Date(2023, time.January, 3, 0, 0, 0, 0, time.UTC)},
		{English, "21st march 2021", time.Date(2021, time.March, 21, 0, 0, 0, 0, time.UTC)},
	}

	for _, test := range testCases {
		t.Run(test.text, func(t *testing.T) {
			date, err := ParseOrdinal(test.locale, test.text)
			require.NoError(t, err)
			require.True(t, test.expected.Equal(date), "expected %s, got %s", test.expected, date)
		})
	}
}

func TestParseOrdinalInvalid(t *testing.T) {
	for _, text := range []string{
		"",
		"janvier 2023",
		"31 février 2023",
		"3 jui 2023",
		"3 brumaire 2023",
		"3 janvier 23",
		"x janvier 2023",
	} {
		_, err := ParseOrdinal(French, text)
		require.Error(t, err, text)
	}

	// month names only resolve in their own locale
	_, err := ParseOrdinal(English, "3 janvier 2023")
	require.Error(t, err)
}

func TestParseDayMonthYear(t *testing.T) {
	date, err := ParseDayMonthYear(French, " 07/03/2023 ")
	require.NoError(t, err)
	require.Equal(t, time.Date(2023, time.March, 7, 0, 0, 0, 0, French.Location), date)

	_, err = ParseDayMonthYear(French, "2023-03-07")
	require.Error(t, err)
	_, err = ParseDayMonthYear(French, "7/3/2023")
	require.Error(t, err)
}
