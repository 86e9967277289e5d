package util

import (
	"strings"
	"testing"

	"github.com/bwise1/ride_pinpoint/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolyLineDecoder(t *testing.T) {
	encoded := "_p~iF~ps|U_ulLnnqC_mqNvxq`@"
	result, err := DecodePolyline(encoded, 5)
	if err != nil {
		t.Fatalf("Decoding returned error %v", err)
	}
	want := []model.Coordinate{
		{Latitude: 38.5, Longitude: -120.2},
		{Latitude: 40.7, Longitude: -120.95},
		{Latitude: 43.252, Longitude: -126.453},
	}
	require.Len(t, result, len(want))
	for i := range want {
		assert.InDelta(t, want[i].Latitude, result[i].Latitude, 1e-9)
		assert.InDelta(t, want[i].Longitude, result[i].Longitude, 1e-9)
	}
}

func TestPolyline6RoundTrip(t *testing.T) {
	path := []model.Coordinate{
		{Latitude: 45.42, Longitude: -75.70},
		{Latitude: 45.415123, Longitude: -75.695456},
		{Latitude: 45.40, Longitude: -75.69},
	}
	decoded, err := DecodePolyline(EncodePolyline(path, 6), 6)
	require.NoError(t, err)
	require.Len(t, decoded, len(path))
	for i := range path {
		assert.InDelta(t, path[i].Latitude, decoded[i].Latitude, 1e-6)
		assert.InDelta(t, path[i].Longitude, decoded[i].Longitude, 1e-6)
	}
}

func TestDecodePolyline_Empty(t *testing.T) {
	coords, err := DecodePolyline("", 6)
	assert.NoError(t, err)
	assert.Nil(t, coords)
}

func TestSanitizeQuery(t *testing.T) {
	testCases := []struct {
		name  string
		input string
		want  string
	}{
		{"Plain", "Rideau St", "Rideau St"},
		{"Trim", "   Rideau St  ", "Rideau St"},
		{"Allowed punctuation", `#12-34 O'Connor St., (rear) / "B"`, `#12-34 O'Connor St., (rear) / "B"`},
		{"Strips symbols", "Bank<script>St;%$@!", "BankscriptSt"},
		{"Tabs and newlines", "Elgin\tSt\n", "Elgin St"},
		{"Unicode letters", "Île-de-Montréal", "Île-de-Montréal"},
		{"Typographic quotes", "‘Byward’ “Market”", "‘Byward’ “Market”"},
		{"Empty", "", ""},
		{"Only junk", "<<>>", ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, SanitizeQuery(tc.input))
		})
	}
}

func TestSanitizeQuery_Truncates(t *testing.T) {
	long := strings.Repeat("é", 250)
	got := SanitizeQuery(long)
	assert.Equal(t, MaxQueryLength, QueryLength(got))
}

func TestSanitizeQuery_Idempotent(t *testing.T) {
	inputs := []string{
		"  Rideau   St  ",
		strings.Repeat("a b ", 80),
		" " + strings.Repeat("x", 205),
		"Sparks<>St #5",
		" Wellington\u0085",
	}
	for _, in := range inputs {
		once := SanitizeQuery(in)
		assert.Equal(t, once, SanitizeQuery(once), "input %q", in)
	}
}

func FuzzSanitizeQuery(f *testing.F) {
	f.Add("Rideau St")
	f.Add("  <b>Bank</b>  ")
	f.Add(strings.Repeat("ab ", 100))
	f.Fuzz(func(t *testing.T, s string) {
		once := SanitizeQuery(s)
		if twice := SanitizeQuery(once); twice != once {
			t.Fatalf("not idempotent: %q -> %q -> %q", s, once, twice)
		}
		if QueryLength(once) > MaxQueryLength {
			t.Fatalf("too long: %d", QueryLength(once))
		}
	})
}
