package testutil

import "testing"

func TestRedactURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "newsapi key",
			in:   "https://newsapi.org/v2/top-headlines?country=fr&apiKey=abc123",
			want: "https://newsapi.org/v2/top-headlines?apiKey=REDACTED&country=fr",
		},
		{
			name: "countrylayer key",
			in:   "https://api.countrylayer.com/v2/name/France?access_key=abc123",
			want: "https://api.countrylayer.com/v2/name/France?access_key=REDACTED",
		},
		{
			name: "exchangerate path key",
			in:   "https://v6.exchangerate-api.com/v6/abc123/latest/EUR",
			want: "https://v6.exchangerate-api.com/v6/REDACTED/latest/EUR",
		},
		{
			name: "no secrets",
			in:   "https://restcountries.com/v3.1/name/France",
			want: "https://restcountries.com/v3.1/name/France",
		},
		{
			name: "escaped path survives",
			in:   "https://restcountries.com/v3.1/name/United%20States",
			want: "https://restcountries.com/v3.1/name/United%20States",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RedactURL(tt.in); got != tt.want {
				t.Errorf("RedactURL() = %q, want %q", got, tt.want)
			}
		})
	}
}
