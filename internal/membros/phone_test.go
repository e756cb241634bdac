package membros

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatPhone(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Phone
	}{
		{
			name: "full number with country prefix",
			raw:  "5511987654321",
			want: Phone{CountryCode: "55", AreaCode: "11", Number: "987654321"},
		},
		{
			name: "formatted input",
			raw:  "+55 (21) 98765-4321",
			want: Phone{CountryCode: "55", AreaCode: "21", Number: "987654321"},
		},
		{
			name: "no country prefix",
			raw:  "11987654321",
			want: Phone{CountryCode: "55", AreaCode: "11", Number: "987654321"},
		},
		{
			name: "landline length",
			raw:  "1133334444",
			want: Phone{CountryCode: "55", AreaCode: "11", Number: "33334444"},
		},
		{
			name: "too short falls back to placeholder",
			raw:  "98765",
			want: Phone{CountryCode: "55", AreaCode: "11", Number: "999999999"},
		},
		{
			name: "empty falls back to placeholder",
			raw:  "",
			want: Phone{CountryCode: "55", AreaCode: "11", Number: "999999999"},
		},
		{
			name: "55 kept when it is the area portion",
			raw:  "5533334444",
			want: Phone{CountryCode: "55", AreaCode: "55", Number: "33334444"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatPhone(tt.raw))
		})
	}
}
