package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseWriters(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []Writer
	}{
		{
			name:  "single writer",
			input: "Smith, John [IP001]",
			want:  []Writer{{LastName: "Smith", FirstName: "John", IPCode: "IP001"}},
		},
		{
			name:  "semicolon and pipe separators",
			input: "Smith, John [IP001]; Doe, Jane [IP002] | Roe, Rick [IP003]",
			want: []Writer{
				{LastName: "Smith", FirstName: "John", IPCode: "IP001"},
				{LastName: "Doe", FirstName: "Jane", IPCode: "IP002"},
				{LastName: "Roe", FirstName: "Rick", IPCode: "IP003"},
			},
		},
		{
			name:  "extra whitespace is trimmed",
			input: "  Smith ,   John   [ IP001 ]  ",
			want:  []Writer{{LastName: "Smith", FirstName: "John", IPCode: "IP001"}},
		},
		{
			name:  "multi-word names",
			input: "Van Halen, Eddie Lee [00012345678]",
			want:  []Writer{{LastName: "Van Halen", FirstName: "Eddie Lee", IPCode: "00012345678"}},
		},
		{
			name:  "malformed segments are skipped",
			input: "Prince; Smith, John [IP001]; Doe Jane [IP002]; Roe, Rick",
			want:  []Writer{{LastName: "Smith", FirstName: "John", IPCode: "IP001"}},
		},
		{
			name:  "blank segments are skipped",
			input: ";; Smith, John [IP001] ;|",
			want:  []Writer{{LastName: "Smith", FirstName: "John", IPCode: "IP001"}},
		},
		{
			name:  "empty input",
			input: "",
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseWriters(tt.input))
		})
	}
}

func TestCanonicalNameRoundTrip(t *testing.T) {
	in := "Smith, John [IP001]; Doe, Jane [IP002]"
	assert.Equal(t, in, JoinWriters(ParseWriters(in)))
}
