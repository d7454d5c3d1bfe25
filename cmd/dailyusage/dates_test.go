package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	now := time.Date(2024, 3, 5, 23, 45, 0, 0, time.Local)

	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "", want: "2024-03-05"},
		{in: "2024-01-01", want: "2024-01-01"},
		{in: "0d", want: "2024-03-05"},
		{in: "1d", want: "2024-03-04"},
		{in: "7d", want: "2024-02-27"},
		{in: "2024-02-30", wantErr: true},
		{in: "01.01.2024", wantErr: true},
		{in: "-1d", wantErr: true},
		{in: "d", wantErr: true},
		{in: "7xd", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseDate(tt.in, now)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Format("2006-01-02"))
			assert.Equal(t, 0, got.Hour())
			assert.Equal(t, time.UTC, got.Location())
		})
	}
}
