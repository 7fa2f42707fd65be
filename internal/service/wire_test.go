package service

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlexTime(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{`"2024-05-01T10:11:12Z"`, time.Date(2024, 5, 1, 10, 11, 12, 0, time.UTC)},
		{`"2024-05-01T10:11:12"`, time.Date(2024, 5, 1, 10, 11, 12, 0, time.UTC)},
		{`"2024-05-01 10:11:12"`, time.Date(2024, 5, 1, 10, 11, 12, 0, time.UTC)},
		{`[2024, 5, 1, 10, 11]`, time.Date(2024, 5, 1, 10, 11, 0, 0, time.UTC)},
		{`null`, time.Time{}},
		{`""`, time.Time{}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var ft flexTime
			require.NoError(t, json.Unmarshal([]byte(tt.in), &ft))
			assert.True(t, tt.want.Equal(time.Time(ft)), "got %v", time.Time(ft))
		})
	}
}

func TestFlexTime_Invalid(t *testing.T) {
	var ft flexTime
	assert.Error(t, json.Unmarshal([]byte(`"yesterday"`), &ft))
}

func TestFlexID(t *testing.T) {
	var id flexID
	require.NoError(t, json.Unmarshal([]byte(`123`), &id))
	assert.Equal(t, flexID("123"), id)

	require.NoError(t, json.Unmarshal([]byte(`"abc"`), &id))
	assert.Equal(t, flexID("abc"), id)

	require.NoError(t, json.Unmarshal([]byte(`null`), &id))
	assert.Equal(t, flexID(""), id)

	assert.Error(t, json.Unmarshal([]byte(`true`), &id))
}

func TestFailureMessage(t *testing.T) {
	assert.Equal(t, "boom", failureMessage([]byte(`{"errorMessage":"boom"}`)))
	assert.Equal(t, "bad keyword", failureMessage([]byte(`{"error":"Bad Request","message":"bad keyword"}`)))
	assert.Empty(t, failureMessage([]byte(`{"error":"Internal Server Error"}`)))
	assert.Empty(t, failureMessage([]byte(`<html>`)))
}
