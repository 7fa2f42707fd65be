package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joescharf/crv/internal/models"
)

// wireReview is a Review as the service encodes it. Optional fields are
// pointers so absence can be told apart from zero.
type wireReview struct {
	ID            flexID   `json:"id"`
	FileName      string   `json:"fileName"`
	Code          string   `json:"code"`
	AIProvider    string   `json:"aiProvider"`
	ReviewTime    flexTime `json:"reviewTime"`
	Summary       string   `json:"summary"`
	Errors        []string `json:"errors"`
	Warnings      []string `json:"warnings"`
	Suggestions   []string `json:"suggestions"`
	GoodPractices []string `json:"goodPractices"`
	TotalIssues   *int     `json:"totalIssues"`
	Success       *bool    `json:"success"`
	ErrorMessage  string   `json:"errorMessage"`
}

func (w wireReview) toModel() models.Review {
	r := models.Review{
		ID:            string(w.ID),
		FileName:      w.FileName,
		Code:          w.Code,
		AIProvider:    w.AIProvider,
		ReviewTime:    time.Time(w.ReviewTime),
		Summary:       w.Summary,
		Errors:        w.Errors,
		Warnings:      w.Warnings,
		Suggestions:   w.Suggestions,
		GoodPractices: w.GoodPractices,
		TotalIssues:   -1,
		ErrorMessage:  w.ErrorMessage,
	}
	if w.TotalIssues != nil {
		r.TotalIssues = *w.TotalIssues
	}
	// Stored reviews are listed without a success flag; only a submission
	// that failed carries one set to false.
	if w.Success != nil {
		r.Success = *w.Success
	} else {
		r.Success = w.ErrorMessage == ""
	}
	return r.Normalize()
}

func decodeReview(data []byte) (models.Review, error) {
	var w wireReview
	if err := json.Unmarshal(data, &w); err != nil {
		return models.Review{}, fmt.Errorf("decode review: %w", err)
	}
	return w.toModel(), nil
}

func decodeReviews(data []byte) ([]models.Review, error) {
	var ws []wireReview
	if err := json.Unmarshal(data, &ws); err != nil {
		return nil, fmt.Errorf("decode reviews: %w", err)
	}
	out := make([]models.Review, 0, len(ws))
	for _, w := range ws {
		out = append(out, w.toModel())
	}
	return out, nil
}

// flexID accepts numeric and string identifiers.
type flexID string

func (f *flexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("review id: %w", err)
	}
	*f = flexID(n.String())
	return nil
}

var localTimeLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// flexTime accepts RFC 3339, zone-less ISO date-times (read as UTC) and the
// [year, month, day, hour, minute, second, nanos] array form.
type flexTime time.Time

func (f *flexTime) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = flexTime(time.Time{})
		return nil
	}

	if len(data) > 0 && data[0] == '[' {
		var parts []int
		if err := json.Unmarshal(data, &parts); err != nil {
			return fmt.Errorf("review time: %w", err)
		}
		for len(parts) < 7 {
			parts = append(parts, 0)
		}
		if parts[1] == 0 {
			parts[1] = 1
		}
		if parts[2] == 0 {
			parts[2] = 1
		}
		*f = flexTime(time.Date(parts[0], time.Month(parts[1]), parts[2], parts[3], parts[4], parts[5], parts[6], time.UTC))
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("review time: %w", err)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		*f = flexTime(time.Time{})
		return nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		*f = flexTime(t)
		return nil
	}
	for _, layout := range localTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			*f = flexTime(t)
			return nil
		}
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		*f = flexTime(time.UnixMilli(ms).UTC())
		return nil
	}
	return fmt.Errorf("review time: unrecognized format %q", s)
}

// wireStats is the /reviews/stats payload. Provider rows are
// [provider, count, averageTotalIssues].
type wireStats struct {
	TotalReviews       int64   `json:"totalReviews"`
	ProviderStatistics [][]any `json:"providerStatistics"`
}

func (w wireStats) toModel() models.ServiceStatistics {
	out := models.ServiceStatistics{
		TotalReviews: w.TotalReviews,
		Providers:    []models.ServiceProviderStatistics{},
	}
	for _, row := range w.ProviderStatistics {
		var ps models.ServiceProviderStatistics
		if len(row) > 0 {
			ps.Provider, _ = row[0].(string)
		}
		if len(row) > 1 {
			if n, ok := row[1].(float64); ok {
				ps.Reviews = int64(n)
			}
		}
		if len(row) > 2 {
			ps.AvgTotalIssues, _ = row[2].(float64)
		}
		out.Providers = append(out.Providers, ps)
	}
	return out
}

// wireFailure is the error body the service sends with non-2xx responses.
type wireFailure struct {
	ErrorMessage string `json:"errorMessage"`
	Message      string `json:"message"`
}

func failureMessage(body []byte) string {
	var wf wireFailure
	if err := json.Unmarshal(body, &wf); err != nil {
		return ""
	}
	switch {
	case wf.ErrorMessage != "":
		return wf.ErrorMessage
	case wf.Message != "":
		return wf.Message
	default:
		return ""
	}
}
