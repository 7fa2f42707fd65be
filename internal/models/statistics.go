package models

// Statistics aggregates a collection of reviews. Failed reviews count toward
// TotalReviews and FailedReviews only.
type Statistics struct {
	TotalReviews     int                  `json:"totalReviews"`
	CompletedReviews int                  `json:"completedReviews"`
	FailedReviews    int                  `json:"failedReviews"`
	TotalIssues      int                  `json:"totalIssues"`
	Errors           int                  `json:"errors"`
	Warnings         int                  `json:"warnings"`
	Suggestions      int                  `json:"suggestions"`
	GoodPractices    int                  `json:"goodPractices"`
	Providers        []ProviderStatistics `json:"providers"`
}

// ProviderStatistics is the per-provider slice of Statistics.
type ProviderStatistics struct {
	Provider    string `json:"provider"`
	Reviews     int    `json:"reviews"`
	TotalIssues int    `json:"totalIssues"`
}

// ComputeStatistics aggregates reviews. Provider rows appear in first-seen order.
func ComputeStatistics(reviews []Review) Statistics {
	stats := Statistics{
		TotalReviews: len(reviews),
		Providers:    []ProviderStatistics{},
	}
	index := make(map[string]int)

	for _, r := range reviews {
		i, ok := index[r.AIProvider]
		if !ok {
			i = len(stats.Providers)
			index[r.AIProvider] = i
			stats.Providers = append(stats.Providers, ProviderStatistics{Provider: r.AIProvider})
		}
		stats.Providers[i].Reviews++

		if !r.Success {
			stats.FailedReviews++
			continue
		}
		stats.CompletedReviews++
		stats.Errors += len(r.Errors)
		stats.Warnings += len(r.Warnings)
		stats.Suggestions += len(r.Suggestions)
		stats.GoodPractices += len(r.GoodPractices)
		stats.TotalIssues += r.IssueCount()
		stats.Providers[i].TotalIssues += r.IssueCount()
	}
	return stats
}

// ServiceStatistics is the aggregate reported by the review service itself.
type ServiceStatistics struct {
	TotalReviews int64                       `json:"totalReviews"`
	Providers    []ServiceProviderStatistics `json:"providers"`
}

// ServiceProviderStatistics is one provider row of ServiceStatistics.
type ServiceProviderStatistics struct {
	Provider       string  `json:"provider"`
	Reviews        int64   `json:"reviews"`
	AvgTotalIssues float64 `json:"avgTotalIssues"`
}
