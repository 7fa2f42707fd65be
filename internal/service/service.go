// Package service is the typed boundary to the remote review service.
//
// Every Review leaving this package has been normalized once (see
// models.Review.Normalize) and every failure is one of the kinds in
// internal/models/errors.go; raw transport errors never escape.
package service

import (
	"context"

	"github.com/joescharf/crv/internal/models"
)

// SubmitRequest is one code submission.
type SubmitRequest struct {
	Code     string `json:"code"`
	Provider string `json:"aiProvider"`
	FileName string `json:"fileName"`
}

// Service is the review service contract.
type Service interface {
	// SubmitReview returns the service's verdict. A structured failure comes
	// back as a Review with Success false; a failed call as a ServiceFailure.
	SubmitReview(ctx context.Context, req SubmitRequest) (models.Review, error)
	// ListRecentReviews returns reviews newest first.
	ListRecentReviews(ctx context.Context) ([]models.Review, error)
	ListAllReviews(ctx context.Context) ([]models.Review, error)
	ListReviewsByProvider(ctx context.Context, provider string) ([]models.Review, error)
	SearchReviews(ctx context.Context, keyword string) ([]models.Review, error)
	// GetReview returns models.ErrNotFound for unknown ids.
	GetReview(ctx context.Context, id string) (models.Review, error)
	DeleteReview(ctx context.Context, id string) error
	// ListProviders never fails; it falls back to the default provider.
	ListProviders(ctx context.Context) []string
	Statistics(ctx context.Context) (models.ServiceStatistics, error)
}
