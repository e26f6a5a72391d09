package resources

import (
	"context"

	"wayfinder/internal/query"
	"wayfinder/internal/rpc"
)

var (
	nsLocation            = query.MustNamespace("location")
	nsLocationComments    = query.MustNamespace("locationComments")
	nsLocationMetrics     = query.MustNamespace("locationMetrics")
	nsLocationPrecautions = query.MustNamespace("locationPrecautions")
	nsLocationReview      = query.MustNamespace("locationReview")
	nsLocationPosts       = query.MustNamespace("locationPosts")
	nsLocationSearch      = query.MustNamespace("locationSearch")
)

type LocationParams struct {
	ID string `path:"id" json:"-" validate:"required"`
}

type LocationReviewParams struct {
	ID        string `path:"id" json:"-" validate:"required"`
	TimeOfDay string `query:"timeOfDay" json:"-" validate:"required"`
}

type LocationPostsParams struct {
	ID    string `path:"id" json:"-" validate:"required"`
	Limit int    `query:"limit" json:"-" validate:"gte=0"`
}

type SearchParams struct {
	Q     string `query:"q" json:"-" validate:"required"`
	Limit int    `query:"limit" json:"-" validate:"gte=0"`
}

type CreateCommentInput struct {
	LocationID string `path:"locationId" json:"-" validate:"required"`
	Body       string `json:"body" validate:"required,max=2000"`
}

type EditCommentInput struct {
	ID         string `path:"id" json:"-" validate:"required"`
	LocationID string `json:"-" validate:"required"`
	Body       string `json:"body" validate:"required,max=2000"`
}

type DeleteCommentInput struct {
	ID         string `path:"id" json:"-" validate:"required"`
	LocationID string `json:"-" validate:"required"`
}

type SubmitReviewInput struct {
	LocationID string `path:"locationId" json:"-" validate:"required"`
	TimeOfDay  string `json:"timeOfDay" validate:"required,oneof=morning afternoon evening night"`
	Rating     int    `json:"rating" validate:"min=1,max=5"`
	Safety     int    `json:"safety" validate:"min=1,max=5"`
	Crowd      int    `json:"crowd" validate:"min=1,max=5"`
	Notes      string `json:"notes,omitempty" validate:"max=1000"`
}

var (
	LocationQuery = Resource[LocationParams, Location]{
		Namespace: nsLocation,
		Endpoint:  rpc.Get[LocationParams, Location]("location", "/api/locations/{id}"),
		Retry:     1,
		Failure:   "Failed to fetch location",
	}
	LocationCommentsQuery = Resource[LocationParams, []Comment]{
		Namespace: nsLocationComments,
		Endpoint:  rpc.Get[LocationParams, []Comment]("locationComments", "/api/locations/{id}/comments"),
		Retry:     1,
		Failure:   "Failed to fetch comments",
	}
	LocationMetricsQuery = Resource[LocationParams, LocationMetrics]{
		Namespace: nsLocationMetrics,
		Endpoint:  rpc.Get[LocationParams, LocationMetrics]("locationMetrics", "/api/locations/{id}/metrics"),
		Retry:     2,
		Failure:   "Failed to fetch location metrics",
	}
	LocationPrecautionsQuery = Resource[LocationParams, []Precaution]{
		Namespace: nsLocationPrecautions,
		Endpoint:  rpc.Get[LocationParams, []Precaution]("locationPrecautions", "/api/locations/{id}/precautions"),
		Retry:     2,
		Failure:   "Failed to fetch precautions",
	}
	LocationReviewQuery = Resource[LocationReviewParams, Review]{
		Namespace: nsLocationReview,
		Endpoint:  rpc.Get[LocationReviewParams, Review]("locationReview", "/api/locations/{id}/review"),
		Retry:     1,
		Failure:   "Failed to fetch review",
	}
	LocationPostsQuery = Resource[LocationPostsParams, []Post]{
		Namespace: nsLocationPosts,
		Endpoint:  rpc.Get[LocationPostsParams, []Post]("locationPosts", "/api/locations/{id}/posts"),
		Failure:   "Failed to fetch posts",
	}
	SearchLocationsQuery = Resource[SearchParams, []Location]{
		Namespace: nsLocationSearch,
		Endpoint:  rpc.Get[SearchParams, []Location]("locationSearch", "/api/locations"),
		Failure:   "Failed to search locations",
	}

	CreateCommentAction = Action[CreateCommentInput, Comment]{
		Endpoint: rpc.Post[CreateCommentInput, Comment]("createComment", "/api/locations/{locationId}/comments"),
		Invalidates: func(api *API, in CreateCommentInput, _ Comment) []query.Key {
			return []query.Key{LocationCommentsQuery.Prefix(api, in.LocationID)}
		},
		Success: "Comment posted",
		Failure: "Failed to post comment",
	}
	EditCommentAction = Action[EditCommentInput, Comment]{
		Endpoint: rpc.Put[EditCommentInput, Comment]("editComment", "/api/comments/{id}"),
		Invalidates: func(api *API, in EditCommentInput, _ Comment) []query.Key {
			return []query.Key{LocationCommentsQuery.Prefix(api, in.LocationID)}
		},
		Success: "Comment updated",
		Failure: "Failed to update comment",
	}
	DeleteCommentAction = Action[DeleteCommentInput, Ack]{
		Endpoint: rpc.Delete[DeleteCommentInput, Ack]("deleteComment", "/api/comments/{id}"),
		Invalidates: func(api *API, in DeleteCommentInput, _ Ack) []query.Key {
			return []query.Key{LocationCommentsQuery.Prefix(api, in.LocationID)}
		},
		Success: "Comment deleted",
		Failure: "Failed to delete comment",
	}
	SubmitReviewAction = Action[SubmitReviewInput, Review]{
		Endpoint: rpc.Post[SubmitReviewInput, Review]("submitReview", "/api/locations/{locationId}/reviews"),
		Invalidates: func(api *API, in SubmitReviewInput, _ Review) []query.Key {
			return []query.Key{
				LocationReviewQuery.Prefix(api, in.LocationID),
				UserReviewQuery.Prefix(api, in.LocationID),
				LocationMetricsQuery.Prefix(api, in.LocationID),
			}
		},
		Success: "Review submitted",
		Failure: "Failed to submit review",
	}
)

func (a *API) Location(ctx context.Context, id string) query.Result[Location] {
	return LocationQuery.Use(ctx, a, LocationParams{ID: id})
}

func (a *API) LocationComments(ctx context.Context, id string) query.Result[[]Comment] {
	return LocationCommentsQuery.Use(ctx, a, LocationParams{ID: id})
}

func (a *API) LocationMetrics(ctx context.Context, id string) query.Result[LocationMetrics] {
	return LocationMetricsQuery.Use(ctx, a, LocationParams{ID: id})
}

func (a *API) LocationPrecautions(ctx context.Context, id string) query.Result[[]Precaution] {
	return LocationPrecautionsQuery.Use(ctx, a, LocationParams{ID: id})
}

// GetLocationReview returns the aggregated review of a location for one time
// of day.
func (a *API) GetLocationReview(ctx context.Context, id, timeOfDay string) query.Result[Review] {
	return LocationReviewQuery.Use(ctx, a, LocationReviewParams{ID: id, TimeOfDay: timeOfDay})
}

func (a *API) LocationPosts(ctx context.Context, id string, limit int) query.Result[[]Post] {
	return LocationPostsQuery.Use(ctx, a, LocationPostsParams{ID: id, Limit: limit})
}

func (a *API) SearchLocations(ctx context.Context, q string, limit int) query.Result[[]Location] {
	return SearchLocationsQuery.Use(ctx, a, SearchParams{Q: q, Limit: limit})
}

func (a *API) CreateComment(ctx context.Context, in CreateCommentInput) (Comment, error) {
	return CreateCommentAction.Run(ctx, a, in)
}

func (a *API) EditComment(ctx context.Context, in EditCommentInput) (Comment, error) {
	return EditCommentAction.Run(ctx, a, in)
}

func (a *API) DeleteComment(ctx context.Context, in DeleteCommentInput) (Ack, error) {
	return DeleteCommentAction.Run(ctx, a, in)
}

func (a *API) SubmitReview(ctx context.Context, in SubmitReviewInput) (Review, error) {
	return SubmitReviewAction.Run(ctx, a, in)
}
