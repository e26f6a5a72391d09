package resources

import (
	"context"

	"wayfinder/internal/query"
	"wayfinder/internal/rpc"
)

var (
	nsPost          = query.MustNamespace("post")
	nsPostComments  = query.MustNamespace("postComments")
	nsPostVotes     = query.MustNamespace("postVotes")
	nsCommunityFeed = query.MustNamespace("communityFeed")
)

type PostParams struct {
	ID string `path:"id" json:"-" validate:"required"`
}

type FeedParams struct {
	Limit  int    `query:"limit" json:"-" validate:"gt=0"`
	Cursor string `query:"cursor" json:"-"`
}

type CreatePostInput struct {
	LocationID string `path:"locationId" json:"-" validate:"required"`
	Title      string `json:"title" validate:"required,max=200"`
	Body       string `json:"body" validate:"required"`
	ImageURL   string `json:"imageUrl,omitempty" validate:"omitempty,url"`
}

type DeletePostInput struct {
	ID         string `path:"id" json:"-" validate:"required"`
	LocationID string `json:"-" validate:"required"`
}

type VoteInput struct {
	PostID string `path:"postId" json:"-" validate:"required"`
	// Value is 1 for an upvote, -1 for a downvote and 0 to clear.
	Value int `json:"value" validate:"oneof=-1 0 1"`
}

var (
	PostQuery = Resource[PostParams, Post]{
		Namespace: nsPost,
		Endpoint:  rpc.Get[PostParams, Post]("post", "/api/posts/{id}"),
		Retry:     1,
		Failure:   "Failed to fetch post",
	}
	PostCommentsQuery = Resource[PostParams, []Comment]{
		Namespace: nsPostComments,
		Endpoint:  rpc.Get[PostParams, []Comment]("postComments", "/api/posts/{id}/comments"),
		Retry:     1,
		Failure:   "Failed to fetch comments",
	}
	PostVotesQuery = Resource[PostParams, VoteTally]{
		Namespace: nsPostVotes,
		Endpoint:  rpc.Get[PostParams, VoteTally]("postVotes", "/api/posts/{id}/votes"),
		Retry:     1,
		Failure:   "Failed to fetch votes",
	}
	CommunityFeedQuery = Resource[FeedParams, FeedPage]{
		Namespace: nsCommunityFeed,
		Endpoint:  rpc.Get[FeedParams, FeedPage]("communityFeed", "/api/community/feed"),
		Failure:   "Failed to load community feed",
	}

	CreatePostAction = Action[CreatePostInput, Post]{
		Endpoint: rpc.Post[CreatePostInput, Post]("createPost", "/api/locations/{locationId}/posts"),
		Invalidates: func(api *API, in CreatePostInput, _ Post) []query.Key {
			return []query.Key{
				LocationPostsQuery.Prefix(api, in.LocationID),
				CommunityFeedQuery.Prefix(api),
			}
		},
		Success: "Post published",
		Failure: "Failed to publish post",
	}
	DeletePostAction = Action[DeletePostInput, Ack]{
		Endpoint: rpc.Delete[DeletePostInput, Ack]("deletePost", "/api/posts/{id}"),
		Invalidates: func(api *API, in DeletePostInput, _ Ack) []query.Key {
			return []query.Key{
				PostQuery.Prefix(api, in.ID),
				LocationPostsQuery.Prefix(api, in.LocationID),
				CommunityFeedQuery.Prefix(api),
			}
		},
		Success: "Post deleted",
		Failure: "Failed to delete post",
	}
	VoteAction = Action[VoteInput, VoteTally]{
		Endpoint: rpc.Post[VoteInput, VoteTally]("vote", "/api/posts/{postId}/votes"),
		Invalidates: func(api *API, in VoteInput, _ VoteTally) []query.Key {
			return []query.Key{
				PostVotesQuery.Prefix(api, in.PostID),
				PostQuery.Prefix(api, in.PostID),
			}
		},
		Success: "Vote recorded",
		Failure: "Failed to record vote",
	}
)

func (a *API) Post(ctx context.Context, id string) query.Result[Post] {
	return PostQuery.Use(ctx, a, PostParams{ID: id})
}

func (a *API) PostComments(ctx context.Context, id string) query.Result[[]Comment] {
	return PostCommentsQuery.Use(ctx, a, PostParams{ID: id})
}

func (a *API) PostVotes(ctx context.Context, id string) query.Result[VoteTally] {
	return PostVotesQuery.Use(ctx, a, PostParams{ID: id})
}

// CommunityFeed returns one page of the feed. It stays idle until limit is
// positive.
func (a *API) CommunityFeed(ctx context.Context, limit int, cursor string) query.Result[FeedPage] {
	return CommunityFeedQuery.Use(ctx, a, FeedParams{Limit: limit, Cursor: cursor})
}

func (a *API) CreatePost(ctx context.Context, in CreatePostInput) (Post, error) {
	return CreatePostAction.Run(ctx, a, in)
}

func (a *API) DeletePost(ctx context.Context, in DeletePostInput) (Ack, error) {
	return DeletePostAction.Run(ctx, a, in)
}

func (a *API) Vote(ctx context.Context, in VoteInput) (VoteTally, error) {
	return VoteAction.Run(ctx, a, in)
}
