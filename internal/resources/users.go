package resources

import (
	"context"

	"wayfinder/internal/query"
	"wayfinder/internal/rpc"
)

var (
	nsCurrentUser     = query.MustNamespace("currentUser")
	nsUserProfile     = query.MustNamespace("userProfile")
	nsIsFollowing     = query.MustNamespace("isFollowing")
	nsFollowers       = query.MustNamespace("followers")
	nsUserReview      = query.MustNamespace("userReview")
	nsReferralCode    = query.MustNamespace("referralCode")
	nsReferralStats   = query.MustNamespace("referralStats")
	nsUploadSignature = query.MustNamespace("uploadSignature")
)

// NoParams is the params type of endpoints that take none.
type NoParams struct{}

type UserParams struct {
	ID string `path:"id" json:"-" validate:"required"`
}

type UserReviewParams struct {
	LocationID string `query:"locationId" json:"-" validate:"required"`
}

type FollowInput struct {
	UserID string `path:"id" json:"-" validate:"required"`
}

type RedeemReferralInput struct {
	Code string `json:"code" validate:"required,alphanum,min=4,max=32"`
}

var (
	CurrentUserQuery = Resource[NoParams, User]{
		Namespace:  nsCurrentUser,
		Endpoint:   rpc.Get[NoParams, User]("currentUser", "/api/users/me"),
		Retry:      1,
		UserScoped: true,
		Failure:    "Failed to fetch your profile",
	}
	UserProfileQuery = Resource[UserParams, User]{
		Namespace: nsUserProfile,
		Endpoint:  rpc.Get[UserParams, User]("userProfile", "/api/users/{id}"),
		Retry:     1,
		Failure:   "Failed to fetch user",
	}
	IsFollowingQuery = Resource[UserParams, FollowStatus]{
		Namespace:  nsIsFollowing,
		Endpoint:   rpc.Get[UserParams, FollowStatus]("isFollowing", "/api/users/{id}/follow"),
		Retry:      1,
		UserScoped: true,
		Failure:    "Failed to fetch follow status",
	}
	FollowersQuery = Resource[UserParams, []User]{
		Namespace: nsFollowers,
		Endpoint:  rpc.Get[UserParams, []User]("followers", "/api/users/{id}/followers"),
		Retry:     1,
		Failure:   "Failed to fetch followers",
	}
	UserReviewQuery = Resource[UserReviewParams, Review]{
		Namespace:  nsUserReview,
		Endpoint:   rpc.Get[UserReviewParams, Review]("userReview", "/api/users/me/reviews"),
		Retry:      1,
		UserScoped: true,
		Failure:    "Failed to fetch your review",
	}
	ReferralCodeQuery = Resource[NoParams, ReferralCode]{
		Namespace:  nsReferralCode,
		Endpoint:   rpc.Get[NoParams, ReferralCode]("referralCode", "/api/referrals/code"),
		Retry:      1,
		UserScoped: true,
		Failure:    "Failed to fetch referral code",
	}
	ReferralStatsQuery = Resource[NoParams, ReferralStats]{
		Namespace:  nsReferralStats,
		Endpoint:   rpc.Get[NoParams, ReferralStats]("referralStats", "/api/referrals/stats"),
		Retry:      1,
		UserScoped: true,
		Failure:    "Failed to fetch referral stats",
	}
	UploadSignatureQuery = Resource[NoParams, UploadSignature]{
		Namespace:  nsUploadSignature,
		Endpoint:   rpc.Get[NoParams, UploadSignature]("uploadSignature", "/api/upload/signature"),
		UserScoped: true,
		// Signatures expire server side; never serve one from the cache.
		StaleTime: -1,
		Failure:   "Failed to prepare upload",
	}

	FollowAction = Action[FollowInput, FollowStatus]{
		Endpoint:    rpc.Post[FollowInput, FollowStatus]("follow", "/api/users/{id}/follow"),
		Invalidates: invalidateFollow,
		Success:     "Following",
		Failure:     "Failed to follow user",
	}
	UnfollowAction = Action[FollowInput, FollowStatus]{
		Endpoint:    rpc.Delete[FollowInput, FollowStatus]("unfollow", "/api/users/{id}/follow"),
		Invalidates: invalidateFollow,
		Success:     "Unfollowed",
		Failure:     "Failed to unfollow user",
	}
	RedeemReferralAction = Action[RedeemReferralInput, ReferralStats]{
		Endpoint: rpc.Post[RedeemReferralInput, ReferralStats]("redeemReferral", "/api/referrals/redeem"),
		Invalidates: func(api *API, _ RedeemReferralInput, _ ReferralStats) []query.Key {
			return []query.Key{
				ReferralStatsQuery.Prefix(api),
				CurrentUserQuery.Prefix(api),
			}
		},
		Success: "Referral code redeemed",
		Failure: "Failed to redeem referral code",
	}
)

func invalidateFollow(api *API, in FollowInput, _ FollowStatus) []query.Key {
	return []query.Key{
		IsFollowingQuery.Prefix(api, in.UserID),
		FollowersQuery.Prefix(api, in.UserID),
	}
}

func (a *API) CurrentUser(ctx context.Context) query.Result[User] {
	return CurrentUserQuery.Use(ctx, a, NoParams{})
}

func (a *API) UserProfile(ctx context.Context, id string) query.Result[User] {
	return UserProfileQuery.Use(ctx, a, UserParams{ID: id})
}

func (a *API) IsFollowing(ctx context.Context, id string) query.Result[FollowStatus] {
	return IsFollowingQuery.Use(ctx, a, UserParams{ID: id})
}

func (a *API) Followers(ctx context.Context, id string) query.Result[[]User] {
	return FollowersQuery.Use(ctx, a, UserParams{ID: id})
}

// UserReview returns the signed-in user's own review of a location.
func (a *API) UserReview(ctx context.Context, locationID string) query.Result[Review] {
	return UserReviewQuery.Use(ctx, a, UserReviewParams{LocationID: locationID})
}

func (a *API) ReferralCode(ctx context.Context) query.Result[ReferralCode] {
	return ReferralCodeQuery.Use(ctx, a, NoParams{})
}

func (a *API) ReferralStats(ctx context.Context) query.Result[ReferralStats] {
	return ReferralStatsQuery.Use(ctx, a, NoParams{})
}

func (a *API) UploadSignature(ctx context.Context) query.Result[UploadSignature] {
	return UploadSignatureQuery.Use(ctx, a, NoParams{})
}

func (a *API) Follow(ctx context.Context, userID string) (FollowStatus, error) {
	return FollowAction.Run(ctx, a, FollowInput{UserID: userID})
}

func (a *API) Unfollow(ctx context.Context, userID string) (FollowStatus, error) {
	return UnfollowAction.Run(ctx, a, FollowInput{UserID: userID})
}

func (a *API) RedeemReferral(ctx context.Context, code string) (ReferralStats, error) {
	return RedeemReferralAction.Run(ctx, a, RedeemReferralInput{Code: code})
}
