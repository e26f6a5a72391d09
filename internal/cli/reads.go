package cli

import (
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"wayfinder/internal/resources"
)

type locationView struct {
	Location    resources.Location        `json:"location"`
	Metrics     resources.LocationMetrics `json:"metrics"`
	Precautions []resources.Precaution    `json:"precautions"`
	Review      *resources.Review         `json:"review,omitempty"`
	MyReview    *resources.Review         `json:"myReview,omitempty"`
}

func (a *App) newLocationCmd() *cobra.Command {
	var timeOfDay string

	cmd := &cobra.Command{
		Use:   "location <id>",
		Short: "Show a location with its metrics, precautions and reviews",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			api := a.api()
			var view locationView

			g, ctx := errgroup.WithContext(cmd.Context())
			g.Go(func() (err error) {
				view.Location, err = unwrap("location", api.Location(ctx, id))
				return err
			})
			g.Go(func() (err error) {
				view.Metrics, err = unwrap("metrics", api.LocationMetrics(ctx, id))
				return err
			})
			g.Go(func() (err error) {
				view.Precautions, err = unwrap("precautions", api.LocationPrecautions(ctx, id))
				return err
			})
			if timeOfDay != "" {
				g.Go(func() error {
					review, err := unwrap("review", api.GetLocationReview(ctx, id, timeOfDay))
					if err == nil {
						view.Review = &review
					}
					return err
				})
			}
			// The signed in user's own review is optional.
			if api.Session.Current().Ready() {
				g.Go(func() error {
					if mine, err := unwrap("my review", api.UserReview(ctx, id)); err == nil {
						view.MyReview = &mine
					}
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}
			return a.print(view)
		},
	}

	cmd.Flags().StringVar(&timeOfDay, "time-of-day", "", "Include the aggregated review for morning, afternoon, evening or night")
	return cmd
}

func (a *App) newSearchCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search <text>",
		Short: "Search locations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			found, err := unwrap("search", a.api().SearchLocations(cmd.Context(), args[0], limit))
			if err != nil {
				return err
			}
			return a.print(found)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of results")
	return cmd
}

func (a *App) newFeedCmd() *cobra.Command {
	var (
		limit  int
		cursor string
		pages  int
	)

	cmd := &cobra.Command{
		Use:   "feed",
		Short: "Page through the community feed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			api := a.api()
			g, ctx := errgroup.WithContext(cmd.Context())

			for i := 0; i < pages; i++ {
				page, err := unwrap("feed", api.CommunityFeed(ctx, limit, cursor))
				if err != nil {
					return err
				}
				// The next page loads while this one is printed.
				if next := page.NextCursor; next != "" && i+1 < pages {
					g.Go(func() error {
						_ = resources.CommunityFeedQuery.Prefetch(ctx, api, resources.FeedParams{Limit: limit, Cursor: next})
						return nil
					})
				}
				if err := a.print(page); err != nil {
					return err
				}
				if page.NextCursor == "" {
					break
				}
				cursor = page.NextCursor
			}
			return g.Wait()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Page size")
	cmd.Flags().StringVar(&cursor, "cursor", "", "Cursor returned by the previous page")
	cmd.Flags().IntVar(&pages, "pages", 1, "Number of pages to print")
	return cmd
}

type postView struct {
	Post     resources.Post      `json:"post"`
	Comments []resources.Comment `json:"comments"`
	Votes    resources.VoteTally `json:"votes"`
}

func (a *App) newPostCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "post <id>",
		Short: "Show a post with its comments and votes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			api := a.api()
			var view postView

			g, ctx := errgroup.WithContext(cmd.Context())
			g.Go(func() (err error) {
				view.Post, err = unwrap("post", api.Post(ctx, id))
				return err
			})
			g.Go(func() (err error) {
				view.Comments, err = unwrap("comments", api.PostComments(ctx, id))
				return err
			})
			g.Go(func() (err error) {
				view.Votes, err = unwrap("votes", api.PostVotes(ctx, id))
				return err
			})
			if err := g.Wait(); err != nil {
				return err
			}
			return a.print(view)
		},
	}
}

type meView struct {
	User     resources.User          `json:"user"`
	Referral resources.ReferralCode  `json:"referral"`
	Stats    resources.ReferralStats `json:"stats"`
}

func (a *App) newMeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "me",
		Short: "Show the signed in user and their referral standing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			api := a.api()
			var view meView

			g, ctx := errgroup.WithContext(cmd.Context())
			g.Go(func() (err error) {
				view.User, err = unwrap("user", api.CurrentUser(ctx))
				return err
			})
			g.Go(func() (err error) {
				view.Referral, err = unwrap("referral code", api.ReferralCode(ctx))
				return err
			})
			g.Go(func() (err error) {
				view.Stats, err = unwrap("referral stats", api.ReferralStats(ctx))
				return err
			})
			if err := g.Wait(); err != nil {
				return err
			}
			return a.print(view)
		},
	}
}
