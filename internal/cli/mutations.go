package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	apperrors "wayfinder/internal/errors"
	"wayfinder/internal/resources"
)

// failed keeps the server's explanation when there is one.
func failed(what string, err error) error {
	return fmt.Errorf("%s: %s", what, apperrors.UserMessage(err, err.Error()))
}

func (a *App) newCommentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "comment <location-id> <text>",
		Short: "Comment on a location",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.api().CreateComment(cmd.Context(), resources.CreateCommentInput{
				LocationID: args[0],
				Body:       args[1],
			})
			if err != nil {
				return failed("comment", err)
			}
			return a.print(c)
		},
	}
}

func (a *App) newReviewCmd() *cobra.Command {
	in := resources.SubmitReviewInput{}

	cmd := &cobra.Command{
		Use:   "review <location-id>",
		Short: "Review a location for a time of day",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in.LocationID = args[0]
			r, err := a.api().SubmitReview(cmd.Context(), in)
			if err != nil {
				return failed("review", err)
			}
			return a.print(r)
		},
	}

	f := cmd.Flags()
	f.StringVar(&in.TimeOfDay, "time-of-day", "", "morning, afternoon, evening or night")
	f.IntVar(&in.Rating, "rating", 0, "Overall rating from 1 to 5")
	f.IntVar(&in.Safety, "safety", 0, "Safety from 1 to 5")
	f.IntVar(&in.Crowd, "crowd", 0, "Crowd level from 1 to 5")
	f.StringVar(&in.Notes, "notes", "", "Free text notes")
	_ = cmd.MarkFlagRequired("time-of-day")
	return cmd
}

func (a *App) newVoteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "vote <post-id> <-1|0|1>",
		Short: "Vote on a post",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("vote value %q is not a number", args[1])
			}
			tally, err := a.api().Vote(cmd.Context(), resources.VoteInput{PostID: args[0], Value: value})
			if err != nil {
				return failed("vote", err)
			}
			return a.print(tally)
		},
	}
}

func (a *App) newFollowCmd() *cobra.Command {
	var undo bool

	cmd := &cobra.Command{
		Use:   "follow <user-id>",
		Short: "Follow or unfollow a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api := a.api()
			run := api.Follow
			if undo {
				run = api.Unfollow
			}
			status, err := run(cmd.Context(), args[0])
			if err != nil {
				return failed("follow", err)
			}
			return a.print(status)
		},
	}

	cmd.Flags().BoolVar(&undo, "undo", false, "Unfollow instead")
	return cmd
}

func (a *App) newRedeemCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "redeem <code>",
		Short: "Redeem a referral code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stats, err := a.api().RedeemReferral(cmd.Context(), args[0])
			if err != nil {
				return failed("redeem", err)
			}
			return a.print(stats)
		},
	}
}
