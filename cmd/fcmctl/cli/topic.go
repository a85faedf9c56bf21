package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/tinywideclouds/go-fcm-service/pkg/dispatch"
	"github.com/tinywideclouds/go-fcm-service/pkg/fcm"
)

type membershipFunc func(ctx context.Context, topic string, tokens []string) (fcm.Response, error)

func topicCommand(env *Env, connect connectFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "topic",
		Short: "Manage topic membership for registration tokens",
	}

	membership := func(use, short string, pick func(s dispatch.Sender) membershipFunc) *cobra.Command {
		var tokens []string
		c := &cobra.Command{
			Use:   use + " <topic>",
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				sender, err := connect(cmd)
				if err != nil {
					return err
				}
				resp, err := pick(sender)(cmd.Context(), args[0], tokens)
				if err != nil {
					return err
				}
				return printJSON(env.Out, resp)
			},
		}
		c.Flags().StringSliceVarP(&tokens, "token", "t", nil, "registration token (repeatable)")
		_ = c.MarkFlagRequired("token")
		return c
	}

	cmd.AddCommand(
		membership("subscribe", "Subscribe tokens to a topic", func(s dispatch.Sender) membershipFunc { return s.SubscribeToTopic }),
		membership("unsubscribe", "Unsubscribe tokens from a topic", func(s dispatch.Sender) membershipFunc { return s.UnsubscribeFromTopic }),
	)
	return cmd
}
