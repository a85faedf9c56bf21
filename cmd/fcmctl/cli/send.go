package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tinywideclouds/go-fcm-service/pkg/fcm"
)

func sendCommand(env *Env, connect connectFunc) *cobra.Command {
	var (
		title string
		body  string
		data  []string
	)

	build := func() (*fcm.Message, error) {
		payload, err := parseData(data)
		if err != nil {
			return nil, err
		}
		return fcm.NewMessage().SetTitle(title).SetBody(body).SetData(payload), nil
	}

	var tokens []string
	devicesCmd := &cobra.Command{
		Use:   "devices",
		Short: "Send a message to one or more registration tokens",
		Example: `  fcmctl send devices --title "Order Update" --body "Shipped" --token t1 --token t2
  fcmctl send devices --data order_id=12345 --token t1`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			msg, err := build()
			if err != nil {
				return err
			}
			sender, err := connect(cmd)
			if err != nil {
				return err
			}
			result, err := sender.SendToDevices(cmd.Context(), msg.SetTokens(tokens))
			var fe *fcm.Error
			if result == nil && errors.As(err, &fe) {
				result = fe.Result
			}
			if result != nil {
				if perr := printJSON(env.Out, result); perr != nil {
					return perr
				}
			}
			return err
		},
	}
	devicesCmd.Flags().StringSliceVarP(&tokens, "token", "t", nil, "registration token (repeatable)")
	_ = devicesCmd.MarkFlagRequired("token")

	topicCmd := &cobra.Command{
		Use:   "topic <topic>",
		Short: "Send a message to every subscriber of a topic",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			msg, err := build()
			if err != nil {
				return err
			}
			sender, err := connect(cmd)
			if err != nil {
				return err
			}
			result, err := sender.SendToTopic(cmd.Context(), msg.SetTopic(args[0]))
			if err != nil {
				return err
			}
			return printJSON(env.Out, result)
		},
	}

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send a notification",
	}
	cmd.PersistentFlags().StringVar(&title, "title", "", "notification title")
	cmd.PersistentFlags().StringVar(&body, "body", "", "notification body")
	cmd.PersistentFlags().StringArrayVar(&data, "data", nil, "data entry as key=value (repeatable)")
	cmd.AddCommand(devicesCmd, topicCmd)
	return cmd
}

// parseData turns key=value pairs into a data payload.
func parseData(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(pairs))
	for _, kv := range pairs {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid data entry %q, want key=value", kv)
		}
		out[key] = value
	}
	return out, nil
}
