package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sumire/verdictrelay/internal/config"
	"github.com/sumire/verdictrelay/internal/domain"
	"github.com/sumire/verdictrelay/internal/manychat"
	"github.com/sumire/verdictrelay/internal/service"
)

func manychatClient() (*manychat.Client, config.Config, error) {
	cfg, err := config.LoadOperator()
	if err != nil {
		return nil, cfg, fmt.Errorf("load config: %w", err)
	}
	if cfg.ManyChatAPIKey == "" {
		return nil, cfg, errors.New("MANYCHAT_API_KEY is required")
	}
	return manychat.NewClient(manychat.Config{
		APIKey:  cfg.ManyChatAPIKey,
		BaseURL: cfg.ManyChatBaseURL,
		Timeout: cfg.HTTPClientTimeout,
	}, nil), cfg, nil
}

func creditsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credits",
		Short: "Read or adjust subscriber credits",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get [subscriber-id]",
		Short: "Print the current balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mc, cfg, err := manychatClient()
			if err != nil {
				return err
			}
			bal, err := service.NewLedgerService(mc, cfg.ManyChatCreditsFieldID, nil).Balance(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d credits\n", args[0], bal)
			return nil
		},
	})

	addCmd := &cobra.Command{
		Use:   "add [subscriber-id] [amount]",
		Short: "Add credits (negative amounts subtract)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			delta, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("amount %q is not an integer", args[1])
			}
			mc, cfg, err := manychatClient()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			bal, err := service.NewLedgerService(mc, cfg.ManyChatCreditsFieldID, nil).Increment(ctx, args[0], delta)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d credits\n", args[0], bal)

			if notify, _ := cmd.Flags().GetBool("notify"); notify {
				service.NewNotifier(mc, nil).Send(ctx, args[0], domain.PaymentReceivedMessage(bal))
			}
			return nil
		},
	}
	addCmd.Flags().Bool("notify", false, "Send the payment received message with the new balance")
	cmd.AddCommand(addCmd)

	return cmd
}

func notifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "notify [subscriber-id] [text...]",
		Short: "Send a text message to a subscriber",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			mc, _, err := manychatClient()
			if err != nil {
				return err
			}
			// the notifier swallows errors, so call the client directly
			if err := mc.SendText(cmd.Context(), args[0], strings.Join(args[1:], " ")); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "sent")
			return nil
		},
	}
}
