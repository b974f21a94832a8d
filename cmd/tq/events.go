package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"va-tasks/internal/auth"
	"va-tasks/pkg/eventgraph"
)

var (
	eventsType   string
	eventsLimit  int
	eventsFormat string

	tokenSubject string
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Journal operations (list, get, verify)",
}

var eventsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List journal events, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			events []eventgraph.Event
			err    error
		)
		if eventsType != "" {
			events, err = cli.events.ByType(cmd.Context(), eventsType, eventsLimit)
		} else {
			events, err = cli.events.Recent(cmd.Context(), eventsLimit)
		}
		if err != nil {
			return err
		}
		if eventsFormat == "short" {
			printShortEvents(events)
			return nil
		}
		printJSON(events)
		return nil
	},
}

var eventsGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show one journal event",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := cli.events.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		printJSON(e)
		return nil
	},
}

var eventsVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check every hash link in the journal",
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := cli.events.Count(cmd.Context())
		if err != nil {
			return err
		}
		if err := cli.events.VerifyChain(cmd.Context()); err != nil {
			if errors.Is(err, eventgraph.ErrChainBroken) {
				printJSON(map[string]any{"ok": false, "events": n, "error": err.Error()})
			}
			return err
		}
		printJSON(map[string]any{"ok": true, "events": n})
		return nil
	},
}

var tokenCmd = &cobra.Command{
	Use:         "token",
	Short:       "Mint a bearer token for the HTTP API",
	Annotations: map[string]string{"store": "none"},
	RunE: func(cmd *cobra.Command, args []string) error {
		secret := cli.cfg.Auth.JWTSecret
		if secret == "" {
			return errors.New("auth.jwt_secret (or VA_JWT_SECRET) is not set")
		}
		tok, err := auth.GenerateToken([]byte(secret), tokenSubject, cli.cfg.Auth.TokenTTL)
		if err != nil {
			return err
		}
		fmt.Println(tok)
		return nil
	},
}

func init() {
	eventsListCmd.Flags().StringVar(&eventsType, "type", "", "only events of this type")
	eventsListCmd.Flags().IntVar(&eventsLimit, "limit", 50, "maximum events")
	eventsListCmd.Flags().StringVar(&eventsFormat, "format", "json", "json or short")
	eventsCmd.AddCommand(eventsListCmd, eventsGetCmd, eventsVerifyCmd)

	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "tq", "token subject")
}

func printShortEvents(events []eventgraph.Event) {
	for _, e := range events {
		content := ""
		if b, err := json.Marshal(e.Content); err == nil {
			content = string(b)
		}
		fmt.Printf("%-8s  %-22s  %-8s  %s\n", e.Timestamp.Format("15:04:05"), truncStr(e.Type, 22), e.Source, truncStr(content, 80))
	}
}
