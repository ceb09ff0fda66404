package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/brojonat/memotransfer/client"
	"github.com/urfave/cli/v2"
)

func clientCommands() *cli.Command {
	return &cli.Command{
		Name:  "client",
		Usage: "HTTP client commands for interacting with the memotransfer service",
		Subcommands: []*cli.Command{
			clientSubmitCommand(),
			clientTransferCommand(),
			clientAuthenticateCommand(),
			clientRecipientCommand(),
			clientLogCommand(),
		},
	}
}

func newAPIClient(c *cli.Context) (*client.Client, error) {
	serverURL := c.String("server-url")
	if serverURL == "" {
		return nil, fmt.Errorf("server-url is required (set SERVER_URL env var or use --server-url)")
	}
	return client.NewClient(serverURL, nil, cliLogger(c)), nil
}

func writeJSONOut(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	fmt.Fprintln(w, string(data))
	return nil
}

func clientSubmitCommand() *cli.Command {
	return &cli.Command{
		Name:  "submit",
		Usage: "Ask the server to send a transfer from its wallet",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "sender",
				Usage: "Expected sender address (must be the server wallet)",
			},
			&cli.StringFlag{
				Name:    "note",
				Aliases: []string{"n"},
				Usage:   "Text placed before \"from <address>\" in the memo message",
			},
			&cli.BoolFlag{
				Name:  "wait",
				Usage: "For durable submissions, wait until the workflow finishes",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "How long to wait with --wait",
				Value: 5 * time.Minute,
			},
		},
		Action: func(c *cli.Context) error {
			cl, err := newAPIClient(c)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(context.Background(), c.Duration("timeout"))
			defer cancel()

			transfer, err := cl.Submit(ctx, c.String("sender"), c.String("note"))
			if transfer == nil {
				return err
			}

			if transfer.WorkflowID != "" && transfer.Outcome == "" {
				if !c.Bool("wait") {
					if c.Bool("json") {
						return writeJSONOut(c.App.Writer, transfer)
					}
					fmt.Fprintf(c.App.Writer, "Submission started: %s\n", transfer.WorkflowID)
					return nil
				}

				if !c.Bool("json") {
					fmt.Fprintf(os.Stderr, "Waiting for workflow %s...\n", transfer.WorkflowID)
				}
				status, err := cl.AwaitTransfer(ctx, transfer.WorkflowID, 2*time.Second)
				if err != nil {
					return err
				}
				if c.Bool("json") {
					return writeJSONOut(c.App.Writer, status)
				}
				printTransferStatus(c.App.Writer, status)
				return nil
			}

			if err == nil && !transfer.Confirmed {
				err = fmt.Errorf("transfer %s was not confirmed", transfer.Signature)
			}
			if c.Bool("json") {
				if outErr := writeJSONOut(c.App.Writer, transfer); outErr != nil {
					return outErr
				}
				return err
			}
			printTransfer(c.App.Writer, transfer)
			return err
		},
	}
}

func clientTransferCommand() *cli.Command {
	return &cli.Command{
		Name:      "transfer",
		Usage:     "Show the status of a durable submission",
		ArgsUsage: "WORKFLOW_ID",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("workflow id is required")
			}
			cl, err := newAPIClient(c)
			if err != nil {
				return err
			}

			status, err := cl.GetTransfer(context.Background(), c.Args().Get(0))
			if err != nil {
				return err
			}
			if c.Bool("json") {
				return writeJSONOut(c.App.Writer, status)
			}
			printTransferStatus(c.App.Writer, status)
			return nil
		},
	}
}

func printTransfer(w io.Writer, t *client.Transfer) {
	fmt.Fprintf(w, "Sender:     %s\n", t.Sender)
	fmt.Fprintf(w, "Recipient:  %s\n", t.Recipient)
	fmt.Fprintf(w, "Amount:     %.4f SOL\n", float64(t.Amount)/lamportsPerSOL)
	if t.Signature != "" {
		fmt.Fprintf(w, "Signature:  %s\n", t.Signature)
	}
	fmt.Fprintf(w, "Outcome:    %s\n", t.Outcome)
	if t.ErrorDetail != nil {
		fmt.Fprintf(w, "Detail:     %s\n", *t.ErrorDetail)
	}
	if t.Error != "" {
		fmt.Fprintf(w, "Error:      %s\n", t.Error)
	}
}

func printTransferStatus(w io.Writer, s *client.TransferStatus) {
	fmt.Fprintf(w, "Workflow:   %s\n", s.WorkflowID)
	fmt.Fprintf(w, "State:      %s\n", s.State)
	if s.Result == nil {
		return
	}
	r := s.Result
	fmt.Fprintf(w, "Status:     %s\n", r.Status)
	fmt.Fprintf(w, "Outcome:    %s\n", r.Outcome)
	if r.Signature != nil {
		fmt.Fprintf(w, "Signature:  %s\n", *r.Signature)
	}
	if r.ErrorDetail != nil {
		fmt.Fprintf(w, "Detail:     %s\n", *r.ErrorDetail)
	}
	if r.Error != nil {
		fmt.Fprintf(w, "Error:      %s\n", *r.Error)
	}
}

func clientAuthenticateCommand() *cli.Command {
	return &cli.Command{
		Name:      "authenticate",
		Aliases:   []string{"auth"},
		Usage:     "Check a signature through the server",
		ArgsUsage: "SIGNATURE",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:    "must-jq",
				Usage:   "jq filter over the memo JSON that must evaluate to true (can be specified multiple times, all must match)",
				Aliases: []string{"jq"},
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("signature is required")
			}

			codes, err := compileJQ(c.StringSlice("must-jq"))
			if err != nil {
				return err
			}

			cl, err := newAPIClient(c)
			if err != nil {
				return err
			}

			auth, err := cl.Authenticate(context.Background(), c.Args().Get(0))
			if err != nil {
				return err
			}

			if auth.Authenticated && len(codes) > 0 {
				memo := ""
				if auth.RawMemo != nil {
					memo = *auth.RawMemo
				}
				ok, err := matchJQ(codes, memo)
				if err != nil || !ok {
					auth.Authenticated = false
					auth.Message = "memo does not match --must-jq filters"
					if err != nil {
						auth.Message = err.Error()
					}
				}
			}

			if err := printAuthentication(c.App.Writer, c.Bool("json"), auth.Authenticated, auth); err != nil {
				return err
			}
			if !auth.Authenticated {
				return cli.Exit("", 1)
			}
			return nil
		},
	}
}

func clientRecipientCommand() *cli.Command {
	return &cli.Command{
		Name:  "recipient",
		Usage: "Show the recipient account through the server",
		Action: func(c *cli.Context) error {
			cl, err := newAPIClient(c)
			if err != nil {
				return err
			}

			recipient, err := cl.Recipient(context.Background())
			if err != nil {
				return err
			}
			return writeJSONOut(c.App.Writer, recipient)
		},
	}
}

func clientLogCommand() *cli.Command {
	return &cli.Command{
		Name:      "log",
		Usage:     "Send a transaction log entry (JSON object) to the server",
		ArgsUsage: "JSON (or - for stdin)",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("log entry is required")
			}

			raw := []byte(c.Args().Get(0))
			if string(raw) == "-" {
				var err error
				raw, err = io.ReadAll(os.Stdin)
				if err != nil {
					return fmt.Errorf("failed to read stdin: %w", err)
				}
			}
			if !json.Valid(raw) {
				return fmt.Errorf("log entry must be valid JSON")
			}

			cl, err := newAPIClient(c)
			if err != nil {
				return err
			}
			if err := cl.LogTransaction(context.Background(), raw); err != nil {
				return err
			}

			fmt.Fprintln(c.App.Writer, "✓ Log entry received")
			return nil
		},
	}
}
