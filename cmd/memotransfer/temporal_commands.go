package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/brojonat/memotransfer/service/temporal"
	"github.com/urfave/cli/v2"
)

func getTemporalClient(c *cli.Context) (*temporal.Client, error) {
	tc, err := temporal.NewClient(
		c.String("temporal-host"),
		c.String("temporal-namespace"),
		c.String("temporal-task-queue"),
		cliLogger(c),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Temporal: %w", err)
	}
	return tc, nil
}

func startWorkflowCommand() *cli.Command {
	return &cli.Command{
		Name:  "start",
		Usage: "Start a SubmitTransferWorkflow directly on Temporal",
		Description: `Starts a durable submission without going through the HTTP server.
A worker with a wallet keypair must be polling the task queue.

Example:
  memotransfer temporal start --note gm`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "sender",
				Usage: "Expected sender address (must be the worker wallet)",
			},
			&cli.StringFlag{
				Name:    "note",
				Aliases: []string{"n"},
				Usage:   "Text placed before \"from <address>\" in the memo message",
			},
		},
		Action: func(c *cli.Context) error {
			tc, err := getTemporalClient(c)
			if err != nil {
				return err
			}
			defer tc.Close()

			workflowID, err := tc.StartSubmitTransfer(context.Background(), temporal.SubmitTransferInput{
				Sender: c.String("sender"),
				Note:   c.String("note"),
			})
			if err != nil {
				return err
			}

			if c.Bool("json") {
				return writeJSONOut(c.App.Writer, map[string]string{
					"workflow_id": workflowID,
					"status":      "submitted",
				})
			}
			fmt.Fprintf(c.App.Writer, "✓ Workflow started: %s\n", workflowID)
			return nil
		},
	}
}

func workflowStatusCommand() *cli.Command {
	return &cli.Command{
		Name:      "status",
		Usage:     "Show the state of a SubmitTransferWorkflow",
		ArgsUsage: "<workflow-id>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("requires exactly one argument: workflow ID")
			}

			tc, err := getTemporalClient(c)
			if err != nil {
				return err
			}
			defer tc.Close()

			status, err := tc.GetSubmitTransfer(context.Background(), c.Args().First())
			if err != nil {
				return err
			}

			if c.Bool("json") {
				return writeJSONOut(c.App.Writer, status)
			}
			printSubmissionStatus(c.App.Writer, status)
			return nil
		},
	}
}

func printSubmissionStatus(w io.Writer, s *temporal.SubmissionStatus) {
	fmt.Fprintf(w, "Workflow ID:    %s\n", s.WorkflowID)
	fmt.Fprintf(w, "State:          %s\n", s.State)
	if s.Result == nil {
		return
	}

	r := s.Result
	fmt.Fprintf(w, "Outcome:        %s\n", r.Outcome)
	if r.Sender != "" {
		fmt.Fprintf(w, "Sender:         %s\n", r.Sender)
	}
	if r.Signature != nil {
		fmt.Fprintf(w, "Signature:      %s\n", *r.Signature)
	}
	if r.ErrorDetail != nil {
		fmt.Fprintf(w, "Detail:         %s\n", *r.ErrorDetail)
	}
	if r.Error != nil {
		fmt.Fprintf(w, "Error:          %s\n", *r.Error)
	}
	if !r.StartedAt.IsZero() && !r.FinishedAt.IsZero() {
		fmt.Fprintf(w, "Duration:       %s\n", r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
	}
}
