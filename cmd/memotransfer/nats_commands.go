package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	natspkg "github.com/brojonat/memotransfer/service/nats"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/urfave/cli/v2"
)

// subscribeCommand streams submission events or client log entries.
func subscribeCommand() *cli.Command {
	return &cli.Command{
		Name:      "subscribe",
		Usage:     "Subscribe to submission events",
		ArgsUsage: "[sender_address]",
		Description: `Stream events published to the SUBMISSIONS JetStream stream.

Submission events are published to submissions.{sender}; client log entries
to txlogs.{sender}. Without a sender every event is shown.

Example:
  memotransfer nats subscribe 9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM --json`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "logs",
				Usage: "Stream client log entries instead of submission events",
			},
			&cli.BoolFlag{
				Name:    "durable",
				Aliases: []string{"d"},
				Usage:   "Create a durable consumer (survives restarts)",
			},
			&cli.StringFlag{
				Name:  "consumer-name",
				Usage: "Consumer name (required for durable)",
				Value: "memotransfer-cli",
			},
			&cli.BoolFlag{
				Name:  "all",
				Usage: "Replay retained events instead of only new ones",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() > 1 {
				return fmt.Errorf("at most one sender address may be given")
			}
			subject := eventSubject(c.Args().Get(0), c.Bool("logs"))

			nc, err := nats.Connect(c.String("nats-url"))
			if err != nil {
				return fmt.Errorf("failed to connect to NATS: %w", err)
			}
			defer nc.Close()

			js, err := jetstream.New(nc)
			if err != nil {
				return fmt.Errorf("failed to create JetStream context: %w", err)
			}

			jsonOutput := c.Bool("json")
			if !jsonOutput {
				fmt.Fprintf(c.App.Writer, "📡 Subscribing to: %s\n", subject)
				fmt.Fprintf(c.App.Writer, "   NATS: %s\n", c.String("nats-url"))
				fmt.Fprintf(c.App.Writer, "\nWaiting for events... (Ctrl-C to exit)\n\n")
			}

			consumerConfig := jetstream.ConsumerConfig{
				FilterSubject: subject,
				AckPolicy:     jetstream.AckExplicitPolicy,
				DeliverPolicy: jetstream.DeliverNewPolicy,
			}
			if c.Bool("all") {
				consumerConfig.DeliverPolicy = jetstream.DeliverAllPolicy
			}
			if c.Bool("durable") {
				consumerConfig.Durable = c.String("consumer-name")
				consumerConfig.Name = c.String("consumer-name")
			}

			cons, err := js.CreateOrUpdateConsumer(context.Background(), natspkg.StreamName, consumerConfig)
			if err != nil {
				return fmt.Errorf("failed to create consumer: %w", err)
			}

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

			msgChan := make(chan jetstream.Msg, 10)
			cc, err := cons.Consume(func(msg jetstream.Msg) {
				msgChan <- msg
			})
			if err != nil {
				return fmt.Errorf("failed to start consuming: %w", err)
			}
			defer cc.Stop()

			count := 0
			for {
				select {
				case msg := <-msgChan:
					count++
					if err := printEvent(c.App.Writer, msg.Subject(), msg.Data(), count, jsonOutput); err != nil {
						fmt.Fprintf(os.Stderr, "Error parsing event: %v\n", err)
					}
					msg.Ack()

				case <-sigChan:
					if !jsonOutput {
						fmt.Fprintf(c.App.Writer, "\n\n✅ Received %d events\n", count)
					}
					return nil
				}
			}
		},
	}
}

// eventSubject returns the filter subject for sender, or the wildcard
// subject when sender is empty.
func eventSubject(sender string, logs bool) string {
	prefix := natspkg.SubmissionSubjectPrefix
	if logs {
		prefix = natspkg.LogSubjectPrefix
	}
	if sender == "" {
		return prefix + ".*"
	}
	if logs {
		return natspkg.LogSubject(sender)
	}
	return natspkg.SubmissionSubject(sender)
}

// printEvent decodes one stream message by its subject and prints it.
func printEvent(w io.Writer, subject string, data []byte, n int, jsonOutput bool) error {
	if jsonOutput {
		if !json.Valid(data) {
			return fmt.Errorf("message on %s is not JSON", subject)
		}
		fmt.Fprintln(w, string(data))
		return nil
	}

	fmt.Fprintf(w, "─────────────────────────────────────────────────────\n")
	fmt.Fprintf(w, "Event #%d (%s)\n", n, subject)
	fmt.Fprintf(w, "─────────────────────────────────────────────────────\n")

	if strings.HasPrefix(subject, natspkg.LogSubjectPrefix+".") {
		var event natspkg.LogEvent
		if err := json.Unmarshal(data, &event); err != nil {
			return err
		}
		fmt.Fprintf(w, "Sender:       %s\n", event.Sender)
		if event.Signature != "" {
			fmt.Fprintf(w, "Signature:    %s\n", event.Signature)
		}
		fmt.Fprintf(w, "Payload:      %s\n", string(event.Payload))
		fmt.Fprintf(w, "Received:     %s\n\n", event.ReceivedAt.Format(time.RFC3339))
		return nil
	}

	var event natspkg.SubmissionEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return err
	}
	if event.WorkflowID != "" {
		fmt.Fprintf(w, "Workflow:     %s\n", event.WorkflowID)
	}
	fmt.Fprintf(w, "Sender:       %s\n", event.Sender)
	fmt.Fprintf(w, "Recipient:    %s\n", event.Recipient)
	fmt.Fprintf(w, "Amount:       %d lamports\n", event.Amount)
	if event.Signature != "" {
		fmt.Fprintf(w, "Signature:    %s\n", event.Signature)
	}
	fmt.Fprintf(w, "Outcome:      %s\n", event.Outcome)
	if event.ErrorDetail != nil {
		fmt.Fprintf(w, "Detail:       %s\n", *event.ErrorDetail)
	}
	if event.Error != "" {
		fmt.Fprintf(w, "Error:        %s\n", event.Error)
	}
	fmt.Fprintf(w, "Finished:     %s\n\n", event.FinishedAt.Format(time.RFC3339))
	return nil
}

// inspectStreamCommand shows information about the NATS JetStream stream.
func inspectStreamCommand() *cli.Command {
	return &cli.Command{
		Name:  "inspect-stream",
		Usage: "Inspect the SUBMISSIONS JetStream stream",
		Action: func(c *cli.Context) error {
			nc, err := nats.Connect(c.String("nats-url"))
			if err != nil {
				return fmt.Errorf("failed to connect to NATS: %w", err)
			}
			defer nc.Close()

			js, err := jetstream.New(nc)
			if err != nil {
				return fmt.Errorf("failed to create JetStream context: %w", err)
			}

			stream, err := js.Stream(context.Background(), natspkg.StreamName)
			if err != nil {
				return fmt.Errorf("failed to get stream: %w", err)
			}

			info, err := stream.Info(context.Background())
			if err != nil {
				return fmt.Errorf("failed to get stream info: %w", err)
			}

			w := c.App.Writer
			if c.Bool("json") {
				return writeJSONOut(w, info)
			}
			fmt.Fprintf(w, "Stream: %s\n", info.Config.Name)
			fmt.Fprintf(w, "─────────────────────────────────────────────────────\n")
			fmt.Fprintf(w, "Description:  %s\n", info.Config.Description)
			fmt.Fprintf(w, "Subjects:     %v\n", info.Config.Subjects)
			fmt.Fprintf(w, "Messages:     %d\n", info.State.Msgs)
			fmt.Fprintf(w, "Bytes:        %d\n", info.State.Bytes)
			fmt.Fprintf(w, "First Seq:    %d\n", info.State.FirstSeq)
			fmt.Fprintf(w, "Last Seq:     %d\n", info.State.LastSeq)
			fmt.Fprintf(w, "Consumers:    %d\n", info.State.Consumers)
			fmt.Fprintf(w, "Max Age:      %s\n", info.Config.MaxAge)
			fmt.Fprintf(w, "Storage:      %s\n", info.Config.Storage)
			return nil
		},
	}
}
