package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/brojonat/memotransfer/service/solana"
	solanago "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/urfave/cli/v2"
)

const lamportsPerSOL = 1e9

// newSolanaClient builds an RPC-backed ledger from the global flags.
func newSolanaClient(c *cli.Context) (*solana.Client, error) {
	endpoint, err := solana.SelectRandomEndpoint(strings.Split(c.String("rpc-url"), ","))
	if err != nil {
		return nil, err
	}
	return solana.NewClient(
		solana.NewRPCClient(endpoint),
		solana.EndpointLabel(endpoint),
		nil,
		cliLogger(c),
		solana.WithCommitment(rpc.CommitmentType(c.String("commitment"))),
	), nil
}

func submitCommand() *cli.Command {
	return &cli.Command{
		Name:  "submit",
		Usage: "Send 0.001 SOL with a JSON memo from the local keypair",
		Description: `Builds a transfer of 1,000,000 lamports to the fixed recipient followed by a
memo instruction carrying {"message","timestamp"}, signs it with --keypair,
sends it and waits once for confirmation. Nothing is retried.

Example:
  memotransfer submit --keypair ~/.config/solana/id.json --note gm`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "note",
				Aliases: []string{"n"},
				Usage:   "Text placed before \"from <address>\" in the memo message",
				Value:   "Hello",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Give up waiting for confirmation after this long",
				Value: 2 * time.Minute,
			},
		},
		Action: func(c *cli.Context) error {
			keypairPath := c.String("keypair")
			if keypairPath == "" {
				return fmt.Errorf("keypair is required (set WALLET_KEYPAIR_PATH env var or use --keypair)")
			}

			ledger, err := newSolanaClient(c)
			if err != nil {
				return err
			}
			logger := cliLogger(c)

			wallet, err := solana.LoadKeypairWallet(keypairPath, ledger, logger)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(context.Background(), c.Duration("timeout"))
			defer cancel()

			intent := solana.NewTransferIntent(solanago.PublicKey{}, c.String("note"))
			sub, err := solana.NewSubmitter(nil, logger).Run(ctx, intent, wallet, ledger)
			return printSubmission(c.App.Writer, c.Bool("json"), sub, err)
		},
	}
}

// printSubmission reports a submission attempt and passes err through.
func printSubmission(w io.Writer, jsonOutput bool, sub *solana.Submission, err error) error {
	if jsonOutput {
		out := map[string]interface{}{"confirmed": false}
		if sub != nil {
			out["signature"] = sub.ID.String()
			out["sender"] = sub.Intent.Sender.String()
			if sub.Result != nil {
				out["confirmed"] = sub.Result.Confirmed
				out["error_detail"] = sub.Result.ErrorDetail
			}
		}
		if err != nil {
			out["error"] = err.Error()
		}
		if outErr := writeJSONOut(w, out); outErr != nil {
			return errors.Join(err, outErr)
		}
		return err
	}

	if sub != nil {
		fmt.Fprintf(w, "Sender:     %s\n", sub.Intent.Sender)
		fmt.Fprintf(w, "Recipient:  %s\n", sub.Intent.Recipient)
		fmt.Fprintf(w, "Amount:     %.4f SOL\n", float64(sub.Intent.Amount)/lamportsPerSOL)
		fmt.Fprintf(w, "Signature:  %s\n", sub.ID)
	}

	var confirmErr *solana.ConfirmationFailedError
	switch {
	case err == nil:
		fmt.Fprintln(w, "✓ Transaction confirmed")
		return nil
	case errors.As(err, &confirmErr):
		fmt.Fprintf(w, "✗ Transaction failed to confirm: %s\n", confirmErr.Detail)
	case errors.Is(err, solana.ErrWalletNotConnected):
		fmt.Fprintln(w, "✗ Wallet not connected")
	case errors.Is(err, solana.ErrSigningFailed):
		fmt.Fprintln(w, "✗ Signing failed")
	}
	return err
}

func recipientCommand() *cli.Command {
	return &cli.Command{
		Name:  "recipient",
		Usage: "Show the recipient account and its latest transaction",
		Action: func(c *cli.Context) error {
			ledger, err := newSolanaClient(c)
			if err != nil {
				return err
			}

			summary, err := ledger.DescribeAccount(context.Background(), solana.RecipientAddress)
			if err != nil {
				return fmt.Errorf("failed to describe recipient: %w", err)
			}

			if c.Bool("json") {
				return writeJSONOut(c.App.Writer, summary)
			}

			printAccountSummary(c.App.Writer, summary)
			return nil
		},
	}
}

func printAccountSummary(w io.Writer, s *solana.AccountSummary) {
	fmt.Fprintf(w, "Address:      %s\n", s.Address)
	if !s.Found {
		fmt.Fprintln(w, "Account:      not found")
	} else {
		fmt.Fprintf(w, "Balance:      %.9f SOL\n", float64(s.Lamports)/lamportsPerSOL)
		fmt.Fprintf(w, "Owner:        %s\n", s.Owner)
		fmt.Fprintf(w, "Executable:   %t\n", s.Executable)
		if s.RentEpoch != "" {
			fmt.Fprintf(w, "Rent Epoch:   %s\n", s.RentEpoch)
		}
	}
	if s.LatestSignature != nil {
		fmt.Fprintf(w, "Latest Tx:    %s\n", *s.LatestSignature)
	}
	if s.LatestSender != nil {
		fmt.Fprintf(w, "Latest From:  %s\n", *s.LatestSender)
	}
}

func verifyCommand() *cli.Command {
	return &cli.Command{
		Name:      "verify",
		Usage:     "Check that a signature is a successful transfer to the recipient",
		ArgsUsage: "SIGNATURE",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("signature is required")
			}

			ledger, err := newSolanaClient(c)
			if err != nil {
				return err
			}

			verifier := solana.NewVerifier(ledger, solana.RecipientAddress, cliLogger(c))
			auth, err := verifier.Authenticate(context.Background(), c.Args().Get(0))
			if err != nil {
				return err
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

// printAuthentication prints any JSON-taggable authentication value.
func printAuthentication(w io.Writer, jsonOutput bool, authenticated bool, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	if jsonOutput {
		fmt.Fprintln(w, string(data))
		return nil
	}
	if authenticated {
		fmt.Fprintln(w, "✓ Authenticated")
	} else {
		fmt.Fprintln(w, "✗ Not authenticated")
	}
	fmt.Fprintln(w, string(data))
	return nil
}
