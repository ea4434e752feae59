package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"healthledger/api/client"
)

// Flags shared by the commands that talk to a running node.
var (
	nodeURL   string
	nodeToken string
	output    string
)

func clientFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("client", pflag.ExitOnError)
	fs.StringVar(&nodeURL, "node", envOr("HEALTHLEDGER_NODE_URL", "http://localhost:8080"), "node base URL")
	fs.StringVar(&nodeToken, "token", os.Getenv("HEALTHLEDGER_TOKEN"), "bearer token (env HEALTHLEDGER_TOKEN)")
	fs.StringVarP(&output, "output", "o", "plain", "Output format: plain|json")
	return fs
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func newClient() *client.Client {
	return client.New(nodeURL, nodeToken)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Query node status and health",
	Example: `  healthledger status
  healthledger status --output json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := newClient().GetStatus(contextOrBackground(cmd))
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if output == "json" {
			return printJSON(out, st)
		}
		fmt.Fprintf(out, "Node: %s\nStatus: %s\nHeight: %d\nTip: %s\nParticipants: %d\nPHI assets: %d\nVersion: %s\n",
			st.Node, st.Status, st.BlockHeight, st.TipHash, st.Participants, st.PHIAssets, st.Version)
		if st.HaltReason != "" {
			fmt.Fprintf(out, "Halted: %s\n", st.HaltReason)
		}
		return nil
	},
}

var historyParticipant string

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List committed transactions",
	Example: `  healthledger history
  healthledger history --participant pat-001 -o json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		txs, err := newClient().History(contextOrBackground(cmd), historyParticipant)
		if err != nil {
			return err
		}
		if output == "json" {
			return printJSON(cmd.OutOrStdout(), txs)
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "TIME\tKIND\tACTOR\tASSET\tTX")
		for _, tx := range txs {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", tx.Timestamp.Format(time.RFC3339), tx.Kind, tx.Actor, tx.AssetID, tx.TxID)
		}
		return tw.Flush()
	},
}

var mineCmd = &cobra.Command{
	Use:   "mine",
	Short: "Mine pending transactions into a block (administrators)",
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := newClient().Mine(contextOrBackground(cmd))
		if err != nil {
			return err
		}
		if output == "json" {
			return printJSON(cmd.OutOrStdout(), b)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Mined block %d (%d transactions)\nHash: %s\n", b.Index, b.Transactions, b.Hash)
		return nil
	},
}

var blocksLimit int

var blocksCmd = &cobra.Command{
	Use:   "blocks",
	Short: "List recent blocks, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		bs, err := newClient().Blocks(contextOrBackground(cmd), blocksLimit)
		if err != nil {
			return err
		}
		if output == "json" {
			return printJSON(cmd.OutOrStdout(), bs)
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "INDEX\tTXS\tTIME\tHASH")
		for _, b := range bs {
			fmt.Fprintf(tw, "%d\t%d\t%s\t%s\n", b.Index, b.Transactions, b.Timestamp.Format(time.RFC3339), b.Hash)
		}
		return tw.Flush()
	},
}

func init() {
	for _, c := range []*cobra.Command{statusCmd, historyCmd, mineCmd, blocksCmd} {
		c.Flags().AddFlagSet(clientFlags())
	}
	historyCmd.Flags().StringVar(&historyParticipant, "participant", "", "only this participant's transactions (administrators may pass any ID)")
	blocksCmd.Flags().IntVar(&blocksLimit, "limit", 20, "maximum blocks to list")
}
