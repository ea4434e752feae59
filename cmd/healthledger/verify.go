package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"healthledger/core/config"
	"healthledger/core/crypto"
	"healthledger/core/ledger"
	"healthledger/core/logger"
	"healthledger/core/storage"
)

var (
	verifyRemote bool
	verifyOutput string
)

type archiveReport struct {
	Blocks        int      `json:"blocks"`
	Transactions  int      `json:"transactions"`
	Signed        int      `json:"signed"`
	BadSignatures []string `json:"bad_signatures,omitempty"`
	TipHash       string   `json:"tip_hash"`
}

// verifyArchive checks the archived chain from genesis and every
// transaction signature it carries.
func verifyArchive(a *storage.Archive, difficulty int) (archiveReport, error) {
	var rep archiveReport
	blocks, err := a.Blocks()
	if err != nil {
		return rep, err
	}
	if err := ledger.VerifyChain(blocks, difficulty); err != nil {
		return rep, err
	}
	rep.Blocks = len(blocks)
	rep.TipHash = blocks[len(blocks)-1].Hash
	for _, b := range blocks {
		for _, tx := range b.Transactions {
			rep.Transactions++
			if tx.Signature == "" {
				continue
			}
			rep.Signed++
			if !crypto.VerifyHex(tx.SignerKey, tx.SigningPayload(), tx.Signature) {
				rep.BadSignatures = append(rep.BadSignatures, tx.TxID)
			}
		}
	}
	return rep, nil
}

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify the archived chain offline, or a running node with --remote",
	Example: `  healthledger verify
  healthledger verify --remote --node http://localhost:8080`,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if verifyRemote {
			if err := newClient().Verify(contextOrBackground(cmd)); err != nil {
				return err
			}
			fmt.Fprintln(out, "chain valid")
			return nil
		}

		cfg := config.Get()
		cipher, err := archiveCipher(cfg.Crypto)
		if err != nil {
			return err
		}
		a, err := storage.Open(cfg.Storage.Path, cipher, logger.L().Named("archive"))
		if err != nil {
			return err
		}
		defer a.Close()

		rep, err := verifyArchive(a, cfg.Ledger.Difficulty)
		if err != nil {
			return err
		}
		if verifyOutput == "json" {
			if err := printJSON(out, rep); err != nil {
				return err
			}
		} else {
			fmt.Fprintf(out, "Blocks: %d\nTransactions: %d\nSigned: %d\nTip: %s\n", rep.Blocks, rep.Transactions, rep.Signed, rep.TipHash)
		}
		if len(rep.BadSignatures) > 0 {
			return fmt.Errorf("%d transaction signature(s) do not verify", len(rep.BadSignatures))
		}
		return nil
	},
}

func init() {
	verifyCmd.Flags().BoolVar(&verifyRemote, "remote", false, "ask a running node to verify its in-memory chain")
	verifyCmd.Flags().StringVar(&nodeURL, "node", envOr("HEALTHLEDGER_NODE_URL", "http://localhost:8080"), "node base URL (with --remote)")
	verifyCmd.Flags().StringVar(&nodeToken, "token", os.Getenv("HEALTHLEDGER_TOKEN"), "bearer token (with --remote, env HEALTHLEDGER_TOKEN)")
	verifyCmd.Flags().StringVarP(&verifyOutput, "output", "o", "plain", "Output format: plain|json")
}
