package main

import (
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"healthledger/core/access"
	"healthledger/core/audit"
	"healthledger/core/config"
	"healthledger/core/crypto"
	"healthledger/core/ledger"
	"healthledger/core/network"
	"healthledger/core/notify"
	"healthledger/core/storage"
	"healthledger/core/warning"
)

// node bundles a network with the resources that outlive it.
type node struct {
	net     *network.Network
	archive *storage.Archive
	signer  *crypto.KeyPair
}

func (n *node) Close() error {
	if n.archive != nil {
		return n.archive.Close()
	}
	return nil
}

// archiveCipher picks the block sealing key: an explicit DEK wins over a
// passphrase; neither means blocks are stored in the clear.
func archiveCipher(c config.CryptoCfg) (*crypto.FieldCipher, error) {
	switch {
	case c.DEK != "":
		return crypto.CipherFromDEK(c.DEK)
	case c.Passphrase != "":
		return crypto.CipherFromPassphrase(c.Passphrase, c.Salt)
	default:
		return nil, nil
	}
}

// loadSigner prefers the key in the environment and falls back to the key
// directory, generating a key there on first run.
func loadSigner(c config.CryptoCfg) (crypto.KeyPair, error) {
	if os.Getenv(crypto.SignerKeyEnv) != "" {
		return crypto.EnvKeyLoader{}.LoadKeyPair()
	}
	return crypto.FileKeyLoader{Dir: c.KeyDir}.LoadKeyPair()
}

func openArchive(cfg *config.Config, reset bool, log *zap.Logger) (*storage.Archive, error) {
	cipher, err := archiveCipher(cfg.Crypto)
	if err != nil {
		return nil, err
	}
	if reset {
		if err := os.RemoveAll(cfg.Storage.Path); err != nil {
			return nil, fmt.Errorf("reset archive: %w", err)
		}
	}
	return storage.Open(cfg.Storage.Path, cipher, log.Named("archive"))
}

// buildNode wires a network from cfg. The in-memory state does not survive
// a restart, so an archive that already holds mined blocks is refused
// unless resetArchive is set.
func buildNode(cfg *config.Config, resetArchive bool, log *zap.Logger) (*node, error) {
	rules := warning.DefaultRules()
	if cfg.Warning.RulesFile != "" {
		r, err := warning.LoadRules(cfg.Warning.RulesFile)
		if err != nil {
			return nil, err
		}
		rules = r
	}
	warnings, err := warning.NewEngine(rules, log.Named("warning"))
	if err != nil {
		return nil, err
	}

	l := ledger.New(
		ledger.WithDifficulty(cfg.Ledger.Difficulty),
		ledger.WithGenesis(ledger.GenesisConfig{ChainID: cfg.Node.ChainID, GenesisTime: cfg.GenesisTime()}),
		ledger.WithLogger(log.Named("ledger")),
	)

	opts := []network.Option{
		network.WithLedger(l),
		network.WithAccessEngine(access.NewEngine(access.WithMaxDuration(cfg.Emergency.MaxDuration))),
		network.WithWarningEngine(warnings),
		network.WithNotifier(notify.NewLogNotifier(log)),
		network.WithAuditLogger(audit.NewZapAuditLogger(log)),
		network.WithLogger(log),
	}

	n := &node{}
	if cfg.Crypto.SignTxs {
		kp, err := loadSigner(cfg.Crypto)
		if err != nil {
			return nil, fmt.Errorf("load signer: %w", err)
		}
		n.signer = &kp
		opts = append(opts, network.WithSigner(kp))
	}

	if cfg.Storage.Enabled {
		a, err := openArchive(cfg, resetArchive, log)
		if err != nil {
			return nil, err
		}
		if h, ok, err := a.Height(); err != nil {
			a.Close()
			return nil, err
		} else if ok && h > 0 {
			a.Close()
			return nil, fmt.Errorf("archive %s already holds %d mined blocks; pass --reset-archive to start a new chain", cfg.Storage.Path, h)
		}
		if err := a.SaveBlock(l.Tip()); err != nil {
			a.Close()
			return nil, err
		}
		n.archive = a
		opts = append(opts, network.WithArchiver(a))
	}

	net, err := network.New(opts...)
	if err != nil {
		return nil, errors.Join(err, n.Close())
	}
	n.net = net
	return n, nil
}
