package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"healthledger/api/server"
	"healthledger/core/audit"
	"healthledger/core/auth"
	"healthledger/core/config"
	"healthledger/core/logger"
	"healthledger/core/participant"
)

var (
	serveAdminID   string
	serveAdminName string
	serveListen    string
	serveReset     bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a node and its HTTP API",
	Example: `  healthledger serve
  healthledger serve --listen :9090 --admin-id root --reset-archive`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Get()
		log := logger.L()
		if cfg.Auth.JWTSecret == "" {
			return errors.New("auth.jwt_secret is required to serve the API")
		}

		n, err := buildNode(cfg, serveReset, log)
		if err != nil {
			return err
		}
		defer n.Close()

		admin, err := participant.NewAdmin(serveAdminID, serveAdminName, true)
		if err != nil {
			return fmt.Errorf("bootstrap admin: %w", err)
		}
		if err := n.net.AddParticipant(admin); err != nil {
			return fmt.Errorf("bootstrap admin: %w", err)
		}
		if n.signer != nil {
			log.Info("signing transactions", zap.String("public_key", fmt.Sprintf("%x", n.signer.Public)))
		}

		authz := &auth.Authorizer{
			Verifier: &auth.Verifier{
				KeyProvider: auth.StaticKeyProvider{Secret: []byte(cfg.Auth.JWTSecret)},
				Issuer:      cfg.Auth.Issuer,
			},
			AuditLogger: audit.NewZapAuditLogger(log),
		}

		listen := cfg.Server.ListenAddr
		if serveListen != "" {
			listen = serveListen
		}
		opts := []server.Option{server.WithNodeName(cfg.Node.Name), server.WithLogger(log.Named("http"))}
		if n.archive != nil {
			opts = append(opts, server.WithArchive(n.archive))
		}
		srv := server.NewServer(n.net, authz, listen, opts...)

		ctx, stop := signal.NotifyContext(contextOrBackground(cmd), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if cfg.Ledger.AutoMineInterval > 0 {
			go n.net.RunAutoMiner(ctx, cfg.Ledger.AutoMineInterval)
		}

		log.Info("node started",
			zap.String("node", cfg.Node.Name),
			zap.String("chain_id", cfg.Node.ChainID),
			zap.Int("difficulty", cfg.Ledger.Difficulty),
			zap.String("admin", admin.ID),
			zap.Bool("archive", n.archive != nil))
		return srv.Start(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAdminID, "admin-id", "admin", "ID of the super administrator created at startup")
	serveCmd.Flags().StringVar(&serveAdminName, "admin-name", "Node Administrator", "display name of the bootstrap administrator")
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "listen address (overrides server.listen_addr)")
	serveCmd.Flags().BoolVar(&serveReset, "reset-archive", false, "wipe the block archive before starting")
}

// contextOrBackground keeps commands usable when cobra runs without a context.
func contextOrBackground(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
