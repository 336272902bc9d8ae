// Command aurumnode runs a full Aurum node or manages local wallets.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/aurum-chain/aurum/config"
	aurumcrypto "github.com/aurum-chain/aurum/crypto"
	"github.com/aurum-chain/aurum/crypto/certgen"
	"github.com/aurum-chain/aurum/keystore"
	"github.com/aurum-chain/aurum/node"
	"github.com/aurum-chain/aurum/query"
)

func main() {
	app := &cli.App{
		Name:  "aurumnode",
		Usage: "Aurum proof-of-stake full node",
		Commands: []*cli.Command{
			startCommand(),
			walletCreateCommand(),
			walletImportCommand(),
			walletListCommand(),
			certGenerateCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		if _, ok := err.(cliArgError); ok {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(2)
		}
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// cliArgError marks an error as an invalid-argument failure (exit code 2)
// rather than a generic startup failure (exit code 1).
type cliArgError struct{ err error }

func (e cliArgError) Error() string { return e.err.Error() }
func (e cliArgError) Unwrap() error { return e.err }

func argError(format string, args ...any) error {
	return cliArgError{err: fmt.Errorf(format, args...)}
}

func startCommand() *cli.Command {
	return &cli.Command{
		Name:  "start",
		Usage: "start a node",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "p2p-port"},
			&cli.IntFlag{Name: "rpc-port"},
			&cli.IntFlag{Name: "api-port"},
			&cli.StringFlag{Name: "data-dir", Value: "./data"},
			&cli.StringFlag{Name: "network"},
			&cli.StringFlag{Name: "log-level", Value: "info"},
			&cli.BoolFlag{Name: "no-api"},
			&cli.BoolFlag{Name: "no-discovery"},
			&cli.IntFlag{Name: "max-peers"},
			&cli.StringFlag{Name: "validator-key", Usage: "address of a wallet in --data-dir/wallets to validate with"},
			&cli.StringFlag{Name: "validator-password", EnvVars: []string{"AURUM_PASSWORD"}},
		},
		Action: runStart,
	}
}

func runStart(c *cli.Context) error {
	dataDir := c.String("data-dir")
	cfgPath := dataDir + "/config.json"

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg.DataDir = dataDir
	if p := c.Int("p2p-port"); p != 0 {
		cfg.P2PPort = p
	}
	if p := c.Int("rpc-port"); p != 0 {
		cfg.RPCPort = p
	}
	if p := c.Int("api-port"); p != 0 {
		cfg.APIPort = p
	}
	if v := c.String("network"); v != "" {
		cfg.Genesis.NetworkID = v
	}
	if v := c.String("log-level"); v != "" {
		cfg.LogLevel = v
	}
	if c.Bool("no-api") {
		cfg.NoAPI = true
	}
	if c.Bool("no-discovery") {
		cfg.NoDiscovery = true
	}
	if p := c.Int("max-peers"); p != 0 {
		cfg.MaxPeers = p
	}
	if err := cfg.Validate(); err != nil {
		return argError("invalid configuration: %w", err)
	}
	if err := config.Save(cfg, cfgPath); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	log, err := buildLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer log.Sync() //nolint:errcheck

	var opt node.Option
	if addr := c.String("validator-key"); addr != "" {
		priv, err := keystore.LoadFile(dataDir+"/wallets", addr, c.String("validator-password"))
		if err != nil {
			return argError("load validator key: %w", err)
		}
		opt.ValidatorKey = priv
	}

	n, err := node.New(cfg, opt, log)
	if err != nil {
		return fmt.Errorf("construct node: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := n.Start(ctx); err != nil {
		return fmt.Errorf("start node: %w", err)
	}

	var rpcServer *query.Server
	if !cfg.NoAPI {
		svc := query.NewService(cfg.NodeID, n.Chain(), nil)
		rpcServer = query.NewServer(fmt.Sprintf(":%d", cfg.RPCPort), svc, "")
		if err := rpcServer.Start(); err != nil {
			n.Stop()
			return fmt.Errorf("start rpc: %w", err)
		}
		log.Info("rpc listening", zap.Int("port", cfg.RPCPort))
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Info("shutting down")

	if rpcServer != nil {
		rpcServer.Stop() //nolint:errcheck
	}
	n.Stop()
	return nil
}

func buildLogger(level string) (*zap.Logger, error) {
	lvl := zap.NewAtomicLevel()
	if level != "" {
		lvl.UnmarshalText([]byte(level)) //nolint:errcheck
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = lvl
	return cfg.Build()
}

func walletCreateCommand() *cli.Command {
	return &cli.Command{
		Name:  "wallet:create",
		Usage: "generate a new validator/holder wallet",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "name"},
			&cli.StringFlag{Name: "password", EnvVars: []string{"AURUM_PASSWORD"}},
			&cli.StringFlag{Name: "data-dir", Value: "./data"},
		},
		Action: func(c *cli.Context) error {
			dir := c.String("data-dir") + "/wallets"
			w, path, err := keystore.CreateWallet(dir, c.String("password"))
			if err != nil {
				return fmt.Errorf("create wallet: %w", err)
			}
			fmt.Printf("Created wallet %s\n", w.Address())
			fmt.Printf("Saved to: %s\n", path)
			return nil
		},
	}
}

func walletImportCommand() *cli.Command {
	return &cli.Command{
		Name:  "wallet:import",
		Usage: "import a private key as a wallet",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "private-key", Required: true},
			&cli.StringFlag{Name: "name"},
			&cli.StringFlag{Name: "password", EnvVars: []string{"AURUM_PASSWORD"}},
			&cli.StringFlag{Name: "data-dir", Value: "./data"},
		},
		Action: func(c *cli.Context) error {
			priv, err := aurumcrypto.PrivKeyFromHex(c.String("private-key"))
			if err != nil {
				return argError("invalid private key: %w", err)
			}
			dir := c.String("data-dir") + "/wallets"
			w, path, err := keystore.ImportWallet(dir, priv, c.String("password"))
			if err != nil {
				return fmt.Errorf("import wallet: %w", err)
			}
			fmt.Printf("Imported wallet %s\n", w.Address())
			fmt.Printf("Saved to: %s\n", path)
			return nil
		},
	}
}

func certGenerateCommand() *cli.Command {
	return &cli.Command{
		Name:  "cert:generate",
		Usage: "generate a self-signed CA and node certificate/key pair for P2P mTLS",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "dir", Value: "./data/certs"},
			&cli.StringFlag{Name: "node-id", Required: true},
			&cli.StringSliceFlag{Name: "extra-dns"},
		},
		Action: func(c *cli.Context) error {
			dir := c.String("dir")
			opts := &certgen.Options{ExtraDNS: c.StringSlice("extra-dns")}
			if err := certgen.GenerateAll(dir, c.String("node-id"), opts); err != nil {
				return fmt.Errorf("generate certs: %w", err)
			}
			fmt.Printf("Wrote ca.crt, ca.key, %s.crt, %s.key to %s\n", c.String("node-id"), c.String("node-id"), dir)
			fmt.Println("Set config.tls.caCert/nodeCert/nodeKey to these paths to enable mTLS.")
			return nil
		},
	}
}

func walletListCommand() *cli.Command {
	return &cli.Command{
		Name:  "wallet:list",
		Usage: "list wallet addresses in the keystore directory",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "data-dir", Value: "./data"},
		},
		Action: func(c *cli.Context) error {
			addrs, err := keystore.ListAddresses(c.String("data-dir") + "/wallets")
			if err != nil {
				return fmt.Errorf("list wallets: %w", err)
			}
			for _, a := range addrs {
				fmt.Println(a)
			}
			return nil
		},
	}
}
