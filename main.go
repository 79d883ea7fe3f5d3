package main

import (
	"context"
	"fmt"
	"os"

	flags "github.com/jessevdk/go-flags"

	"btc-prover/config"
	"btc-prover/database"
	path "btc-prover/internal"
	"btc-prover/pkg/logger"
	"btc-prover/pkg/node"
	"btc-prover/pkg/prover"
)

type options struct {
	Config    string `short:"c" long:"config" description:"path to the toml config file"`
	Caller    string `long:"caller" default:"cli" description:"caller identity used for fallback metering"`
	FeeTarget int64  `long:"fee-target" description:"also print the estimated fee rate (BTC/kvB) for confirmation within this many blocks"`

	Args struct {
		TxIDs []string `positional-arg-name:"txid" required:"1"`
	} `positional-args:"yes"`
}

func main() {
	var opts options
	if _, err := flags.Parse(&opts); err != nil {
		os.Exit(1)
	}

	configPath := opts.Config
	if configPath == "" {
		configPath = path.DefaultConfigPath
	}
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		panic(err)
	}

	log := logger.New("PROV", cfg.Logger.Level)

	client, err := node.New(cfg.Node, logger.New("NODE", cfg.Logger.Level))
	if err != nil {
		log.Errorf("node setup: %v", err)
		os.Exit(1)
	}
	defer client.Close()

	ctx := context.Background()

	var store prover.Store
	if cfg.DB.URI != "" {
		mc, err := database.NewMongoDBConnection(ctx, cfg.DB.URI)
		if err != nil {
			log.Errorf("mongodb setup: %v", err)
			os.Exit(1)
		}
		defer func() {
			_ = mc.Disconnect(ctx)
		}()
		store = database.NewMongoStore(database.ProofsCollection(mc, cfg.DB.Database))
		log.Infof("MongoDB proof store ready")
	}

	orch := prover.NewOrchestrator(client, prover.Options{
		Store:          store,
		Policy:         prover.CommitmentPolicy(cfg.Prover.CommitmentPolicy),
		FallbackQuota:  cfg.Prover.FallbackQuota,
		FallbackWindow: cfg.Prover.FallbackWindow.Duration,
		Logger:         log,
	})

	if opts.FeeTarget > 0 {
		feeRate, err := client.EstimateFee(opts.FeeTarget)
		if err != nil {
			log.Errorf("fee estimate for %d blocks: %v", opts.FeeTarget, err)
			os.Exit(1)
		}
		fmt.Printf("feerate %.8f BTC/kvB for confirmation within %d blocks\n", feeRate, opts.FeeTarget)
	}

	for _, txid := range opts.Args.TxIDs {
		proof, err := orch.RequestProof(ctx, txid, opts.Caller)
		if err != nil {
			log.Errorf("proof for %s: %v", txid, err)
			os.Exit(1)
		}
		encoded, err := prover.EncodeProofSet(proof)
		if err != nil {
			log.Errorf("encode proof for %s: %v", txid, err)
			os.Exit(1)
		}
		fmt.Println(string(encoded))
	}
}
