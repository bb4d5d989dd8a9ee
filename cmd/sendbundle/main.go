package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/flashbots/go-utils/cli"
	"github.com/flashbots/mev-share-client/jsonrpcclient"
	"github.com/flashbots/mev-share-client/mevshare"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	version = "dev" // is set during build process

	// Default values
	defaultDebug       = os.Getenv("DEBUG") == "1"
	defaultLogProd     = os.Getenv("LOG_PROD") == "1"
	defaultEthEndpoint = cli.GetEnv("ETH_ENDPOINT", "http://127.0.0.1:8545")
	defaultAuthKey     = cli.GetEnv("AUTH_PRIVATE_KEY", "")

	// Flags
	debugPtr     = flag.Bool("debug", defaultDebug, "print debug output")
	logProdPtr   = flag.Bool("log-prod", defaultLogProd, "log in production mode (json)")
	ethPtr       = flag.String("eth", defaultEthEndpoint, "eth endpoint")
	authKeyPtr   = flag.String("auth-key", defaultAuthKey, "private key used to sign relay requests (hex)")
	txsPtr       = flag.String("txs", "", "signed raw transactions (hex, comma separated)")
	backrunPtr   = flag.String("backrun", "", "hash of a pending transaction to backrun (optional)")
	maxBlocksPtr = flag.Uint64("max-blocks", 25, "width of the inclusion window in blocks")
	refundPtr    = flag.Int("refund", 0, "refund percent for the first body element (0 = none)")
	simulatePtr  = flag.Bool("simulate", false, "simulate the bundle instead of sending it")
)

func main() {
	flag.Parse()

	logger := newLogger(*logProdPtr, *debugPtr)
	defer func() { _ = logger.Sync() }()

	logger.Info("Sending bundle", zap.String("version", version))

	signer, err := jsonrpcclient.NewPrivateKeySignerFromHex(*authKeyPtr)
	if err != nil {
		logger.Fatal("Failed to parse auth key", zap.Error(err))
	}

	ctx := context.Background()
	ethBackend, err := ethclient.Dial(*ethPtr)
	if err != nil {
		logger.Fatal("Failed to connect to eth endpoint", zap.Error(err))
	}

	client, err := mevshare.New(ctx, signer, mevshare.NewCachingChainBackend(ethBackend), mevshare.WithLogger(logger))
	if err != nil {
		logger.Fatal("Failed to create client", zap.Error(err))
	}

	bundle, err := buildBundle(ctx, ethBackend)
	if err != nil {
		logger.Fatal("Failed to build bundle", zap.Error(err))
	}

	if *simulatePtr {
		sim, err := client.SimulateBundle(ctx, bundle, nil)
		if err != nil {
			logger.Fatal("Simulation failed", zap.Error(err))
		}
		logger.Info("Simulation done",
			zap.Bool("success", sim.Success),
			zap.String("profit", sim.Profit.String()),
			zap.Uint64("gasUsed", uint64(sim.GasUsed)))
		return
	}

	pending, err := client.SendBundle(ctx, bundle)
	if err != nil {
		logger.Fatal("Failed to send bundle", zap.Error(err))
	}
	logger.Info("Bundle accepted", zap.String("bundle", pending.Hash.Hex()))

	receipts, err := pending.Inclusion(ctx)
	var timeout *mevshare.BundleTimeoutError
	var discarded *mevshare.BundleDiscardError
	var reverted *mevshare.BundleRevertError
	switch {
	case errors.As(err, &timeout):
		logger.Fatal("Bundle not included in time", zap.Uint64("block", timeout.Block))
	case errors.As(err, &discarded):
		logger.Fatal("Bundle broken apart", zap.Int("landed", len(discarded.Receipts)))
	case errors.As(err, &reverted):
		logger.Fatal("Bundle included with reverts")
	case err != nil:
		logger.Fatal("Failed waiting for inclusion", zap.Error(err))
	}
	logger.Info("Bundle included",
		zap.Int("txs", len(receipts)),
		zap.Uint64("block", receipts[0].BlockNumber.Uint64()))
}

func buildBundle(ctx context.Context, ethBackend *ethclient.Client) (*mevshare.SendMevBundleArgs, error) {
	var body []mevshare.MevBundleBody
	if *backrunPtr != "" {
		hash := common.HexToHash(*backrunPtr)
		body = append(body, mevshare.MevBundleBody{Hash: &hash})
	}
	for _, rawHex := range strings.Split(*txsPtr, ",") {
		rawHex = strings.TrimSpace(rawHex)
		if rawHex == "" {
			continue
		}
		raw, err := hexutil.Decode(rawHex)
		if err != nil {
			return nil, err
		}
		tx := hexutil.Bytes(raw)
		body = append(body, mevshare.MevBundleBody{Tx: &tx})
	}

	block, err := ethBackend.BlockNumber(ctx)
	if err != nil {
		return nil, err
	}
	bundle := &mevshare.SendMevBundleArgs{
		Version: mevshare.VersionV1,
		Inclusion: mevshare.MevBundleInclusion{
			BlockNumber: hexutil.Uint64(block + 1),
			MaxBlock:    hexutil.Uint64(block + *maxBlocksPtr),
		},
		Body: body,
	}
	if *refundPtr > 0 {
		bundle.Validity.Refund = []mevshare.RefundConstraint{{BodyIdx: 0, Percent: *refundPtr}}
	}
	return bundle, nil
}

func newLogger(prod, debug bool) *zap.Logger {
	logger, _ := zap.NewDevelopment()
	if prod {
		atom := zap.NewAtomicLevel()
		if debug {
			atom.SetLevel(zap.DebugLevel)
		}

		encoderCfg := zap.NewProductionEncoderConfig()
		encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		logger = zap.New(zapcore.NewCore(
			zapcore.NewJSONEncoder(encoderCfg),
			zapcore.Lock(os.Stdout),
			atom,
		))
	}
	return logger
}
