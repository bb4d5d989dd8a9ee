package main

import (
	"context"
	"errors"
	"flag"
	"os"

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
	debugPtr    = flag.Bool("debug", defaultDebug, "print debug output")
	logProdPtr  = flag.Bool("log-prod", defaultLogProd, "log in production mode (json)")
	ethPtr      = flag.String("eth", defaultEthEndpoint, "eth endpoint")
	authKeyPtr  = flag.String("auth-key", defaultAuthKey, "private key used to sign relay requests (hex)")
	rawTxPtr    = flag.String("tx", "", "signed raw transaction (hex)")
	maxBlockPtr = flag.Uint64("max-block", 0, "last block the relay may include the tx in (0 = relay default)")
	fastPtr     = flag.Bool("fast", false, "enable fast mode")
)

func main() {
	flag.Parse()

	logger := newLogger(*logProdPtr, *debugPtr)
	defer func() { _ = logger.Sync() }()

	logger.Info("Sending private transaction", zap.String("version", version))

	if *rawTxPtr == "" {
		logger.Fatal("Missing -tx")
	}
	rawTx, err := hexutil.Decode(*rawTxPtr)
	if err != nil {
		logger.Fatal("Failed to decode raw transaction", zap.Error(err))
	}

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

	args := mevshare.SendPrivateTxArgs{Tx: rawTx}
	if *maxBlockPtr != 0 {
		maxBlock := hexutil.Uint64(*maxBlockPtr)
		args.MaxBlockNumber = &maxBlock
	}
	if *fastPtr {
		args.Preferences = &mevshare.PrivateTxPreferences{Fast: true}
	}

	pending, err := client.SendPrivateTransaction(ctx, args)
	if err != nil {
		logger.Fatal("Failed to send private transaction", zap.Error(err))
	}
	logger.Info("Transaction accepted",
		zap.String("tx", pending.Hash.Hex()), zap.Uint64("maxBlock", pending.MaxBlock))

	receipt, err := pending.Inclusion(ctx)
	var timeout *mevshare.TxTimeoutError
	var reverted *mevshare.TxRevertError
	switch {
	case errors.As(err, &timeout):
		logger.Fatal("Transaction not included in time", zap.Uint64("block", timeout.Block))
	case errors.As(err, &reverted):
		logger.Fatal("Transaction reverted",
			zap.Uint64("block", reverted.Receipt.BlockNumber.Uint64()))
	case err != nil:
		logger.Fatal("Failed waiting for inclusion", zap.Error(err))
	}
	logger.Info("Transaction included",
		zap.Uint64("block", receipt.BlockNumber.Uint64()),
		zap.Uint64("gasUsed", receipt.GasUsed))
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
