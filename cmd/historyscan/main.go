package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"

	"github.com/cenkalti/backoff/v4"
	"github.com/flashbots/go-utils/cli"
	"github.com/flashbots/mev-share-client/mevshare"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	version = "dev" // is set during build process

	// Default values
	defaultDebug   = os.Getenv("DEBUG") == "1"
	defaultLogProd = os.Getenv("LOG_PROD") == "1"
	defaultStream  = cli.GetEnv("STREAM_ENDPOINT", mevshare.NetworkMainnet.StreamURL)

	// Flags
	debugPtr      = flag.Bool("debug", defaultDebug, "print debug output")
	logProdPtr    = flag.Bool("log-prod", defaultLogProd, "log in production mode (json)")
	streamPtr     = flag.String("stream", defaultStream, "mev-share stream endpoint")
	blockStartPtr = flag.Uint64("block-start", 0, "first block to scan (0 = start of history)")
	blockEndPtr   = flag.Uint64("block-end", 0, "last block to scan (0 = end of history)")
)

func main() {
	flag.Parse()

	logger := newLogger(*logProdPtr, *debugPtr)
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()
	network := mevshare.Network{StreamURL: *streamPtr}
	history := mevshare.NewHistoryClient(network.HistoryURL(), nil)

	info, err := history.Info(ctx)
	if err != nil {
		logger.Fatal("Failed to fetch history info", zap.Error(err))
	}
	logger.Info("Scanning event history",
		zap.String("version", version),
		zap.Uint64("minBlock", info.MinBlock),
		zap.Uint64("maxBlock", info.MaxBlock),
		zap.Uint64("count", info.Count))

	params := mevshare.EventHistoryParams{Limit: &info.MaxLimit}
	if *blockStartPtr != 0 {
		params.BlockStart = blockStartPtr
	}
	if *blockEndPtr != 0 {
		params.BlockEnd = blockEndPtr
	}

	encoder := json.NewEncoder(os.Stdout)
	var total uint64
	for offset := uint64(0); ; offset += info.MaxLimit {
		params.Offset = &offset

		// Pages are retried individually so a transient relay error does not
		// restart the whole scan.
		entries, err := backoff.RetryWithData(func() ([]mevshare.EventHistoryEntry, error) {
			return history.Events(ctx, &params)
		}, backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 5), ctx))
		if err != nil {
			logger.Fatal("Failed to fetch history page", zap.Uint64("offset", offset), zap.Error(err))
		}
		if len(entries) == 0 {
			break
		}
		for _, entry := range entries {
			if err := encoder.Encode(entry); err != nil {
				logger.Fatal("Failed to write entry", zap.Error(err))
			}
		}
		total += uint64(len(entries))
		logger.Debug("Fetched history page", zap.Uint64("offset", offset), zap.Int("entries", len(entries)))
		if uint64(len(entries)) < info.MaxLimit {
			break
		}
	}
	logger.Info("Scan done", zap.Uint64("entries", total))
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
