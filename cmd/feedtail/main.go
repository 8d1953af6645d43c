// Command feedtail subscribes to a handful of streams and prints every
// event, mainly as a smoke test for the client.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fenwick/fustream"
	"github.com/fenwick/fustream/config"
	"github.com/fenwick/fustream/events"
	"github.com/fenwick/fustream/streams"
)

func main() {
	var (
		configPath = flag.String("config", "", "optional YAML config file")
		symbols    = flag.String("symbols", "btcusdt", "comma-separated symbols")
		kinds      = flag.String("streams", "bookTicker,aggTrade", "stream kinds: bookTicker, aggTrade, markPrice, miniTicker, ticker, depth, kline1m")
		verbose    = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	fustream.SetLogger(logger)

	cfg := config.FromEnv()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			logger.Error("load config", "error", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	client, err := fustream.New(cfg)
	if err != nil {
		logger.Error("build client", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	specs := buildSpecs(*symbols, *kinds)
	if err := client.Subscribe(ctx, specs...); err != nil {
		logger.Error("subscribe", "error", err)
		os.Exit(1)
	}
	if err := client.Start(ctx); err != nil {
		logger.Error("start", "error", err)
		os.Exit(1)
	}
	defer client.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-client.Events():
			if !ok {
				logger.Info("event stream ended")
				return
			}
			printEvent(ev)
		}
	}
}

func buildSpecs(symbolsCSV, kindsCSV string) []streams.Spec {
	var specs []streams.Spec
	for _, symbol := range strings.Split(symbolsCSV, ",") {
		symbol = strings.TrimSpace(symbol)
		if symbol == "" {
			continue
		}
		for _, kind := range strings.Split(kindsCSV, ",") {
			switch strings.TrimSpace(kind) {
			case "bookTicker":
				specs = append(specs, streams.BookTicker(symbol))
			case "aggTrade":
				specs = append(specs, streams.AggTrade(symbol))
			case "markPrice":
				specs = append(specs, streams.MarkPrice(symbol, streams.MarkPrice1s))
			case "miniTicker":
				specs = append(specs, streams.MiniTicker(symbol))
			case "ticker":
				specs = append(specs, streams.Ticker(symbol))
			case "depth":
				specs = append(specs, streams.Depth(symbol, streams.Level10, streams.Depth250ms))
			case "kline1m":
				specs = append(specs, streams.Kline(symbol, streams.Interval1m))
			}
		}
	}
	return specs
}

func printEvent(ev events.Event) {
	switch payload := ev.Payload.(type) {
	case events.BookTicker:
		fmt.Printf("%s %s bid %s x %s / ask %s x %s\n",
			ev.ReceivedAt.Format("15:04:05.000"), payload.Symbol,
			payload.BidPrice, payload.BidQuantity, payload.AskPrice, payload.AskQuantity)
	case events.AggTrade:
		side := "buy"
		if payload.BuyerIsMaker {
			side = "sell"
		}
		fmt.Printf("%s %s %s %s @ %s\n",
			ev.ReceivedAt.Format("15:04:05.000"), payload.Symbol, side,
			payload.Quantity, payload.Price)
	case events.SubscribeAck:
		fmt.Printf("ack id=%d\n", payload.ID)
	default:
		if ev.Err != nil {
			fmt.Printf("%s: %v\n", ev.Type, ev.Err)
			return
		}
		fmt.Printf("%s %s %+v\n", ev.Type, ev.Stream, ev.Payload)
	}
}
