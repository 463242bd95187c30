// Command watch streams live transfer events for a token over a JSON-RPC
// WebSocket endpoint and optionally archives them to ClickHouse. Prometheus
// metrics are served on the side.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/GentianSadiku/eth-wallet-tracker/internal/config"
	"github.com/GentianSadiku/eth-wallet-tracker/internal/domain"
	"github.com/GentianSadiku/eth-wallet-tracker/internal/ethereum"
	"github.com/GentianSadiku/eth-wallet-tracker/internal/observability"
	"github.com/GentianSadiku/eth-wallet-tracker/internal/storage"
	chstore "github.com/GentianSadiku/eth-wallet-tracker/internal/storage/clickhouse"
	"github.com/GentianSadiku/eth-wallet-tracker/internal/storage/migrations"
)

// archiveFlushInterval batches live events before archiving them.
const archiveFlushInterval = 5 * time.Second

func main() {
	logger := log.New(os.Stderr, "[watch] ", log.LstdFlags)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("config: %v", err)
	}

	token := flag.String("token", "", "ERC-20 token contract address (required)")
	wsEndpoint := flag.String("ws-endpoint", cfg.WSEndpoint, "Ethereum JSON-RPC WebSocket endpoint")
	clickhouseDSN := flag.String("clickhouse-dsn", cfg.ClickhouseDSN, "ClickHouse connection string for the transfer archive (optional)")
	metricsAddr := flag.String("metrics-addr", ":9090", "Prometheus metrics listen address")
	flag.Parse()

	if *token == "" {
		fmt.Fprintln(os.Stderr, "Error: --token is required")
		flag.Usage()
		os.Exit(1)
	}
	if *wsEndpoint == "" {
		fmt.Fprintln(os.Stderr, "Error: --ws-endpoint (or ETH_WS_ENDPOINT) is required")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var archive storage.TransferEventStore
	if *clickhouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, *clickhouseDSN)
		if err != nil {
			logger.Fatalf("clickhouse: %v", err)
		}
		defer conn.Close()
		archive = chstore.NewTransferEventStore(conn)
	}

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", observability.Handler())
		logger.Printf("metrics listening on %s", *metricsAddr)
		if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
			logger.Printf("metrics server: %v", err)
		}
	}()

	wsCfg := ethereum.DefaultWSConfig()
	wsCfg.Logger = logger
	client, err := ethereum.NewWSClient(ctx, *wsEndpoint, &wsCfg)
	if err != nil {
		logger.Fatalf("websocket connect: %v", err)
	}
	defer client.Close()

	events, err := client.SubscribeTransfers(ctx, *token)
	if err != nil {
		logger.Fatalf("subscribe: %v", err)
	}
	logger.Printf("watching transfers for %s", *token)

	var pending []*domain.TransferEvent
	flush := time.NewTicker(archiveFlushInterval)
	defer flush.Stop()

	for {
		select {
		case <-ctx.Done():
			flushArchive(context.Background(), logger, archive, pending)
			logger.Println("shutting down")
			return
		case <-flush.C:
			flushArchive(ctx, logger, archive, pending)
			pending = pending[:0]
		case ev, ok := <-events:
			if !ok {
				flushArchive(context.Background(), logger, archive, pending)
				logger.Println("event stream closed")
				return
			}
			fmt.Printf("block %d tx %s: %s -> %s amount %s\n",
				ev.BlockNumber, ev.TxHash, ev.From, ev.To, ev.RawAmount.String())
			if archive != nil {
				pending = append(pending, ev)
			}
		}
	}
}

// flushArchive writes buffered events; archive failures are logged, never
// fatal to the stream.
func flushArchive(ctx context.Context, logger *log.Logger, archive storage.TransferEventStore, events []*domain.TransferEvent) {
	if archive == nil || len(events) == 0 {
		return
	}
	if err := archive.InsertBulk(ctx, events); err != nil {
		logger.Printf("archive %d events: %v", len(events), err)
		observability.DefaultMetrics.DBQueryErrors.WithLabelValues("clickhouse", "insert_transfer_events").Inc()
	}
}
