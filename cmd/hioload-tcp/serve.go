// File: cmd/hioload-tcp/serve.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package main

import (
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/momentics/hioload-tcp/api"
	"github.com/momentics/hioload-tcp/server"
	"github.com/momentics/hioload-tcp/waitqueue"
)

var clog = logger.GetLogger("cli")

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Listen for record-sending peers and echo every record back to all of them",
	Long: `Start the broadcast endpoint: accept up to max-clients connections, pull
one fixed-size record per peer per cycle, queue the records, and have a
consumer goroutine broadcast each queued record back to every connected
peer. A peer that disconnects mid-cycle is reported but does not stop
the process.`,
	PreRunE: processConfig,
	RunE:    runServe,
}

func init() {
	key := "port"
	serveCmd.PersistentFlags().Uint16(key, 9000, "port to listen on")
	key = "max-clients"
	serveCmd.PersistentFlags().Int(key, server.DefaultMaxClients, "stop accepting after this many clients")
	key = "backlog"
	serveCmd.PersistentFlags().Int(key, server.DefaultBacklog, "listen(2) backlog")
	key = "record-size"
	serveCmd.PersistentFlags().Int(key, 64, "fixed record size in bytes")
	key = "recv-timeout"
	serveCmd.PersistentFlags().Duration(key, 2*time.Second, "deadline for pulling one record from every peer")
	key = "send-timeout"
	serveCmd.PersistentFlags().Duration(key, 2*time.Second, "deadline for broadcasting one record")
	key = "metrics-addr"
	serveCmd.PersistentFlags().String(key, "", "optional address serving Prometheus metrics on /metrics")
}

func runServe(_ *cobra.Command, _ []string) error {
	recordSize := viper.GetInt("record-size")
	if recordSize <= 0 {
		return errors.Errorf("invalid record size %d", recordSize)
	}
	recvTimeout := viper.GetDuration("recv-timeout")
	sendTimeout := viper.GetDuration("send-timeout")

	if addr := viper.GetString("metrics-addr"); addr != "" {
		mux := http.NewServeMux()
		mux.HandleFunc("/metrics", func(w http.ResponseWriter, _ *http.Request) {
			metrics.WritePrometheus(w, true)
		})
		go func() {
			if err := http.ListenAndServe(addr, mux); err != nil {
				clog.Errorf("metrics endpoint: %v", err)
			}
		}()
		clog.Infof("metrics on http://%s/metrics", addr)
	}

	s := server.New(
		server.WithMaxClients(viper.GetInt("max-clients")),
		server.WithBacklog(viper.GetInt("backlog")),
	)
	if err := s.Listen(uint16(viper.GetUint("port"))); err != nil {
		return err
	}

	// Received records flow through the wait queue to a consumer
	// goroutine that broadcasts them back; a nil record tells the
	// consumer to stop.
	q := waitqueue.New[[]byte]()
	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		for {
			q.WaitForSize(1)
			rec, ok := q.FrontAndPop()
			if !ok {
				continue
			}
			if rec == nil {
				return
			}
			if err := s.Send(rec, sendTimeout); err != nil {
				clog.Errorf("broadcast: %v", err)
			}
		}
	}()
	stopConsumer := func() {
		q.Push(nil)
		<-consumerDone
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	clog.Infof("serving %d-byte records on :%d", recordSize, s.Port())
	for {
		select {
		case <-sig:
			clog.Infof("shutting down")
			stopConsumer()
			return s.Close()
		default:
		}

		if s.ClientCount() == 0 {
			if !s.Accepting() {
				if err := s.AcceptErr(); err != nil {
					stopConsumer()
					_ = s.Close()
					return err
				}
			}
			time.Sleep(50 * time.Millisecond)
			continue
		}

		recs, err := s.RecvEach(recordSize, recvTimeout)
		switch {
		case err == nil:
			for _, rec := range recs {
				q.Push(rec)
			}
		case errors.Is(err, api.ErrTimedOut):
			// Nothing arrived this cycle.
		case errors.Is(err, api.ErrPeerClosed), errors.Is(err, api.ErrNoPeers):
			clog.Warningf("recv cycle: %v", err)
			time.Sleep(50 * time.Millisecond)
		default:
			stopConsumer()
			_ = s.Close()
			return err
		}
	}
}
