// File: cmd/hioload-tcp/send.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package main

import (
	"bytes"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/momentics/hioload-tcp/client"
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Connect to a serve endpoint and exchange fixed-size records",
	Long: `Connect to a running serve endpoint, send count records of record-size
bytes and, unless disabled, read back the broadcast echo of each one.
With several senders connected the echoes interleave across peers, so
await-echo only makes sense for a single sender.`,
	PreRunE: processConfig,
	RunE:    runSend,
}

func init() {
	key := "host"
	sendCmd.PersistentFlags().String(key, "127.0.0.1", "host to connect to")
	key = "port"
	sendCmd.PersistentFlags().Uint16(key, 9000, "port to connect to")
	key = "record-size"
	sendCmd.PersistentFlags().Int(key, 64, "fixed record size in bytes")
	key = "count"
	sendCmd.PersistentFlags().Int(key, 10, "how many records to send")
	key = "interval"
	sendCmd.PersistentFlags().Duration(key, 100*time.Millisecond, "pause between records")
	key = "timeout"
	sendCmd.PersistentFlags().Duration(key, 2*time.Second, "deadline for connect and for each record")
	key = "await-echo"
	sendCmd.PersistentFlags().Bool(key, true, "read back the echoed record after each send")
}

func runSend(_ *cobra.Command, _ []string) error {
	recordSize := viper.GetInt("record-size")
	if recordSize <= 0 {
		return errors.Errorf("invalid record size %d", recordSize)
	}
	count := viper.GetInt("count")
	interval := viper.GetDuration("interval")
	timeout := viper.GetDuration("timeout")
	awaitEcho := viper.GetBool("await-echo")

	c := client.New()
	if err := c.Connect(viper.GetString("host"), uint16(viper.GetUint("port")), timeout); err != nil {
		return err
	}
	defer c.Close()

	for i := 0; i < count; i++ {
		rec := make([]byte, recordSize)
		for j := range rec {
			rec[j] = byte(i + 1)
		}
		if err := c.Send(rec, timeout); err != nil {
			return errors.Wrapf(err, "record %d of %d", i+1, count)
		}
		if awaitEcho {
			back := make([]byte, recordSize)
			if err := c.Recv(back, timeout); err != nil {
				return errors.Wrapf(err, "echo of record %d of %d", i+1, count)
			}
			if !bytes.Equal(back, rec) {
				return errors.Errorf("echo of record %d differs from the bytes sent", i+1)
			}
		}
		clog.Infof("record %d/%d done", i+1, count)
		if interval > 0 && i+1 < count {
			time.Sleep(interval)
		}
	}
	return nil
}
