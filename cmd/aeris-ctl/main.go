package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	cli "github.com/spf13/pflag"

	"aeris/internal/ipc"
	"aeris/internal/journal"
)

func main() {
	socket := cli.StringP("socket", "s", "/tmp/aeris.sock", "Daemon control socket")
	limit := cli.IntP("limit", "n", 20, "Number of turns for history")
	cli.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: aeris-ctl [-s socket] trigger|history [-n 20]")
		cli.PrintDefaults()
	}
	cli.Parse()

	if v := os.Getenv("AERIS_IPC_SOCKET"); v != "" && !cli.CommandLine.Changed("socket") {
		*socket = v
	}

	cmd := cli.Arg(0)
	if cmd == "" {
		cmd = ipc.CmdTrigger
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, err := ipc.Send(ctx, *socket, ipc.Request{Cmd: cmd, Limit: *limit})
	if err != nil {
		fmt.Fprintln(os.Stderr, "aeris:", err)
		os.Exit(1)
	}

	if cmd == ipc.CmdHistory {
		var entries []journal.Entry
		if err := json.Unmarshal(resp.Data, &entries); err != nil {
			fmt.Fprintln(os.Stderr, "bad history payload:", err)
			os.Exit(1)
		}
		for _, e := range entries {
			line := fmt.Sprintf("%s  %-9s %-28s %q", e.At.Local().Format("2006-01-02 15:04:05"), e.Command, e.Device, e.Transcript)
			if e.Error != "" {
				line += "  ! " + e.Error
			} else if e.Reply != "" {
				line += " -> " + e.Reply
			}
			fmt.Println(line)
		}
	}
}
