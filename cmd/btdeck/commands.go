package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/chaz8081/btdeck/internal/controller"
)

// command is one parsed input line.
type command struct {
	name string
	id   string
	rest string // everything after the id
}

// parseCommand splits "name [id [rest...]]". The rest is kept verbatim so
// device names may contain spaces.
func parseCommand(line string) command {
	line = strings.TrimSpace(line)
	name, tail, _ := strings.Cut(line, " ")
	tail = strings.TrimLeft(tail, " ")
	id, rest, _ := strings.Cut(tail, " ")
	return command{name: strings.ToLower(name), id: id, rest: rest}
}

const helpText = `Commands:
  list                   show known devices
  refresh                reload devices and battery levels
  scan                   discover nearby devices (runs in the background)
  toggle <id>            connect or disconnect a device
  rename <id> [name]     set a display name; omit the name to clear it
  notices                show notices
  dismiss <notice-id>    dismiss a notice
  quit                   exit`

// run executes one command. It returns true when the user asked to quit.
func run(ctx context.Context, ctrl *controller.Controller, cmd command, out io.Writer) bool {
	switch cmd.name {
	case "":
	case "help", "?":
		fmt.Fprintln(out, helpText)
	case "list", "ls":
		if ctrl.IsLoading() {
			fmt.Fprintln(out, "Loading...")
		}
		printDevices(out, ctrl)
	case "refresh":
		fmt.Fprintln(out, "Refreshing...")
		if err := ctrl.Refresh(ctx); err == nil {
			printDevices(out, ctrl)
		}
	case "scan":
		fmt.Fprintln(out, "Scanning for devices...")
		go func() {
			if err := ctrl.Scan(ctx); err == nil {
				fmt.Fprintf(out, "Scan complete, %d devices known.\n", len(ctrl.Devices()))
			}
		}()
	case "toggle":
		if cmd.id == "" {
			fmt.Fprintln(out, "usage: toggle <id>")
			break
		}
		_ = ctrl.ToggleConnection(ctx, cmd.id)
	case "rename":
		if cmd.id == "" {
			fmt.Fprintln(out, "usage: rename <id> [name]")
			break
		}
		_ = ctrl.Rename(ctx, cmd.id, cmd.rest)
	case "notices":
		printNotices(out, ctrl.Notices())
	case "dismiss":
		if !ctrl.Dismiss(cmd.id) {
			fmt.Fprintln(out, "no dismissible notice with that id")
		}
	case "quit", "exit", "q":
		return true
	default:
		fmt.Fprintf(out, "unknown command %q, try 'help'\n", cmd.name)
	}
	return false
}

// printDevices prints the device table followed by a connection summary.
func printDevices(out io.Writer, ctrl *controller.Controller) {
	devices := ctrl.Devices()
	if len(devices) == 0 {
		fmt.Fprintln(out, "No devices found.")
		return
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tTYPE\tSTATE\tBATTERY\tLAST SEEN")
	for _, d := range devices {
		state := "disconnected"
		if d.Connected {
			state = "connected"
		}
		battery := "-"
		if d.BatteryLevel != nil {
			battery = fmt.Sprintf("%d%%", *d.BatteryLevel)
		}
		seen := "-"
		if !d.LastSeen.IsZero() {
			seen = d.LastSeen.Format(time.TimeOnly)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", d.ID, d.DisplayName(), d.Type, state, battery, seen)
	}
	tw.Flush()

	connected, total := ctrl.ConnectedCount()
	fmt.Fprintf(out, "%d of %d devices connected\n", connected, total)
}

func printNotices(out io.Writer, notices []controller.Notice) {
	if len(notices) == 0 {
		fmt.Fprintln(out, "No notices.")
		return
	}
	for _, n := range notices {
		fmt.Fprintf(out, "%s  ", n.ID)
		printNoticeTo(out, n)
	}
}
