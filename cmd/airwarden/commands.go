package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/rodaine/table"
	"github.com/urfave/cli/v2"

	"github.com/lcalzada-xor/airwarden/internal/adapters/process"
	"github.com/lcalzada-xor/airwarden/internal/adapters/sniffer/driver"
	"github.com/lcalzada-xor/airwarden/internal/adapters/storage"
	"github.com/lcalzada-xor/airwarden/internal/config"
	"github.com/lcalzada-xor/airwarden/internal/core/domain"
	"github.com/lcalzada-xor/airwarden/internal/core/services/cards"
	"github.com/lcalzada-xor/airwarden/internal/core/services/queue"
	"github.com/lcalzada-xor/airwarden/internal/core/services/serial"
)

const timeLayout = "2006-01-02 15:04:05"

func newTable(header color.Attribute, columns ...interface{}) table.Table {
	tbl := table.New(columns...)
	tbl.WithHeaderFormatter(color.New(header, color.FgHiWhite).SprintfFunc())
	tbl.WithFirstColumnFormatter(color.New(color.FgYellow).SprintfFunc())
	return tbl
}

func openStore(c *cli.Context) (*config.Config, *storage.SQLiteAdapter, error) {
	cfg, err := config.FromContext(c)
	if err != nil {
		return nil, nil, err
	}
	setupLogging(cfg.Debug)
	if err := cfg.EnsureDirs(); err != nil {
		return nil, nil, err
	}
	store, err := storage.NewSQLiteAdapter(cfg.DBPath, serial.NewGenerator())
	if err != nil {
		return nil, nil, err
	}
	return cfg, store, nil
}

func newQueue(cfg *config.Config, store *storage.SQLiteAdapter) *queue.Service {
	return queue.NewService(store, serial.NewGenerator(), queue.Config{
		Cooldown:        cfg.Attack.Cooldown,
		CandidateWindow: cfg.Attack.CandidateWindow,
		MaxRetries:      cfg.Attack.MaxRetries,
	})
}

func cardsCommand() *cli.Command {
	return &cli.Command{
		Name:  "cards",
		Usage: "List wireless adapters and the roles they would be given",
		Action: func(c *cli.Context) error {
			cfg, err := config.FromContext(c)
			if err != nil {
				return err
			}
			setupLogging(cfg.Debug)

			launcher := process.NewLauncher()
			mgr := cards.NewManager(driver.New(launcher, cfg.Timeouts.MonitorCommand))
			if _, err := mgr.DetectCards(c.Context); err != nil {
				return err
			}
			if cfg.AutoAssign {
				mgr.AutoAssignRoles()
			}

			list := mgr.Cards()
			if len(list) == 0 {
				color.Yellow("No wireless cards detected")
				return nil
			}
			tbl := newTable(color.BgHiBlue, "INTERFACE", "PHY", "DRIVER", "CHIPSET", "MAC", "ROLE", "STATE")
			for _, card := range list {
				tbl.AddRow(card.Interface, card.Phy, card.Driver, card.Chipset, card.MAC, card.Role, card.State)
			}
			tbl.Print()
			return nil
		},
	}
}

func queueCommand() *cli.Command {
	return &cli.Command{
		Name:  "queue",
		Usage: "Inspect or extend the attack queue",
		Subcommands: []*cli.Command{
			{
				Name:      "add",
				Usage:     "Queue an attack against a BSSID",
				ArgsUsage: "BSSID",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "type", Aliases: []string{"t"}, Value: string(domain.AttackHandshake), Usage: "handshake_capture, wps_pixie, wps_bruteforce or wps_nullpin"},
					&cli.IntFlag{Name: "priority", Aliases: []string{"p"}, Value: domain.DefaultPriority, Usage: "Higher runs first"},
					&cli.StringFlag{Name: "ssid", Usage: "Network name, when known"},
					&cli.IntFlag{Name: "channel", Usage: "Channel, when known"},
					&cli.IntFlag{Name: "retries", Usage: "Retry budget (0 uses the configured default)"},
				},
				Action: queueAdd,
			},
			{
				Name:  "list",
				Usage: "List queued attacks",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "status", Aliases: []string{"s"}, Usage: "Filter by pending, in_progress, completed or failed"},
					&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Value: 50},
				},
				Action: queueList,
			},
		},
	}
}

func queueAdd(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("queue add needs exactly one BSSID", 2)
	}
	cfg, store, err := openStore(c)
	if err != nil {
		return err
	}
	defer store.Close()

	item, err := newQueue(cfg, store).Add(c.Context, domain.AttackQueueItem{
		BSSID:      c.Args().First(),
		SSID:       c.String("ssid"),
		Channel:    c.Int("channel"),
		Type:       domain.AttackType(c.String("type")),
		Priority:   c.Int("priority"),
		MaxRetries: c.Int("retries"),
	})
	if err != nil {
		return err
	}
	fmt.Printf("%s #%d %s %s (priority %d)\n", color.GreenString("queued"), item.ID, item.BSSID, item.Type, item.Priority)
	return nil
}

func queueList(c *cli.Context) error {
	status := domain.AttackStatus(c.String("status"))
	switch status {
	case "", domain.StatusPending, domain.StatusInProgress, domain.StatusCompleted, domain.StatusFailed:
	default:
		return cli.Exit(fmt.Sprintf("unknown status %q", status), 2)
	}

	cfg, store, err := openStore(c)
	if err != nil {
		return err
	}
	defer store.Close()

	items, err := newQueue(cfg, store).List(c.Context, status, c.Int("limit"))
	if err != nil {
		return err
	}
	tbl := newTable(color.BgHiCyan, "ID", "BSSID", "SSID", "TYPE", "PRIO", "STATUS", "RETRIES", "ADDED", "RESULT")
	for _, item := range items {
		tbl.AddRow(item.ID, item.BSSID, item.SSID, item.Type, item.Priority, statusColor(item.Status),
			fmt.Sprintf("%d/%d", item.RetryCount, item.MaxRetries), item.AddedAt.Local().Format(timeLayout), item.Result)
	}
	tbl.Print()
	return nil
}

func statusColor(s domain.AttackStatus) string {
	switch s {
	case domain.StatusCompleted:
		return color.GreenString(string(s))
	case domain.StatusFailed:
		return color.RedString(string(s))
	case domain.StatusInProgress:
		return color.CyanString(string(s))
	}
	return string(s)
}

func sessionsCommand() *cli.Command {
	return &cli.Command{
		Name:  "sessions",
		Usage: "List scan sessions",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Value: 20},
		},
		Action: func(c *cli.Context) error {
			_, store, err := openStore(c)
			if err != nil {
				return err
			}
			defer store.Close()

			sessions, err := store.ListSessions(c.Context, c.Int("limit"))
			if err != nil {
				return err
			}
			tbl := newTable(color.BgHiMagenta, "ID", "STATUS", "START", "DURATION", "NETWORKS", "CLIENTS", "HANDSHAKES", "INTERFACE")
			for _, s := range sessions {
				tbl.AddRow(s.ID, s.Status, s.StartTime.Local().Format(timeLayout), sessionDuration(s),
					s.NetworksFound, s.ClientsFound, s.HandshakesCaptured, s.Interface)
			}
			tbl.Print()
			return nil
		},
	}
}

func sessionDuration(s domain.ScanSession) string {
	end := time.Now()
	if s.EndTime != nil {
		end = *s.EndTime
	}
	return end.Sub(s.StartTime).Round(time.Second).String()
}
