// palisade-agent runs the backend task agent: it accepts work dispatched by
// the cluster master, executes it on worker pools, and reports state back.
package main

import (
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/palisadedb/palisade/agent"
	"github.com/palisadedb/palisade/agent/client"
	"github.com/palisadedb/palisade/agent/fake"
	"github.com/palisadedb/palisade/common/stats"
	"github.com/palisadedb/palisade/downloader"
)

var (
	configFile  string
	host        string
	masterHost  string
	masterPort  int
	masterToken string
	logLevel    string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "palisade-agent",
		Short: "Backend task agent for a palisade cluster node",
		RunE:  run,
	}
	rootCmd.Flags().StringVar(&configFile, "config", "", "path to a JSON config file")
	rootCmd.Flags().StringVar(&host, "host", "localhost", "address this backend advertises")
	rootCmd.Flags().StringVar(&masterHost, "master_host", "", "master address, until the first heartbeat")
	rootCmd.Flags().IntVar(&masterPort, "master_port", 0, "master port, until the first heartbeat")
	rootCmd.Flags().StringVar(&masterToken, "master_token", "", "cluster token for peer downloads")
	rootCmd.Flags().StringVar(&logLevel, "log_level", "info", "debug, info, warn or error")

	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

func run(cmd *cobra.Command, args []string) error {
	level, err := log.ParseLevel(logLevel)
	if err != nil {
		return err
	}
	log.SetLevel(level)

	cfg := agent.DefaultConfig()
	if configFile != "" {
		if cfg, err = agent.LoadConfig(configFile); err != nil {
			return err
		}
	}

	// Child-process signals are the Go runtime's business; centralise the
	// rest here rather than masking per worker.
	signal.Ignore(syscall.SIGHUP, syscall.SIGPIPE)

	stat := stats.DefaultStatsReceiver()
	a := buildAgent(cfg, stat)
	if masterPort != 0 {
		a.SetMasterInfo(agent.MasterInfo{Host: masterHost, Port: masterPort, Token: masterToken})
	}
	a.Start()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Infof("received %s, draining", sig)
	a.Stop()
	return nil
}

func buildAgent(cfg *agent.Config, stat stats.StatsReceiver) *agent.Agent {
	// The storage engine binding is in-memory until the engine daemon
	// grows an IPC surface; everything above it is production wiring.
	log.Warn("running with the in-memory storage engine")
	var a *agent.Agent
	env := agent.Env{
		Engine:     fake.NewEngine(),
		Downloader: downloader.New(stat),
		NewPusher:  fake.NewPusher,
		NewPeer:    client.NewPeer,
		Stats:      stat,
	}
	env.Master = client.NewMaster(func() agent.MasterInfo { return a.Master() })
	a = agent.NewAgent(cfg, host, env)
	return a
}
