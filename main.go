package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/synctools/tracksync/config"
	"github.com/synctools/tracksync/logger"
	"github.com/synctools/tracksync/rest"
	"github.com/synctools/tracksync/syncer"
	"github.com/synctools/tracksync/util"
	"go.uber.org/zap"
)

type cli struct {
	cfg config.Config
}

func setupFlags(cmd *cobra.Command) error {
	cmd.Flags().String("config", "", "path to configuration json file")
	cmd.Flags().Bool("dryrun", false, "just dump the tickets without syncing")
	cmd.Flags().String("csv", "", "store the sync status to the given csv file")
	cmd.Flags().String("log-file", "", "write logs additionally to the given file")
	cmd.Flags().Bool("debug", false, "enable debug logging")
	cmd.Flags().Int("sync-interval", 0, "re-run the sync every given seconds, 0 runs once and exits")
	cmd.Flags().Int("http-port", 8080, "http port for the report endpoints in periodic mode")
	return viper.BindPFlags(cmd.Flags())
}

func (c *cli) setupConfig(cmd *cobra.Command, args []string) error {
	// tokens are commonly kept out of the config file
	godotenv.Load()
	viper.SetEnvPrefix("TRACKSYNC")
	viper.AutomaticEnv()

	configFile := viper.GetString("config")
	if configFile == "" {
		return fmt.Errorf("missing configuration json file, use --config")
	}
	viper.SetConfigFile(configFile)
	viper.SetConfigType("json")
	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("could not read configuration file '%s': %w", configFile, err)
	}
	if err := viper.Unmarshal(&c.cfg); err != nil {
		return fmt.Errorf("invalid configuration file '%s': %w", configFile, err)
	}

	c.cfg.DryRun = viper.GetBool("dryrun")
	c.cfg.CsvFile = viper.GetString("csv")
	c.cfg.LogFile = viper.GetString("log-file")
	c.cfg.Debug = viper.GetBool("debug")
	c.cfg.SyncInterval = viper.GetInt("sync-interval")
	c.cfg.HttpPort = viper.GetInt("http-port")

	if err := logger.Configure(c.cfg.Debug, c.cfg.LogFile); err != nil {
		return err
	}
	return c.cfg.Validate()
}

func (c *cli) run(cmd *cobra.Command, args []string) error {
	engine, err := syncer.FromConfig(&c.cfg)
	if err != nil {
		return err
	}
	if c.cfg.SyncInterval <= 0 {
		return c.runOnce(engine, nil)
	}
	return c.runPeriodic(engine)
}

func (c *cli) runOnce(engine *syncer.Engine, server *rest.Server) error {
	report, err := engine.Run(context.Background())
	if err != nil {
		return err
	}
	if server != nil {
		server.Publish(report)
	}
	if c.cfg.CsvFile != "" {
		if err := report.WriteCSV(c.cfg.CsvFile); err != nil {
			return fmt.Errorf("failed to write csv report: %w", err)
		}
	}
	return nil
}

func (c *cli) runPeriodic(engine *syncer.Engine) error {
	server, err := rest.NewServer(c.cfg.HttpPort)
	if err != nil {
		return err
	}
	go func() {
		if err := server.Start(); err != nil {
			logger.Error("http server stopped", zap.Error(err))
		}
	}()

	// the first run must finish before the ticker starts: engine runs mutate
	// tickets remotely and are not safe to overlap
	if err := c.runOnce(engine, server); err != nil {
		logger.Error("sync run failed", zap.Error(err))
	}

	stop := make(chan struct{})
	var wg sync.WaitGroup
	worker := util.NewTickWorker("sync", time.Duration(c.cfg.SyncInterval)*time.Second, stop, func() {
		if err := c.runOnce(engine, server); err != nil {
			logger.Error("sync run failed", zap.Error(err))
		}
	}, &wg)
	worker.Start()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	worker.Stop()
	wg.Wait()
	return server.Stop()
}

func main() {
	cli := &cli{}

	cmd := &cobra.Command{
		Use:     "tracksync",
		Short:   "sync tickets between tracking systems such as GitHub, GitLab, JIRA and IBM RTC",
		PreRunE: cli.setupConfig,
		RunE:    cli.run,
	}

	if err := setupFlags(cmd); err != nil {
		log.Fatal(err)
	}

	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
