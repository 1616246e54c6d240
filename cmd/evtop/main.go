package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/evtop/evtop/internal/api"
	"github.com/evtop/evtop/internal/config"
	"github.com/evtop/evtop/internal/engine"
	"github.com/evtop/evtop/internal/extract"
	"github.com/evtop/evtop/internal/filter"
	"github.com/evtop/evtop/internal/logger"
	"github.com/evtop/evtop/internal/mqtt"
	"github.com/evtop/evtop/internal/shutdown"
	"github.com/evtop/evtop/internal/table"
)

// Version is set at build time
var Version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Log.Level, cfg.Log.Format)
	log.Info().Str("version", Version).Msg("Starting evtop...")

	factory := extract.NewFactory()
	compiler := filter.NewCompiler(factory)
	eng := engine.New(logger.Get("engine"), cfg.Engine.QueueSize)

	output, err := table.ParseOutput(cfg.Engine.Output)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid output configuration")
	}

	for _, view := range cfg.Views {
		tbl, err := buildTable(cfg, view, output, factory, compiler, eng)
		if err != nil {
			log.Fatal().Err(err).Str("view", view.Name).Msg("Invalid view configuration")
		}
		eng.Register(view.Name, tbl)
	}

	if len(eng.Tables()) == 0 {
		log.Fatal().Msg("No views configured")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	coordinator := shutdown.New(30*time.Second, logger.Get("shutdown"))
	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		err := eng.Run(ctx)
		if err == context.Canceled {
			return nil
		}
		return err
	})

	if cfg.MQTT.Enabled {
		subscriber := mqtt.NewSubscriber(&mqtt.SubscriberConfig{
			Broker:   cfg.MQTT.Broker,
			Topic:    cfg.MQTT.Topic,
			ClientID: cfg.MQTT.ClientID,
			QoS:      byte(cfg.MQTT.QoS),
			Username: cfg.MQTT.Username,
			Password: cfg.MQTT.Password,
		}, eng, logger.Get("mqtt"))

		if err := subscriber.Start(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start MQTT subscriber")
		}

		coordinator.Register("mqtt", 10, func(context.Context) error {
			subscriber.Stop()
			return nil
		})
	}

	if cfg.Server.Enabled {
		server := api.NewServer(&api.ServerConfig{
			Host:         cfg.Server.Host,
			Port:         cfg.Server.Port,
			ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
			WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		}, eng, logger.Get("api"))

		group.Go(func() error {
			return server.Listen()
		})

		coordinator.Register("api", 20, server.Shutdown)
	}

	coordinator.Register("engine", 30, func(context.Context) error {
		cancel()
		return nil
	})

	// Block until a termination signal, then tear everything down.
	coordinator.Wait()
	cancel()

	if err := group.Wait(); err != nil && err != context.Canceled {
		log.Error().Err(err).Msg("Shutdown with error")
		os.Exit(1)
	}

	log.Info().Msg("Bye")
}

// buildTable turns one view definition into a configured table.
func buildTable(cfg *config.Config, view config.ViewConfig, output table.Output,
	factory *extract.Factory, compiler *filter.Compiler, eng *engine.Engine) (*table.Table, error) {

	mode, err := table.ParseMode(view.Mode)
	if err != nil {
		return nil, err
	}

	columns := make([]table.ColumnSpec, 0, len(view.Columns))
	for _, col := range view.Columns {
		aggr, err := table.ParseAggregation(col.Aggregation)
		if err != nil {
			return nil, err
		}
		mergeAggr, err := table.ParseAggregation(col.GroupByAggregation)
		if err != nil {
			return nil, err
		}

		columns = append(columns, table.ColumnSpec{
			Field:            col.Field,
			Name:             col.Name,
			Aggregation:      aggr,
			MergeAggregation: mergeAggr,
			IsKey:            col.IsKey,
			IsGroupByKey:     col.IsGroupByKey,
		})
	}

	tbl := table.New(table.Config{
		Mode:              mode,
		RefreshIntervalNS: uint64(cfg.Engine.RefreshIntervalMS) * uint64(time.Millisecond),
		Output:            output,
		JSONFirstRow:      uint32(cfg.Engine.JSONFirstRow),
		JSONLastRow:       uint32(cfg.Engine.JSONLastRow),
		Factory:           factory,
		Compiler:          compiler,
		Threads:           eng.Threads(),
		Logger:            logger.Get("table").With().Str("view", view.Name).Logger(),
	})

	if err := tbl.Configure(columns, view.Filter, cfg.Engine.UseDefaults, uint32(view.ViewDepth)); err != nil {
		return nil, err
	}

	if view.SortCol > 0 {
		if err := tbl.SetSortingCol(uint32(view.SortCol)); err != nil {
			return nil, err
		}
	}

	return tbl, nil
}
