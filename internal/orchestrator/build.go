package orchestrator

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"nathanbeddoewebdev/mcfleet/internal/auth"
	"nathanbeddoewebdev/mcfleet/internal/compute"
	"nathanbeddoewebdev/mcfleet/internal/config"
	"nathanbeddoewebdev/mcfleet/internal/crafty"
	"nathanbeddoewebdev/mcfleet/internal/database"
	"nathanbeddoewebdev/mcfleet/internal/fleet"
	"nathanbeddoewebdev/mcfleet/internal/history"
)

// Build constructs a Service from validated configuration. Tokens are
// resolved from the environment first and the keychain second.
func Build(cfg *config.Config, store auth.Store, log logrus.FieldLogger) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("orchestrator: invalid config: %w", err)
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("orchestrator: %w", err)
	}
	token, _, err := auth.Resolve(store, auth.TokenCrafty)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: %w", err)
	}
	clientOpts := []crafty.Option{crafty.WithLogger(log), crafty.WithTimeLocation(loc)}
	if cfg.CraftyInsecureTLS {
		clientOpts = append(clientOpts, crafty.WithInsecureTLS())
	}
	client, err := crafty.NewClient(cfg.CraftyURL, token, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: %w", err)
	}
	dialer := crafty.NewDialer(client)

	compute.RegisterDefaults()
	provider, err := compute.Get(cfg.Provider(), compute.Settings{
		GCEProject:         cfg.GCEProject,
		GCEZone:            cfg.GCEZone,
		GCEInstance:        cfg.GCEInstance,
		GCECredentialsFile: cfg.GCECredentialsFile,
		HetznerServerID:    cfg.HetznerServerID,
	}, store)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: %w", err)
	}

	var repo history.Repository
	path, err := database.Resolve(cfg.DatabasePath)
	if err == nil {
		repo, err = history.OpenAt(path)
	}
	if err != nil {
		log.WithError(err).Warn("transition history disabled")
		repo = nil
	}

	svc := New(Deps{
		Source:  client,
		Dialer:  fleet.CraftyStreams(dialer),
		Compute: provider,
		History: repo,
		Log:     log,
	}, Options{
		IdleThreshold:   cfg.IdleThresholdDuration(),
		RefreshInterval: cfg.RefreshIntervalDuration(),
		StartTimeout:    cfg.StartTimeoutDuration(),
		StopTimeout:     cfg.StopTimeoutDuration(),
	})
	client.SetSnapshotSink(svc.Registry().ApplySnapshot)
	return svc, nil
}
