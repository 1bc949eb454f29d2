package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/oncobeam/rtflow/anonymize"
	"github.com/oncobeam/rtflow/client"
	"github.com/oncobeam/rtflow/config"
	"github.com/oncobeam/rtflow/scp"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:           "rtflow",
	Short:         "Exchange radiotherapy DICOM data between a planning system and the filesystem",
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load()
		if err != nil {
			return err
		}
		cfg = loaded
		setupLogger(cfg.Logger)
		return nil
	},
}

func setupLogger(lc config.LoggerConfig) {
	var level slog.Level
	switch strings.ToLower(lc.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.EqualFold(lc.Format, "text") {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// connectRemote opens an association to the configured planning node.
func connectRemote() (*client.Association, error) {
	address := fmt.Sprintf("%s:%d", cfg.Remote.Host, cfg.Remote.Port)
	return client.Connect(address, client.Config{
		CallingAETitle: cfg.Local.AETitle,
		CalledAETitle:  cfg.Remote.AETitle,
		ReadTimeout:    cfg.Remote.Timeout,
		WriteTimeout:   cfg.Remote.Timeout,
		Logger:         slog.Default(),
	})
}

// sessionConfig maps the loaded configuration onto a storage session.
func sessionConfig() (scp.Config, error) {
	sc := scp.Config{
		ExportRoot:    cfg.Export.Root,
		PlanLabel:     cfg.Export.PlanLabel,
		ApprovedOnly:  cfg.Export.ApprovedOnly,
		TreeDump:      cfg.Export.TreeDump,
		Anonymize:     cfg.Anonymize.Enabled,
		AnonymizeID:   cfg.Anonymize.PatientID,
		AnonymizeName: cfg.Anonymize.PatientName,
	}
	if cfg.Export.SecurityProfile != "" {
		profile, err := anonymize.LoadProfile(cfg.Export.SecurityProfile)
		if err != nil {
			return sc, err
		}
		sc.SecurityProfile = profile
	}
	return sc, nil
}
