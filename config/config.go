// Package config loads runtime configuration from environment variables with
// defaults, plus the on-disk machine-name substitution tables.
package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Local     LocalConfig
	Remote    RemoteConfig
	Export    ExportConfig
	Anonymize AnonymizeConfig
	Logger    LoggerConfig
}

// LocalConfig describes this node's DICOM identity and listener.
type LocalConfig struct {
	AETitle string
	Host    string
	Port    int
}

// RemoteConfig describes the planning PACS node we query and send to.
type RemoteConfig struct {
	AETitle string
	Host    string
	Port    int
	Timeout time.Duration
}

// ExportConfig controls where received trees land and which plans qualify.
type ExportConfig struct {
	Root            string
	PlanLabel       string // when set, only plans with this label are exported
	ApprovedOnly    bool
	TreeDump        bool
	MachineTables   string // path to the YAML machine substitution tables
	StatusFile      string // send-side resume log
	SecurityProfile string // path to the anonymization security profile
}

// AnonymizeConfig controls de-identification during receive.
type AnonymizeConfig struct {
	Enabled     bool
	PatientID   string
	PatientName string
}

type LoggerConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("LOCAL_AE_TITLE", "RTFLOW")
	v.SetDefault("LOCAL_HOST", "0.0.0.0")
	v.SetDefault("LOCAL_PORT", 11112)
	v.SetDefault("REMOTE_AE_TITLE", "PACS")
	v.SetDefault("REMOTE_HOST", "localhost")
	v.SetDefault("REMOTE_PORT", 104)
	v.SetDefault("REMOTE_TIMEOUT", "60s")
	v.SetDefault("EXPORT_ROOT", "./export")
	v.SetDefault("EXPORT_PLAN_LABEL", "")
	v.SetDefault("EXPORT_APPROVED_ONLY", false)
	v.SetDefault("EXPORT_TREE_DUMP", false)
	v.SetDefault("EXPORT_MACHINE_TABLES", "")
	v.SetDefault("EXPORT_STATUS_FILE", "")
	v.SetDefault("EXPORT_SECURITY_PROFILE", "")
	v.SetDefault("ANONYMIZE_ENABLED", false)
	v.SetDefault("ANONYMIZE_PATIENT_ID", "")
	v.SetDefault("ANONYMIZE_PATIENT_NAME", "")
	v.SetDefault("LOGGER_LEVEL", "info")
	v.SetDefault("LOGGER_FORMAT", "json")

	// Env
	v.AutomaticEnv()

	timeout, err := time.ParseDuration(v.GetString("REMOTE_TIMEOUT"))
	if err != nil {
		timeout = 60 * time.Second
	}

	cfg := &Config{
		Local: LocalConfig{
			AETitle: v.GetString("LOCAL_AE_TITLE"),
			Host:    v.GetString("LOCAL_HOST"),
			Port:    v.GetInt("LOCAL_PORT"),
		},
		Remote: RemoteConfig{
			AETitle: v.GetString("REMOTE_AE_TITLE"),
			Host:    v.GetString("REMOTE_HOST"),
			Port:    v.GetInt("REMOTE_PORT"),
			Timeout: timeout,
		},
		Export: ExportConfig{
			Root:            v.GetString("EXPORT_ROOT"),
			PlanLabel:       v.GetString("EXPORT_PLAN_LABEL"),
			ApprovedOnly:    v.GetBool("EXPORT_APPROVED_ONLY"),
			TreeDump:        v.GetBool("EXPORT_TREE_DUMP"),
			MachineTables:   v.GetString("EXPORT_MACHINE_TABLES"),
			StatusFile:      v.GetString("EXPORT_STATUS_FILE"),
			SecurityProfile: v.GetString("EXPORT_SECURITY_PROFILE"),
		},
		Anonymize: AnonymizeConfig{
			Enabled:     v.GetBool("ANONYMIZE_ENABLED"),
			PatientID:   v.GetString("ANONYMIZE_PATIENT_ID"),
			PatientName: v.GetString("ANONYMIZE_PATIENT_NAME"),
		},
		Logger: LoggerConfig{
			Level:  v.GetString("LOGGER_LEVEL"),
			Format: v.GetString("LOGGER_FORMAT"),
		},
	}

	return cfg, nil
}
