// Package config holds the KGTorrent runtime configuration, populated from
// the environment.
package config

import (
	"time"

	"github.com/dee-me-tree-or-love/KGTorrent/src/internal/cmdutil"
)

// Configuration is everything KGTorrent needs to run: where the Meta Kaggle
// dump and the constraints file live, how to reach the database, where to
// archive downloaded notebooks, and which kernel languages to consider.
type Configuration struct {
	// StoreURL is a database URL of the form
	// mysql://user@host:3306/kgtorrent or postgres://user@host:5432/kgtorrent.
	StoreURL string `env:"KGTORRENT_STORE_URL,default=mysql://root@localhost:3306/kgtorrent"`
	// StorePassword is kept out of the URL so that the URL can be logged.
	StorePassword string `env:"KGTORRENT_STORE_PASSWORD"`

	// MetaKagglePath is the directory containing the Meta Kaggle CSV files.
	MetaKagglePath string `env:"KGTORRENT_META_KAGGLE_PATH,default=./data/meta_kaggle"`
	// ConstraintsPath is the CSV file describing foreign-key relationships
	// between the Meta Kaggle tables.
	ConstraintsPath string `env:"KGTORRENT_CONSTRAINTS_PATH,default=./data/fk_constraints_data.csv"`
	// ArchivePath is the directory that downloaded notebooks are written to.
	ArchivePath string `env:"KGTORRENT_ARCHIVE_PATH,default=./archive"`

	// Languages restricts which kernels are considered for download.
	Languages []string `env:"KGTORRENT_LANGUAGES,default=IPython Notebook HTML"`

	// HTTPTimeout bounds a single notebook download.
	HTTPTimeout time.Duration `env:"KGTORRENT_HTTP_TIMEOUT,default=1m"`
	// DownloadWorkers is the number of concurrent notebook downloads.
	DownloadWorkers int `env:"KGTORRENT_DOWNLOAD_WORKERS,default=4"`

	// KaggleUsername and KaggleKey authenticate against the Kaggle API for
	// the API download strategy.  The names match the Kaggle CLI's own
	// environment variables.
	KaggleUsername string `env:"KAGGLE_USERNAME"`
	KaggleKey      string `env:"KAGGLE_KEY"`
}

// FromEnv returns the configuration read from the environment.
func FromEnv() (*Configuration, error) {
	var cfg Configuration
	if err := cmdutil.Populate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Defaults returns the default configuration without consulting the
// environment.  Intended for tests.
func Defaults() *Configuration {
	cfg := &Configuration{}
	if err := cmdutil.PopulateDefaults(cfg); err != nil {
		// The tags are compile-time constants; failing to parse them is a
		// programming error.
		panic(err)
	}
	return cfg
}
