package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/harvestsmart/harvestsmart/internal/utils"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

var cfgFile string

const (
	LOGO = `
	 _                               _                           _
	| |__   __ _ _ ____   _____  ___| |_ ___ _ __ ___   __ _ _ _| |_
	| '_ \ / _' | '__\ \ / / _ \/ __| __/ __| '_ ' _ \ / _' | '_|  _|
	| | | | (_| | |   \ V /  __/\__ \ |_\__ \ | | | | | (_| | | | |_
	|_| |_|\__,_|_|    \_/ \___||___/\__|___/_| |_| |_|\__,_|_|  \__|

`
	Version = "1.0.0"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "harvestsmart",
	Short: "Palm oil ripeness detection and daily harvest reports.",
	Long: LOGO + `harvestsmart sends fresh fruit bunch photos to the detection service, keeps a
running report for each day and files it with the collection center once the day is done.`,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.harvestsmart.yaml)")

	// Global flags
	rootCmd.PersistentFlags().StringP("proxy", "", "", "HTTP Proxy (Useful for debugging. Example: http://127.0.0.1:8080)")
	rootCmd.PersistentFlags().Bool("insecure", false, "Skip TLS certificate verification (only for debugging through an intercepting proxy)")
	rootCmd.PersistentFlags().StringP("loglevel", "l", "info", "Set log level. Available: debug, info, warn, error, fatal")
	rootCmd.PersistentFlags().String("store", "", "Store file (default is ~/.config/harvestsmart/harvestsmart.sqlite)")
	viper.BindPFlag("store.path", rootCmd.PersistentFlags().Lookup("store"))
}

func setDefaults() {
	viper.SetDefault("api.url", "http://10.0.2.2:5001")
	viper.SetDefault("api.timeout", "30s")
	viper.SetDefault("api.retries", 2)
	viper.SetDefault("detection.path", "/detect")
	viper.SetDefault("collection.path", "/reports")
	// A retried submission may be filed twice by the collection center.
	viper.SetDefault("collection.retries", 0)
	viper.SetDefault("store.backend", "sqlite")
	viper.SetDefault("store.path", "")
	viper.SetDefault("report.timezone", "Local")
	viper.SetDefault("report.display_limit", 100)
	viper.SetDefault("report.refresh", "60s")
	viper.SetDefault("sentry.dsn", "")
	viper.SetDefault("server.username", "")
	viper.SetDefault("server.password", "")
}

// initConfig reads in .env, the config file and ENV variables if set.
func initConfig() {
	// A missing .env is the normal case.
	_ = godotenv.Load()

	setDefaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		viper.AddConfigPath(home)
		viper.SetConfigName(".harvestsmart")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("HARVESTSMART")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; create it with defaults.
			home, _ := homedir.Dir()
			configPath := home + "/.harvestsmart.yaml"
			if err := viper.SafeWriteConfigAs(configPath); err != nil {
				utils.Log.Debugf("Error creating config file: %s", err)
			}
		} else {
			utils.Log.Warnf("Error reading config file: %s", err)
		}
	}

	// Init log library
	levelString, _ := rootCmd.PersistentFlags().GetString("loglevel")
	if err := utils.SetLogLevel(levelString); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
