package cmd

import (
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/harvestsmart/harvestsmart/internal/server"
	"github.com/harvestsmart/harvestsmart/internal/utils"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve stored reports and metrics over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, false)
		if err != nil {
			return err
		}
		defer a.close()

		if err := a.Metrics.WatchReports(a.Controller); err != nil {
			return err
		}

		listenAddr, _ := cmd.Flags().GetString("listen")
		srv := &server.Server{
			Controller: a.Controller,
			Renderer:   a.Renderer,
			Metrics:    a.Metrics.Handler(),
			Username:   viper.GetString("server.username"),
			Password:   viper.GetString("server.password"),
		}
		if srv.Username == "" && srv.Password == "" {
			utils.Log.Warn("server.username and server.password are empty, reports are served without authentication")
		}

		ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
		defer stop()

		utils.Log.Infof("Listening on %s", listenAddr)
		if err := srv.Start(ctx, listenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("listen", "127.0.0.1:8080", "HTTP listen address")
}
