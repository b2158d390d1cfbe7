package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/exec"

	"github.com/harvestsmart/harvestsmart/pkg/store"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// storeCmd represents the store command
var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Interact with the local report store",
}

var storeKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List stored keys",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, false)
		if err != nil {
			return err
		}
		defer a.close()

		prefix, _ := cmd.Flags().GetString("prefix")
		keys, err := a.Store.Keys(commandContext(cmd), prefix)
		if err != nil {
			return err
		}
		for _, k := range keys {
			fmt.Println(k)
		}
		return nil
	},
}

var storeClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete everything in the store",
	RunE: func(cmd *cobra.Command, args []string) error {
		yes, _ := cmd.Flags().GetBool("yes")
		if !yes {
			return errors.New("this deletes every stored report and the session, rerun with --yes to confirm")
		}
		a, err := newApp(cmd, true)
		if err != nil {
			return err
		}
		defer a.close()

		if err := a.Store.Clear(commandContext(cmd)); err != nil {
			return err
		}
		fmt.Println("Store cleared.")
		return nil
	},
}

var storeShellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Start an interactive sqlite3 shell on the store",
	RunE: func(cmd *cobra.Command, args []string) error {
		if backend := viper.GetString("store.backend"); backend != "" && backend != store.BackendSQLite {
			return fmt.Errorf("shell needs the sqlite backend, got %q", backend)
		}
		a, err := newApp(cmd, false)
		if err != nil {
			return err
		}
		storePath := a.StorePath
		a.close()

		if _, err := os.Stat(storePath); os.IsNotExist(err) {
			return fmt.Errorf("store file not found: %s", storePath)
		}

		// Check if sqlite3 is in PATH
		sqlitePath, err := exec.LookPath("sqlite3")
		if err != nil {
			return fmt.Errorf("sqlite3 command not found in your PATH. Please install it to use the store shell")
		}

		fmt.Println("--> Store schema:")
		schemaCmd := exec.Command(sqlitePath, storePath, ".schema")
		schemaCmd.Stdout = os.Stdout
		schemaCmd.Stderr = os.Stderr
		if err := schemaCmd.Run(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: couldn't retrieve schema: %v\n", err)
		}
		fmt.Println("\n--> Starting interactive shell... (Ctrl+D to exit)")

		c := exec.Command(sqlitePath, storePath)
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		return c.Run()
	},
}

func init() {
	rootCmd.AddCommand(storeCmd)
	storeCmd.AddCommand(storeKeysCmd, storeClearCmd, storeShellCmd)
	storeKeysCmd.Flags().String("prefix", "", "Only list keys starting with this prefix")
	storeClearCmd.Flags().Bool("yes", false, "Confirm wiping the store")
}
