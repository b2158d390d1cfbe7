package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store the identity token reports are filed under",
	RunE: func(cmd *cobra.Command, args []string) error {
		token, _ := cmd.Flags().GetString("token")
		token = strings.TrimSpace(token)
		if token == "" {
			return errors.New("--token is required")
		}

		a, err := newApp(cmd, true)
		if err != nil {
			return err
		}
		defer a.close()

		claims, err := a.Session.Login(commandContext(cmd), token)
		if err != nil {
			return err
		}
		fmt.Printf("Logged in as farmer %s", claims.FarmerID())
		if claims.Email != "" {
			fmt.Printf(" (%s)", claims.Email)
		}
		fmt.Println()
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and wipe the local store, unsent reports included",
	RunE: func(cmd *cobra.Command, args []string) error {
		yes, _ := cmd.Flags().GetBool("yes")
		if !yes {
			return errors.New("logout deletes every stored report, rerun with --yes to confirm")
		}

		a, err := newApp(cmd, true)
		if err != nil {
			return err
		}
		defer a.close()

		if err := a.Session.Logout(commandContext(cmd)); err != nil {
			return err
		}
		fmt.Println("Logged out.")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Print the farmer reports are filed under",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, false)
		if err != nil {
			return err
		}
		defer a.close()

		claims, err := a.Session.Current(commandContext(cmd))
		if err != nil {
			return err
		}
		if claims == nil {
			fmt.Println("Not logged in, reports are filed as unknown.")
			return nil
		}
		fmt.Printf("Farmer: %s\n", claims.FarmerID())
		if claims.Email != "" {
			fmt.Printf("Email: %s\n", claims.Email)
		}
		if exp, _ := claims.GetExpirationTime(); exp != nil {
			fmt.Printf("Expires: %s\n", exp.In(a.Location).Format("2006-01-02 15:04"))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(loginCmd, logoutCmd, whoamiCmd)
	loginCmd.Flags().String("token", "", "Identity token issued by the collection center")
	logoutCmd.Flags().Bool("yes", false, "Confirm wiping the store")
}
