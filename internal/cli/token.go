package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/RBarbieri13/Decant-sub001/internal/middleware"
)

var tokenCmd = &cobra.Command{
	Use:   "token <actor>",
	Short: "Issue a signed actor token for the HTTP API",
	Long: `Issue an HS256 token whose subject is recorded as the actor of every
hierarchy change made with it. Requires JWT_SECRET.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ttl, _ := cmd.Flags().GetDuration("ttl")
		if cfg.JWTSecret == "" {
			return errors.New("JWT_SECRET is not set")
		}
		tok, err := middleware.IssueToken(args[0], middleware.ActorConfig{
			Secret: cfg.JWTSecret,
			Issuer: cfg.JWTIssuer,
		}, ttl)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), tok)
		return nil
	},
}

func init() {
	tokenCmd.Flags().Duration("ttl", 24*time.Hour, "token lifetime")
	rootCmd.AddCommand(tokenCmd)
}
