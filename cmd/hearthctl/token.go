package main

import (
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/hearthguard/hearthguard/internal/auth"
)

func newTokenCmd() *cobra.Command {
	var (
		federation string
		member     string
		ttl        time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token signed with JWT_SECRET",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.IsProduction() {
				return errors.New("token issuance is disabled in production")
			}
			if federation == "" || member == "" {
				return errors.New("--federation and --member are required")
			}
			token, err := auth.NewService(cfg.JWTSecret, cfg.JWTIssuer).Issue(auth.Principal{MemberID: member, FederationID: federation}, ttl)
			if err != nil {
				return err
			}
			cmd.Println(token)
			return nil
		},
	}
	cmd.Flags().StringVar(&federation, "federation", "", "federation id (fed claim)")
	cmd.Flags().StringVar(&member, "member", "", "member id (sub claim)")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	return cmd
}
