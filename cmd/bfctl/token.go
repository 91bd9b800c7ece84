package main

import (
	"errors"
	"time"

	"github.com/anonto42/barrierfree/backend/internal/middleware"
	"github.com/anonto42/barrierfree/backend/pkg/config"
	"github.com/golang-jwt/jwt/v4"
	"github.com/spf13/cobra"
)

var (
	tokenName string
	tokenTTL  time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token <identity>",
	Short: "Mint a development token for AUTH_MODE=jwt",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		if cfg.JWTSecret == "" {
			return errors.New("JWT_SECRET is not set")
		}
		now := time.Now()
		token, err := middleware.SignDevToken(cfg.JWTSecret, middleware.Claims{
			Name: tokenName,
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   args[0],
				IssuedAt:  jwt.NewNumericDate(now),
				ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
			},
		})
		if err != nil {
			return err
		}
		return report(cmd, map[string]string{"token": token}, token)
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenName, "name", "", "Display name for first-time registration")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "Token lifetime")
}
