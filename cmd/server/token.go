package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/RaduRoibu23/timetable-distributed-system/config"
	"github.com/RaduRoibu23/timetable-distributed-system/pkg/jwt"
)

var (
	tokenSubject  string
	tokenUsername string
	tokenRoles    []string
)

// tokenCmd 用配置中的密钥签发 Token，仅用于开发与联调
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "签发开发用 Access Token",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("加载配置失败: %w", err)
		}
		username := tokenUsername
		if username == "" {
			username = tokenSubject
		}
		token, err := jwt.NewManager(&cfg.Auth).GenerateAccessToken(tokenSubject, username, tokenRoles)
		if err != nil {
			return fmt.Errorf("签发 Token 失败: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenSubject, "sub", "dev", "sub 声明")
	tokenCmd.Flags().StringVar(&tokenUsername, "username", "", "preferred_username 声明，默认同 sub")
	tokenCmd.Flags().StringSliceVar(&tokenRoles, "role", []string{"admin"}, "角色，可重复")
}
