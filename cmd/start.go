package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/yuanshang000/ds2api/internal/account"
	"github.com/yuanshang000/ds2api/internal/conf"
	"github.com/yuanshang000/ds2api/internal/db"
	"github.com/yuanshang000/ds2api/internal/model"
	"github.com/yuanshang000/ds2api/internal/op"
	"github.com/yuanshang000/ds2api/internal/pow"
	"github.com/yuanshang000/ds2api/internal/relay"
	"github.com/yuanshang000/ds2api/internal/server"
	"github.com/yuanshang000/ds2api/internal/server/handlers"
	"github.com/yuanshang000/ds2api/internal/upstream"
	"github.com/yuanshang000/ds2api/internal/utils/log"
	"github.com/yuanshang000/ds2api/internal/utils/shutdown"
)

var cfgFile string

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start " + conf.APP_NAME,
	PreRun: func(cmd *cobra.Command, args []string) {
		conf.PrintBanner()
		conf.Load(cfgFile)
		log.SetLevel(conf.AppConfig.Log.Level)
	},
	Run: func(cmd *cobra.Command, args []string) {
		shutdown.Init(log.Logger)
		defer shutdown.Listen()
		if err := db.InitDB(conf.AppConfig.Database.Type, conf.AppConfig.Database.Path, conf.IsDebug()); err != nil {
			log.Errorf("database init error: %v", err)
			return
		}
		shutdown.Register(db.Close)

		if err := op.AccountTokenInit(); err != nil {
			log.Errorf("account token init error: %v", err)
			return
		}

		pool := account.NewPool(buildAccounts())

		client, err := upstream.New(conf.AppConfig.Upstream.ProxyURL)
		if err != nil {
			log.Errorf("upstream client init error: %v", err)
			return
		}

		solver, err := pow.NewSolver(context.Background(), conf.AppConfig.Upstream.WasmPath)
		if err != nil {
			log.Errorf("pow solver init error: %v", err)
			return
		}
		shutdown.Register(func() error {
			return solver.Close(context.Background())
		})

		rly := relay.New(pool, client, solver, conf.AppConfig.Keys)

		if err := server.Start(&handlers.Deps{Relay: rly, Pool: pool}); err != nil {
			log.Errorf("server start error: %v", err)
			return
		}
		shutdown.Register(server.Close)
	},
}

// buildAccounts merges configured credentials with tokens persisted from
// earlier logins.
func buildAccounts() []*model.Account {
	accounts := make([]*model.Account, 0, len(conf.AppConfig.Accounts))
	for _, a := range conf.AppConfig.Accounts {
		acc := &model.Account{
			Email:    a.Email,
			Mobile:   a.Mobile,
			Password: a.Password,
			Token:    a.Token,
		}
		if token, ok := op.AccountTokenGet(acc.Identifier()); ok && token != "" {
			acc.Token = token
		}
		accounts = append(accounts, acc)
	}
	return accounts
}

func init() {
	startCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./data/config.json)")
	rootCmd.AddCommand(startCmd)
}
