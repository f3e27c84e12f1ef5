package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"path/filepath"
	"time"

	"evsync/bot"
	"evsync/impl/auth"
	"evsync/impl/core"
	"evsync/internal/config"
	"evsync/internal/crm"
	"evsync/internal/database"
	"evsync/internal/http-server/api"
	"evsync/internal/stripeclient"
	"evsync/lib/logger"
	"evsync/lib/sl"
)

const logFileName = "evsync.log"

func main() {
	configPath := flag.String("conf", "config.yml", "path to config file")
	logPath := flag.String("log", "/var/log/", "path to log file directory")
	importCrm := flag.Bool("import-crm", false, "import legacy CRM clients into the user store on startup")
	flag.Parse()

	conf := config.MustLoad(*configPath)
	lg := logger.SetupLogger(conf.Env, filepath.Join(*logPath, logFileName))
	lg.Info("starting evsync", slog.String("config", *configPath), slog.String("env", conf.Env))

	db := database.NewMongoClient(conf)
	if db == nil {
		log.Fatal("mongo storage must be enabled")
	}
	indexCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := db.EnsureIndexes(indexCtx); err != nil {
		cancel()
		log.Fatal("ensure indexes: ", err)
	}
	cancel()

	var tgBot *bot.TgBot
	if conf.Telegram.Enabled {
		var err error
		tgBot, err = bot.NewTgBot(conf.Telegram.ApiKey, db, lg)
		if err != nil {
			lg.Error("create telegram bot", sl.Err(err))
			tgBot = nil
		} else if err = tgBot.Start(); err != nil {
			lg.Error("start telegram bot", sl.Err(err))
			tgBot = nil
		} else {
			// route ERROR+ records to admin chats
			lg = slog.New(logger.NewTelegramHandler(lg.Handler(), tgBot, slog.LevelError))
			defer tgBot.Stop()
		}
	}

	c := core.New(conf, db, lg)
	c.SetAuthService(auth.New(db))
	if tgBot != nil {
		c.SetNotifier(tgBot)
	}

	if conf.Stripe.APIKey != "" || conf.Stripe.TestMode {
		sc := stripeclient.New(conf, lg)
		sc.SetDatabase(db)
		c.SetStripeClient(sc)
	}

	if conf.Crm.Enabled {
		crmClient, err := crm.NewSQLClient(conf)
		if err != nil {
			lg.Error("connect crm", sl.Err(err))
		} else {
			defer crmClient.Close()
			c.SetDirectory(crmClient)
			if *importCrm {
				runCrmImport(db, crmClient, lg)
			}
		}
	}

	if err := api.New(conf, lg, c); err != nil {
		lg.Error("api server stopped", sl.Err(err))
	}
}

// runCrmImport seeds the user store from the legacy client directory.
// Existing accounts are left untouched.
func runCrmImport(db *database.MongoDB, crmClient *crm.MySql, lg *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	clients, err := crmClient.ListClients(ctx)
	if err != nil {
		lg.Error("list crm clients", sl.Err(err))
		return
	}

	imported := 0
	for _, client := range clients {
		existing, err := db.GetUserByEmail(ctx, client.Email)
		if err != nil {
			lg.Error("lookup user during import", sl.Err(err))
			return
		}
		if existing != nil {
			continue
		}
		if err = db.SaveUser(ctx, crm.UserFromClient(client)); err != nil {
			lg.With(slog.String("email", client.Email)).Warn("import crm client", sl.Err(err))
			continue
		}
		imported++
	}
	lg.With(
		slog.Int("total", len(clients)),
		slog.Int("imported", imported),
	).Info("crm import finished")
}
