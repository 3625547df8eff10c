package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/staneins/SokrytBot/internal/announce"
	"github.com/staneins/SokrytBot/internal/bot"
	"github.com/staneins/SokrytBot/internal/config"
	"github.com/staneins/SokrytBot/internal/db/sqlite"
	"github.com/staneins/SokrytBot/internal/handlers/chat"
	"github.com/staneins/SokrytBot/internal/handlers/moderation"
	"github.com/staneins/SokrytBot/internal/infra"
	"github.com/staneins/SokrytBot/internal/infrastructure/telegram"
	"github.com/staneins/SokrytBot/internal/lifecycle"
	"github.com/staneins/SokrytBot/internal/observability"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatalln("cant load config")
	}

	log.SetFormatter(&config.SbFormatter{})
	log.SetOutput(os.Stdout)
	log.SetLevel(log.Level(cfg.LogLevel))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := observability.Init(cfg.MetricsAddr); err != nil {
		log.WithError(err).Error("cant start metrics endpoint")
	}

	client, err := sqlite.NewSQLiteClient(ctx, infra.GetWorkDir(), "bot.db")
	if err != nil {
		log.WithError(err).Fatalln("cant open database")
	}
	defer func() {
		if err := client.Close(); err != nil {
			log.WithError(err).Error("cant close database")
		}
	}()

	botAPI, err := api.NewBotAPI(cfg.TelegramAPIToken)
	if err != nil {
		log.WithError(err).Errorln("cant initialize bot api")
		time.Sleep(1 * time.Second)
		log.Fatalln("exiting")
	}
	if log.Level(cfg.LogLevel) == log.TraceLevel {
		botAPI.Debug = true
	}
	defer botAPI.StopReceivingUpdates()

	ops := telegram.NewOperations(botAPI)
	service := bot.NewService(botAPI, ops, client)

	admins := moderation.NewAdminCache(ops, botAPI.Self.ID)
	roster := moderation.NewBannedRoster(cfg.Moderation.CleanupInterval)
	warden := moderation.NewWarden(ops, client, admins, roster, cfg.Moderation.WarnLimit, cfg.Moderation.MuteDuration)

	bot.RegisterUpdateHandler("gatekeeper", chat.NewGatekeeper(service, roster, cfg.Moderation.CaptchaTimeout, botAPI.Self.ID))
	bot.RegisterUpdateHandler("moderation", moderation.NewModerator(service, warden, admins, roster))

	runtime := lifecycle.NewRuntime(roster, announce.NewAnnouncer(client, ops, cfg.Announce.Interval))
	if err := runtime.Start(ctx); err != nil {
		log.WithError(err).Fatalln("cant start components")
	}
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer stopCancel()
		if err := runtime.Stop(stopCtx); err != nil {
			log.WithError(err).Error("cant stop components")
		}
	}()

	updateConfig := api.NewUpdate(0)
	updateConfig.Timeout = 60
	updateProcessor := bot.NewUpdateProcessor(service)
	updateChan, errorChan := bot.GetUpdatesChans(ctx, botAPI, updateConfig)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		infra.GoRecoverable(-1, "update_loop", func() {
			for {
				select {
				case <-groupCtx.Done():
					log.WithError(groupCtx.Err()).Infoln("no more updates")
					return
				case err := <-errorChan:
					if err != nil {
						log.WithError(err).Errorln("bot api get updates error")
					}
					return
				case update := <-updateChan:
					if err := updateProcessor.Process(groupCtx, &update); err != nil {
						log.WithError(err).Errorln("cant process update")
					}
				}
			}
		})
		cancel()
		return nil
	})
	group.Go(func() error {
		select {
		case <-groupCtx.Done():
			return nil
		case <-infra.MonitorExecutable(groupCtx):
			log.Errorln("executable file was modified, shutting down")
			cancel()
			return nil
		}
	})

	if err := group.Wait(); err != nil {
		log.WithError(err).Errorln("stopped with error")
	}
}
