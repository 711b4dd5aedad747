package main

import (
	"github.com/yok-tottii/EzCall/internal/api"
	"github.com/yok-tottii/EzCall/internal/config"
	"github.com/yok-tottii/EzCall/internal/i18n"
)

// registerAPI mounts the settings endpoints on the local server
func (a *App) registerAPI() {
	deps := api.Deps{
		Config:            a.config,
		ConfigPath:        a.configPath,
		Wizard:            a.wizard,
		Controller:        trayController{a.controller, a},
		Do:                a.loop.Call,
		Devices:           a.system.Devices,
		Permissions:       a.gate.Status,
		MicTest:           a.runMicTest,
		Metrics:           a.metrics.Handler(),
		Translator:        a.translator,
		OnHotkeysChanged:  a.ReloadHotkeys,
		OnSettingsChanged: a.onSettingsChanged,
		Logger:            a.logger,
	}
	if a.history != nil {
		deps.History = a.history
	}
	api.New(deps).RegisterRoutes(a.httpServer.GetMux())
	a.logger.Info("APIルート登録完了")
}

// onSettingsChanged applies what can change without reconnecting
func (a *App) onSettingsChanged(cfg *config.Config) {
	cfg = cfg.Clone()
	if i18n.ValidateLanguage(cfg.UILanguage) {
		a.translator.SetLanguage(i18n.Language(cfg.UILanguage))
	}
	output := cfg.DefaultOutput()
	a.loop.Post(func() {
		c := trayController{a.controller, a}
		if a.controller.Status().Route.Default != output {
			c.SetDefaultOutput(output)
		}
		if room := a.controller.Status().Room; room != cfg.Room {
			a.logger.Info("ルームの変更は再起動後に反映されます: %s -> %s", room, cfg.Room)
		}
	})
}
