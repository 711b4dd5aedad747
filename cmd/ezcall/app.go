package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/yok-tottii/EzCall/internal/audio"
	"github.com/yok-tottii/EzCall/internal/call"
	"github.com/yok-tottii/EzCall/internal/clipboard"
	"github.com/yok-tottii/EzCall/internal/config"
	"github.com/yok-tottii/EzCall/internal/dispatch"
	"github.com/yok-tottii/EzCall/internal/history"
	"github.com/yok-tottii/EzCall/internal/hotkey"
	"github.com/yok-tottii/EzCall/internal/i18n"
	"github.com/yok-tottii/EzCall/internal/logger"
	"github.com/yok-tottii/EzCall/internal/metrics"
	"github.com/yok-tottii/EzCall/internal/mictest"
	"github.com/yok-tottii/EzCall/internal/notification"
	"github.com/yok-tottii/EzCall/internal/permissions"
	"github.com/yok-tottii/EzCall/internal/route"
	"github.com/yok-tottii/EzCall/internal/rtc"
	"github.com/yok-tottii/EzCall/internal/server"
	"github.com/yok-tottii/EzCall/internal/signaling"
	"github.com/yok-tottii/EzCall/internal/tray"
	"github.com/yok-tottii/EzCall/internal/wizard"
)

const (
	dispatchQueue = 64
	actionTimeout = 10 * time.Second
)

// App holds all application state
type App struct {
	logger     *logger.Logger
	config     *config.Config
	configPath string
	translator *i18n.Translator
	wizard     *wizard.SetupWizard
	isFirstRun bool

	ctx    context.Context
	cancel context.CancelFunc
	loop   *dispatch.Loop

	audioDriver *audio.PortAudioDriver
	system      *audio.System
	router      *route.Manager
	metrics     *metrics.Metrics
	history     *history.Store
	gate        *permissions.Gate
	controller  *call.Controller
	micTester   *mictest.Tester

	hotkeyMgr  *hotkey.Manager
	clipboard  *clipboard.Manager
	notifier   *notification.NotificationManager
	trayMgr    *tray.Manager
	httpServer *server.Server

	lastDevice route.AudioDevice
	quitOnce   sync.Once
}

// runApp builds every component and blocks in the tray until quit
func runApp(cfg *config.Config, configPath string) error {
	app := &App{config: cfg, configPath: configPath}

	var err error
	app.logger, err = logger.New(logger.DefaultConfig())
	if err != nil {
		return fmt.Errorf("ロガーの初期化に失敗: %w", err)
	}
	defer app.logger.Close()

	app.logger.Info("EzCall v%s 起動", version)
	app.logger.Info("設定ファイルを読み込みました: %s", configPath)
	if err := cfg.Validate(); err != nil {
		app.logger.Warn("設定ファイルに問題があります: %v", err)
	}

	if err := app.init(); err != nil {
		app.logger.Error("初期化に失敗: %v", err)
		return err
	}

	app.logger.Info("systray初期化開始")

	// systray.Run()はブロッキング呼び出し
	app.trayMgr.Run()

	app.shutdown()
	return nil
}

// init wires the components. Nothing here talks to the network yet.
func (a *App) init() error {
	lang := i18n.DetectSystemLanguage()
	if i18n.ValidateLanguage(a.config.UILanguage) {
		lang = i18n.Language(a.config.UILanguage)
	}
	a.translator = i18n.NewDefaultTranslator(lang)
	a.notifier = notification.NewNotificationManager("EzCall", a.translator)

	var err error
	a.wizard, err = wizard.NewSetupWizard(a.configPath)
	if err != nil {
		a.logger.Error("セットアップウィザード初期化エラー: %v", err)
	}
	a.isFirstRun = a.wizard != nil && a.wizard.ShouldShowWizard()

	a.ctx, a.cancel = context.WithCancel(context.Background())
	a.loop = dispatch.New(dispatchQueue)
	go a.loop.Run(a.ctx)

	if err := a.initAudio(); err != nil {
		return err
	}

	a.metrics = metrics.New()
	a.clipboard = clipboard.NewManager(clipboard.DefaultConfig())

	historyPath, err := a.config.GetHistoryPath()
	if err != nil {
		a.logger.Warn("通話履歴のパス展開に失敗: %v", err)
	} else if a.history, err = history.Open(historyPath); err != nil {
		a.logger.Warn("通話履歴を開けません: %v", err)
		a.history = nil
	} else {
		a.logger.Info("通話履歴: %s", historyPath)
	}

	if err := a.initController(); err != nil {
		return err
	}

	a.micTester = mictest.New(a.audioDriver, a.controllerMuted, mictest.Config{
		MaxDuration: time.Duration(a.config.MicTestSeconds) * time.Second,
	}, a.logger)

	serverConfig := server.DefaultConfig()
	if a.config.SettingsPort > 0 {
		serverConfig.Port = a.config.SettingsPort
	}
	serverConfig.Logger = a.logger
	a.httpServer = server.New(serverConfig)
	a.registerAPI()

	a.trayMgr = tray.NewManager(tray.Config{
		OnReady:         a.onReady,
		OnCall:          a.handleCall,
		OnHangup:        a.handleHangup,
		OnToggleMute:    a.handleToggleMute,
		OnToggleSpeaker: a.handleToggleSpeaker,
		OnSelectOutput:  a.handleSelectOutput,
		OnMicTest:       a.handleMicTest,
		OnCopyInvite:    a.handleCopyInvite,
		OnSettings:      a.handleOpenSettings,
		OnQuit:          a.handleQuit,
		Translator:      a.translator,
		Logger:          a.logger,
	})
	a.trayMgr.SetMuted(a.config.StartMuted)
	a.trayMgr.SetSpeaker(a.config.DefaultOutput() == route.SpeakerPhone)
	return nil
}

func (a *App) initAudio() error {
	policy, err := audio.ParseEarpiecePolicy(a.config.Earpiece)
	if err != nil {
		a.logger.Warn("earpiece設定が不正なため auto を使います: %v", err)
	}

	a.audioDriver, err = audio.NewPortAudioDriver()
	if err != nil {
		return fmt.Errorf("PortAudioドライバの作成に失敗: %w", err)
	}

	audioConfig := audio.DefaultConfig()
	audioConfig.InputDeviceID = a.config.AudioInputDeviceID
	if err := a.audioDriver.Initialize(audioConfig); err != nil {
		// マイクテストだけが使えなくなる
		a.logger.Error("オーディオドライバの初期化に失敗: %v", err)
	} else {
		a.logger.Info("オーディオドライバ初期化完了 (入力デバイスID: %d)", audioConfig.InputDeviceID)
	}

	a.system = audio.NewSystem(a.audioDriver, audio.SystemOptions{
		Earpiece: policy,
		Logger:   a.logger,
	})
	a.router = route.New(a.system, route.Config{
		DefaultDevice: a.config.DefaultOutput(),
		Post:          a.loop.Post,
		Logger:        a.logger,
	})
	return nil
}

// initController builds the call controller. New already applies the route
// defaults to the platform, so it runs on the loop goroutine.
func (a *App) initController() error {
	a.gate = permissions.NewGate(permissions.NewSystemChecker(), permissions.CallPermissions, a.logger)
	deps := call.Deps{
		Post:   a.loop.Post,
		Router: a.router,
		Gate:   a.gate,
		NewEngine: func(observer rtc.Observer) (call.Engine, error) {
			cfg := a.config.Clone()
			engine, err := rtc.New(rtc.Config{
				ICEServers: cfg.ICEServers,
				Video:      cfg.Video,
				Logger:     a.logger,
			}, observer)
			if err != nil {
				return nil, err
			}
			return engine, nil
		},
		NewSignaling: func(listener signaling.Listener) call.Signaling {
			cfg := a.config.Clone()
			return signaling.NewClient(cfg.SignalingURL, cfg.Room, listener, a.logger)
		},
		Metrics:        a.metrics,
		RouteListeners: []route.Listener{a.metrics},
		Logger:         a.logger,
	}
	if a.history != nil {
		deps.History = a.history
	}

	opts := call.Options{
		Room:          a.config.Room,
		StartMuted:    a.config.StartMuted,
		DefaultOutput: a.config.DefaultOutput(),
	}
	hooks := call.Hooks{
		OnState:            a.onCallState,
		OnAudioDevice:      a.onAudioDevice,
		OnReady:            a.onSignalingReady,
		OnPermissionDenied: a.onPermissionDenied,
		OnPeerLeft:         a.onPeerLeft,
		OnError:            a.onCallError,
	}
	controller, err := newController(a.loop, deps, opts, hooks)
	if err != nil {
		return fmt.Errorf("通話コントローラの作成に失敗: %w", err)
	}
	a.controller = controller
	return nil
}

// newController runs call.New on the loop goroutine
func newController(loop *dispatch.Loop, deps call.Deps, opts call.Options, hooks call.Hooks) (*call.Controller, error) {
	var controller *call.Controller
	if err := loop.Call(func() { controller = call.New(deps, opts, hooks) }); err != nil {
		return nil, err
	}
	return controller, nil
}

// onReady は systray が初期化完了後に呼ばれる
func (a *App) onReady() {
	a.logger.Info("systray初期化完了 - アプリケーション初期化開始")

	a.loop.Post(func() { a.controller.Start(a.ctx) })

	a.hotkeyMgr = hotkey.New()
	if err := a.registerHotkeys(a.config.Clone().Hotkeys); err != nil {
		a.logger.Error("ホットキーの登録に失敗: %v", err)
		a.notify(a.notifier.SendError(fmt.Sprintf("ホットキーの登録に失敗: %v", err)))
	}

	if err := a.httpServer.Start(); err != nil {
		a.logger.Error("HTTPサーバーの起動に失敗: %v", err)
		a.notify(a.notifier.SendError("設定画面の起動に失敗しました"))
	}

	// 初回起動時は自動的にセットアップ画面を開く
	if a.isFirstRun {
		a.logger.Info("初回起動検出 - セットアップ画面を開きます")
		a.handleOpenSettings()
	}

	// Ctrl+Cでの終了処理
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		a.logger.Info("終了シグナルを受信しました")
		a.handleQuit()
		a.trayMgr.Quit()
	}()

	a.logger.Info("アプリケーション初期化完了")
	a.printBanner()
}

func (a *App) printBanner() {
	fmt.Println("\n" + "==========================================================")
	fmt.Println("[起動] EzCall が起動しました")
	fmt.Println("==========================================================")
	fmt.Printf("[設定] 設定画面URL: %s\n", a.httpServer.URL())
	if invite, err := a.config.InviteURL(); err == nil {
		fmt.Printf("[通話] 招待URL: %s\n", invite)
	}
	for _, b := range a.hotkeyMgr.GetBindings() {
		fmt.Printf("[設定] ホットキー (%s): %s\n", b.Action, hotkey.FormatHotkey(b.Modifiers, b.Key))
	}
	fmt.Printf("[終了] Ctrl+C またはメニューから「終了」\n")
	fmt.Println("==========================================================" + "\n")
}

// notify logs a failed desktop notification
func (a *App) notify(err error) {
	if err != nil {
		a.logger.Debug("通知の送信に失敗: %v", err)
	}
}

// controllerMuted reads the mute flag on the controller goroutine
func (a *App) controllerMuted() bool {
	var muted bool
	if err := a.loop.Call(func() { muted = a.controller.Muted() }); err != nil {
		return false
	}
	return muted
}

// handleQuit はアプリケーションを終了
func (a *App) handleQuit() {
	a.quitOnce.Do(func() {
		a.logger.Info("終了要求")

		if a.httpServer != nil && a.httpServer.IsRunning() {
			if err := a.httpServer.Stop(); err != nil {
				a.logger.Error("HTTPサーバーの停止に失敗: %v", err)
			}
		}

		if a.hotkeyMgr != nil {
			if err := a.hotkeyMgr.Close(); err != nil {
				a.logger.Warn("ホットキーの解除に失敗: %v", err)
			}
		}

		// 通話中なら切断してからシグナリングを閉じる
		if err := a.loop.Call(a.controller.Stop); err != nil && !errors.Is(err, dispatch.ErrStopped) {
			a.logger.Warn("通話の終了に失敗: %v", err)
		}
	})
}

// shutdown releases what outlives the tray
func (a *App) shutdown() {
	a.handleQuit()
	a.cancel()

	if a.history != nil {
		if err := a.history.Close(); err != nil {
			a.logger.Warn("通話履歴のクローズに失敗: %v", err)
		}
	}
	if a.audioDriver != nil {
		if err := a.audioDriver.Close(); err != nil {
			a.logger.Warn("オーディオドライバのクローズに失敗: %v", err)
		}
	}
	a.logger.Info("アプリケーション終了")
}
