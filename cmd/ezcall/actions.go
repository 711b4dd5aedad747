package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yok-tottii/EzCall/internal/call"
	"github.com/yok-tottii/EzCall/internal/mictest"
	"github.com/yok-tottii/EzCall/internal/permissions"
	"github.com/yok-tottii/EzCall/internal/route"
)

// trayController keeps the tray checkboxes in step with toggles that come
// from the settings page
type trayController struct {
	*call.Controller
	app *App
}

func (c trayController) ToggleMute() bool {
	muted := c.Controller.ToggleMute()
	c.app.trayMgr.SetMuted(muted)
	return muted
}

func (c trayController) ToggleSpeaker() bool {
	on := c.Controller.ToggleSpeaker()
	c.app.trayMgr.SetSpeaker(on)
	return on
}

func (c trayController) SetDefaultOutput(device route.AudioDevice) {
	c.Controller.SetDefaultOutput(device)
	c.app.trayMgr.SetSpeaker(c.Controller.SpeakerMode())
}

// handleCall は通話を発信する
func (a *App) handleCall() {
	a.loop.Post(func() {
		ctx, cancel := context.WithTimeout(a.ctx, actionTimeout)
		defer cancel()
		if err := a.controller.Call(ctx); err != nil {
			a.logger.Warn("発信に失敗: %v", err)
			a.notify(a.notifier.CallFailed(a.callErrorText(err)))
		}
	})
}

// handleHangup は通話を終了する
func (a *App) handleHangup() {
	a.loop.Post(func() {
		if err := a.controller.Hangup(a.ctx); err != nil && !errors.Is(err, call.ErrNoCall) {
			a.logger.Warn("切断に失敗: %v", err)
		}
	})
}

func (a *App) handleToggleMute() {
	a.loop.Post(func() { trayController{a.controller, a}.ToggleMute() })
}

func (a *App) handleToggleSpeaker() {
	a.loop.Post(func() { trayController{a.controller, a}.ToggleSpeaker() })
}

func (a *App) handleSelectOutput(device route.AudioDevice) {
	a.logger.Info("出力デバイス選択: %s", device)
	a.loop.Post(func() { a.controller.SelectOutput(device) })
}

func (a *App) callErrorText(err error) string {
	switch {
	case errors.Is(err, call.ErrNotReady):
		return a.translator.Translate("error.not_ready")
	case errors.Is(err, call.ErrBusy):
		return a.translator.Translate("error.busy")
	}
	return err.Error()
}

// handleMicTest はマイクテストを実行する
func (a *App) handleMicTest() {
	a.logger.Info("マイクテスト要求")

	// UIをブロックしないようにgoroutineで実行
	go func() {
		seconds := a.config.Clone().MicTestSeconds
		res, err := a.runMicTest(a.ctx, time.Duration(seconds)*time.Second)
		if err != nil {
			a.logger.Warn("マイクテスト失敗: %v", err)
			reason := err.Error()
			if errors.Is(err, mictest.ErrMuted) {
				reason = a.translator.Translate("error.mic_muted")
			}
			a.notify(a.notifier.MicTestFailed(reason))
			return
		}
		a.notify(a.notifier.MicTestResult(res.Silent(), res.PeakDBFS(), res.Duration))
	}()
}

// runMicTest records and publishes the level metric
func (a *App) runMicTest(ctx context.Context, d time.Duration) (mictest.Result, error) {
	res, err := a.micTester.Run(ctx, d)
	if err != nil {
		return res, err
	}
	a.metrics.MicTest(res.PeakDBFS())
	return res, nil
}

// handleCopyInvite は招待リンクをクリップボードにコピーする
func (a *App) handleCopyInvite() {
	cfg := a.config.Clone()
	invite, err := cfg.InviteURL()
	if err != nil {
		a.logger.Error("招待URLの作成に失敗: %v", err)
		a.notify(a.notifier.SendError(err.Error()))
		return
	}
	if err := a.clipboard.CopyInvite(cfg.Room, invite); err != nil {
		a.logger.Error("クリップボードへのコピーに失敗: %v", err)
		a.notify(a.notifier.SendError(err.Error()))
		return
	}
	a.logger.Info("招待リンクをコピーしました: %s", invite)
	a.notify(a.notifier.InviteCopied())
}

// Hooks below run on the controller goroutine

func (a *App) onCallState(from, to call.State) {
	a.logger.Info("通話状態: %s -> %s", from, to)
	a.trayMgr.SetState(to, a.controller.Ready())
	switch to {
	case call.StateConnected:
		a.notify(a.notifier.CallStarted())
	case call.StateEnded:
		if from == call.StateConnected {
			a.notify(a.notifier.CallEnded())
		}
	case call.StateIdle:
		a.lastDevice = route.None
	}
}

func (a *App) onAudioDevice(active route.AudioDevice, available route.DeviceSet) {
	a.trayMgr.SetAudioDevices(active, available)
	if active == a.lastDevice || active == route.None {
		return
	}
	// 通話開始時の最初の選択は通知しない
	if a.lastDevice != route.None {
		a.notify(a.notifier.DeviceChanged(active.String()))
	}
	a.lastDevice = active
}

func (a *App) onSignalingReady() {
	a.logger.Info("シグナリング接続完了: ルーム %s", a.config.Clone().Room)
	a.trayMgr.SetState(a.controller.State(), true)
	a.notify(a.notifier.Ready(a.config.Clone().Room))
}

func (a *App) onPermissionDenied(missing []permissions.Permission) {
	names := make([]string, len(missing))
	for i, p := range missing {
		names[i] = string(p)
	}
	a.logger.Warn("権限が未許可です: %v", names)
	a.notify(a.notifier.PermissionDenied(names))
}

func (a *App) onPeerLeft(peer string) {
	a.logger.Info("相手が退出しました: %s", peer)
	a.notify(a.notifier.PeerLeft())
}

func (a *App) onCallError(err error) {
	a.logger.Error("通話エラー: %v", err)
	a.trayMgr.SetState(a.controller.State(), a.controller.Ready())
	if !a.controller.Ready() {
		a.notify(a.notifier.SignalingFailed(err.Error()))
		return
	}
	a.notify(a.notifier.CallFailed(fmt.Sprint(err)))
}
