package main

import (
	"fmt"
	"time"

	"github.com/yok-tottii/EzCall/internal/config"
	"github.com/yok-tottii/EzCall/internal/hotkey"
)

// registerHotkeys registers the configured toggles and starts the event loop
func (a *App) registerHotkeys(cfg config.HotkeysConfig) error {
	bindings, err := hotkey.Bindings(cfg)
	if err != nil {
		return err
	}
	for _, b := range bindings {
		for _, conflict := range hotkey.CheckConflicts(b.Modifiers, b.Key) {
			a.logger.Warn("ホットキー %s は %s と競合する可能性があります", b, conflict.Name)
		}
	}
	if err := a.hotkeyMgr.Register(bindings); err != nil {
		return err
	}
	for _, b := range bindings {
		a.logger.Info("ホットキー登録完了 (%s): %s", b.Action, hotkey.FormatHotkey(b.Modifiers, b.Key))
	}
	go a.hotkeyEventLoop(a.hotkeyMgr.Events())
	return nil
}

// hotkeyEventLoop はホットキーイベントを通話コントローラに渡すループ
func (a *App) hotkeyEventLoop(events <-chan hotkey.Action) {
	a.logger.Info("ホットキーイベントループ開始")

	for action := range events {
		a.logger.Debug("ホットキー押下検出: %s", action)
		switch action {
		case hotkey.ToggleMute:
			a.handleToggleMute()
		case hotkey.ToggleSpeaker:
			a.handleToggleSpeaker()
		}
	}

	a.logger.Info("ホットキーイベントループ終了")
}

// ReloadHotkeys は現在の設定でホットキーを再登録する。失敗時は旧設定に戻す。
func (a *App) ReloadHotkeys() error {
	a.logger.Info("ホットキー再登録要求")

	if a.hotkeyMgr == nil {
		a.logger.Warn("ホットキー再登録: ホットキーマネージャーが初期化されていません")
		return fmt.Errorf("hotkey manager not initialized")
	}

	newConfig := a.config.Clone().Hotkeys
	if _, err := hotkey.Bindings(newConfig); err != nil {
		return err
	}

	// 既存の設定をバックアップ（ロールバック用）
	var oldBindings []hotkey.Binding
	needsRollback := false

	if a.hotkeyMgr.IsRunning() {
		a.logger.Info("既存のホットキーを解除します")
		oldBindings = a.hotkeyMgr.GetBindings()
		needsRollback = true

		if err := a.hotkeyMgr.Close(); err != nil {
			a.logger.Error("既存のホットキー解除に失敗: %v", err)
			return fmt.Errorf("failed to unregister old hotkeys: %w", err)
		}
		// イベントループが完全に終了するまで待機
		time.Sleep(200 * time.Millisecond)
	}

	if err := a.registerHotkeys(newConfig); err != nil {
		a.logger.Error("新しいホットキー登録に失敗: %v", err)

		if needsRollback {
			a.logger.Warn("ロールバック: 旧ホットキーを再登録します")
			if rollbackErr := a.hotkeyMgr.Register(oldBindings); rollbackErr != nil {
				a.logger.Error("ロールバック失敗: %v", rollbackErr)
				a.notify(a.notifier.SendError("ホットキーの登録に失敗しました。アプリケーションを再起動してください。"))
				return fmt.Errorf("failed to register new hotkeys and rollback failed: %w, rollback error: %v", err, rollbackErr)
			}
			go a.hotkeyEventLoop(a.hotkeyMgr.Events())
			a.logger.Info("ロールバック完了")
		}

		return fmt.Errorf("failed to register new hotkeys: %w", err)
	}

	a.notify(a.notifier.SendInfo("ホットキーを変更しました"))
	return nil
}
