package main

import (
	"fmt"
	"os/exec"
	"runtime"
)

// browserCommand returns the command that opens url in the default browser
func browserCommand(goos, url string) (string, []string) {
	switch goos {
	case "darwin":
		return "open", []string{url}
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler", url}
	default:
		return "xdg-open", []string{url}
	}
}

// handleOpenSettings は設定画面を開く
func (a *App) handleOpenSettings() {
	a.logger.Info("設定画面を開く要求")

	if !a.httpServer.IsRunning() {
		a.logger.Error("HTTPサーバーが起動していません")
		a.notify(a.notifier.SendError("設定画面が利用できません。アプリケーションを再起動してください。"))
		return
	}

	url := a.httpServer.URL()
	a.logger.Info("ブラウザを開きます: %s", url)

	go func() {
		name, args := browserCommand(runtime.GOOS, url)
		if err := exec.Command(name, args...).Run(); err != nil {
			a.logger.Error("ブラウザの起動に失敗: %v", err)

			// フォールバック: ターミナルにURLを表示
			fmt.Printf("\n[警告] ブラウザが自動で開きませんでした\n")
			fmt.Printf("[情報] 設定画面URL: %s\n", url)
			fmt.Printf("[ヒント] 上記URLをブラウザで開いてください\n\n")
		}
	}()
}
