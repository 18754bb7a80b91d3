package app

import (
	"fmt"
	"strings"
)

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はAPIサーバーモード。引数なしの場合もこれになる。
	CommandServe Command = "serve"
	// CommandWorker は期限切れセッションのクリーンアップを定期実行するワーカーモード。
	CommandWorker Command = "worker"
	// CommandMigrate は未適用のマイグレーションをすべて適用する。
	CommandMigrate Command = "migrate"
	// CommandMigrateStatus は適用済みのスキーマバージョンを表示する。
	CommandMigrateStatus Command = "migrate status"
	// CommandHealthcheck は稼働中のサーバーの /health を叩く。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
)

var commandNames = map[string]Command{
	"serve":       CommandServe,
	"worker":      CommandWorker,
	"migrate":     CommandMigrate,
	"healthcheck": CommandHealthcheck,
}

// ParseCommand はコマンドライン引数からサブコマンドを解析する。大文字小文字は区別しない。
// 引数が空の場合はCommandServeを返し、未知のコマンドはエラーとする。
func ParseCommand(args []string) (Command, error) {
	if len(args) == 0 {
		return CommandServe, nil
	}

	name := strings.ToLower(strings.TrimSpace(args[0]))
	cmd, ok := commandNames[name]
	if !ok {
		return "", fmt.Errorf("unknown command %q (available: serve, worker, migrate [status], healthcheck)", args[0])
	}

	if cmd == CommandMigrate && len(args) > 1 {
		switch strings.ToLower(strings.TrimSpace(args[1])) {
		case "up":
			return CommandMigrate, nil
		case "status":
			return CommandMigrateStatus, nil
		default:
			return "", fmt.Errorf("unknown migrate action %q (available: up, status)", args[1])
		}
	}
	return cmd, nil
}
