package app

import "strings"

// Command はサブコマンド。
type Command string

const (
	CommandServe    Command = "serve"
	CommandEnvCheck Command = "envcheck"
	// CommandHealthcheck は自身の /health を叩いて終了コードで結果を返す。
	// シェルの無いdistrolessイメージのHEALTHCHECKから使う。
	CommandHealthcheck Command = "healthcheck"
)

var commandAliases = map[string]Command{
	"serve":       CommandServe,
	"envcheck":    CommandEnvCheck,
	"env-check":   CommandEnvCheck,
	"healthcheck": CommandHealthcheck,
}

// ParseCommand は先頭の引数をサブコマンドとして解釈する。
// 未指定や未知の値はserveとして扱う。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}
	if cmd, ok := commandAliases[strings.ToLower(args[0])]; ok {
		return cmd
	}
	return CommandServe
}
