// Command speechgate は音声練習アプリのAPIゲートウェイを起動する。
package main

import (
	"fmt"
	"os"

	_ "golang.org/x/crypto/x509roots/fallback"

	"github.com/hitoshi/speechgate/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
