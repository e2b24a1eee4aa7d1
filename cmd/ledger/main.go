// Package main - точка входа CLI progress-ledger.
//
// ledger хранит опыт (XP) и бейджи одного пользователя, выдаёт награды за
// завершённые модули и показывает текущий уровень. Команда serve поднимает
// HTTP API поверх того же журнала.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}
