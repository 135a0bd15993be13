package main

import (
	"os"

	"github.com/joho/godotenv"

	ragbotcmder "github.com/kolzchut/ragbot/cmd/ragbot"
)

func main() {
	_ = godotenv.Load()

	cmd := ragbotcmder.NewRagbotCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
