package main

import (
	"flag"
	stdLog "log"
	"os"
	"time"

	"github.com/Astemirdum/library-management/library/app"
	"github.com/Astemirdum/library-management/library/config"
	"github.com/joho/godotenv"
	"go.uber.org/zap/zapcore"
)

func main() {
	debug := flag.Bool("debug", false, "log at debug level regardless of LOG_LEVEL")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		stdLog.Fatal("load envs from .env ", err)
	}
	opts := []config.Option{config.WithWriteTimeout(time.Minute)}
	if *debug {
		opts = append(opts, config.WithLogLevel(zapcore.DebugLevel))
	}

	app.Run(config.NewConfig(opts...))
}
