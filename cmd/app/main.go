package main

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Stone-Creek-Software/armory-back/internal/auth"
	"github.com/Stone-Creek-Software/armory-back/internal/config"
	"github.com/Stone-Creek-Software/armory-back/internal/db"
	"github.com/Stone-Creek-Software/armory-back/internal/service"
	"github.com/Stone-Creek-Software/armory-back/internal/transport"
)

func main() {
	app := fx.New(
		fx.Provide(
			func() (*zap.SugaredLogger, error) {
				l, err := zap.NewProduction()
				if err != nil {
					return nil, err
				}
				return l.Sugar(), nil
			},
			config.NewConfig,
			db.NewGormClient,
		),
		auth.Module,
		service.Module,
		transport.Module,
		fx.Invoke(func(server *transport.HTTPServer) {}),
	)
	app.Run()
}
