// Command api-server serves the table ordering API.
package main

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"go.uber.org/zap"

	tableside "github.com/xenking/tableside/internal/app"
)

func main() {
	app.Run(func(ctx context.Context, lg *zap.Logger, m *app.Telemetry) error {
		cfg, err := tableside.LoadConfig()
		if err != nil {
			return errors.Wrap(err, "load config")
		}
		lg.Info("Starting tableside",
			zap.String("addr", cfg.Addr),
			zap.String("timezone", cfg.Timezone),
			zap.Bool("strict_transitions", cfg.Orders.StrictTransitions),
			zap.Bool("staff_auth", cfg.Auth.Pepper != ""),
		)
		return tableside.Run(ctx, lg, m, cfg)
	})
}
