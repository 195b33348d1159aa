package main

import (
	"context"
	"flag"
	"time"

	"olivebranch/internal/modkit"
	"olivebranch/internal/modkit/httpkit"
	"olivebranch/internal/modkit/module"
	"olivebranch/internal/platform/config"
	"olivebranch/internal/platform/logger"
	phttp "olivebranch/internal/platform/net/http"
	"olivebranch/internal/platform/store"

	submod "olivebranch/internal/services/submitter/module"
)

func main() {
	root := config.New()
	svcCfg := root.Prefix("CORE_SUBMITTER_")
	pgCfg := root.Prefix("SERVICE_PGSQL_")

	l := logger.Get()

	st, err := store.Open(context.Background(), store.Config{
		PG: store.PGConfig{
			Enabled:     true,
			URL:         pgCfg.MustString("DBURL"),
			MaxConns:    int32(pgCfg.MayInt("MAX_CONNS", 4)),
			SlowQueryMs: pgCfg.MayInt("SLOW_MS", 500),
			LogSQL:      pgCfg.MayBool("LOG_SQL", false),
		},
	}, store.WithLogger(*l))
	if err != nil {
		l.Panic().Err(err).Msg("store.Open failed")
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			l.Error().Err(err).Msg("failed to close store")
		}
	}()

	var (
		fLoop     = flag.Bool("loop", true, "tick continuously instead of waiting for /run calls only")
		fInterval = flag.Duration("interval", time.Minute, "delay between submit passes")
	)
	flag.Parse()

	deps := modkit.Deps{
		Cfg: root,
		PG:  st.PG,
		Log: *l,
	}

	mod := submod.New(deps)
	module.Register(mod.Name(), mod.Ports())
	submitter := module.MustPortsOf[submod.Exports](mod).Submitter

	ctx := context.Background()

	if *fLoop {
		go func() {
			ticker := time.NewTicker(*fInterval)
			defer ticker.Stop()
			for {
				rep, err := submitter.Run(ctx)
				if err != nil {
					l.Error().Err(err).Msg("submit pass failed")
				} else if rep.Claimed > 0 {
					l.Info().
						Int("claimed", rep.Claimed).
						Int("submitted", rep.Submitted).
						Int("requeued", rep.Requeued).
						Int("deferred", rep.Deferred).
						Str("batch_id", rep.BatchID).
						Msg("submit pass")
				}
				<-ticker.C
			}
		}()
	}

	// /run stays mounted so operators can force a pass
	srv := phttp.NewServer(svcCfg)
	secret := root.MayString("INTERNAL_TOKEN", "")
	httpkit.MountAPIV1(srv.Router(), httpkit.CommonStack(), func(api httpkit.Router) {
		httpkit.Protected(api, httpkit.NewSharedSecretPort(secret, "internal"), func(pr httpkit.Router) {
			mod.MountRoutes(pr)
		})
	})

	if err := srv.Run(ctx); err != nil {
		l.Panic().Err(err).Msg("http server stopped")
	}
}
