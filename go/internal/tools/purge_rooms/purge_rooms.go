package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/estimate/go/internal/config"
	"github.com/mcdev12/estimate/go/internal/dbconfig"
	"github.com/mcdev12/estimate/go/internal/room"
)

// Rooms whose actor never woke up again (process restarts, crashes) are
// not reached by the in-process alarm; this sweeps them from the table.
const (
	countQuery = `
SELECT count(*) FROM rooms
WHERE (status = @ended AND updated_at < @ended_before) OR updated_at < @idle_before`

	purgeQuery = `
DELETE FROM rooms
WHERE (status = @ended AND updated_at < @ended_before) OR updated_at < @idle_before`
)

type options struct {
	idleRetention time.Duration
	endedGrace    time.Duration
	dryRun        bool
}

func purgeArgs(now time.Time, opts options) pgx.NamedArgs {
	return pgx.NamedArgs{
		"ended":        string(room.StatusEnded),
		"ended_before": now.Add(-opts.endedGrace),
		"idle_before":  now.Add(-opts.idleRetention),
	}
}

func parseOptions(args []string) (options, error) {
	defaults := config.Default().Room

	fs := flag.NewFlagSet("purge_rooms", flag.ContinueOnError)
	opts := options{}
	fs.DurationVar(&opts.idleRetention, "idle-retention", defaults.IdleRetention, "delete rooms not updated for this long")
	fs.DurationVar(&opts.endedGrace, "ended-grace", defaults.EndedGrace, "delete ended rooms not updated for this long")
	fs.BoolVar(&opts.dryRun, "dry-run", false, "only count the rooms that would be deleted")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	return opts, nil
}

func main() {
	_ = godotenv.Load()
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	opts, err := parseOptions(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	cfg := dbconfig.NewConfigFromEnv()
	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		log.Fatal().Err(err).Str("database", cfg.Name()).Msg("connect error")
	}
	defer pool.Close()

	args := purgeArgs(time.Now(), opts)

	if opts.dryRun {
		var n int64
		if err := pool.QueryRow(ctx, countQuery, args).Scan(&n); err != nil {
			log.Fatal().Err(err).Msg("count rooms")
		}
		log.Info().Int64("rooms", n).Msg("rooms eligible for purge")
		return
	}

	tag, err := pool.Exec(ctx, purgeQuery, args)
	if err != nil {
		log.Fatal().Err(err).Msg("purge rooms")
	}
	log.Info().
		Int64("deleted", tag.RowsAffected()).
		Dur("idle_retention", opts.idleRetention).
		Dur("ended_grace", opts.endedGrace).
		Msg("purge complete")
}
