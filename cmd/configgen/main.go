package main

import (
	"flag"

	"github.com/danmuck/scramctl/internal/config"
	"github.com/danmuck/scramctl/internal/logging"
	"github.com/rs/zerolog/log"
)

func main() {
	kind := flag.String("kind", config.KindScramctl, "config kind: scramctl|inventory")
	output := flag.String("output", "", "output path for config template")
	validate := flag.Bool("validate", false, "validate an existing config file")
	input := flag.String("input", "", "config path for validation (defaults to per-kind path)")
	force := flag.Bool("force", false, "overwrite existing config file")
	flag.Parse()

	logging.ConfigureRuntime()

	if *validate {
		path := *input
		if path == "" {
			path = defaultPath(*kind)
		}

		switch *kind {
		case config.KindScramctl:
			if _, err := config.CheckFile(path); err != nil {
				log.Fatal().Err(err).Msg("configgen validate failed")
			}
		case config.KindInventory:
			if _, err := config.LoadInventory(path); err != nil {
				log.Fatal().Err(err).Msg("configgen validate failed")
			}
		}
		log.Info().Str("kind", *kind).Str("path", path).Msg("configgen validated")
		return
	}

	target := *output
	if target == "" {
		target = defaultPath(*kind)
	}

	if err := config.WriteTemplate(target, *kind, *force); err != nil {
		log.Fatal().Err(err).Msg("configgen write failed")
	}
	log.Info().Str("kind", *kind).Str("path", target).Msg("configgen wrote template")
}

func defaultPath(kind string) string {
	switch kind {
	case config.KindScramctl:
		return "cmd/scramctl/config.toml"
	case config.KindInventory:
		return "cmd/scramctl/inventory.toml"
	default:
		log.Fatal().Str("kind", kind).Msg("configgen unknown kind")
		return ""
	}
}
