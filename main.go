package main

import (
	"context"
	"flag"
	"os"

	"github.com/lintang-b-s/osm-tile-graph-builder/pkg/config"
	"github.com/lintang-b-s/osm-tile-graph-builder/pkg/graphbuilder"
	"github.com/lintang-b-s/osm-tile-graph-builder/pkg/logger"
	"github.com/lintang-b-s/osm-tile-graph-builder/pkg/osmparser"
	"github.com/lintang-b-s/osm-tile-graph-builder/pkg/tagtransform"
)

func main() {
	configPath := flag.String("config", "./config.yaml", "path to the builder config tree")
	pbfPath := flag.String("pbf", "./data/planet.osm.pbf", "path to the osm pbf dump")
	flag.Parse()

	log, err := logger.New()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	cfg := config.Default()
	if _, statErr := os.Stat(*configPath); statErr == nil {
		cfg, err = config.Load(*configPath)
		if err != nil {
			log.Sugar().Fatalf("loading config: %v", err)
		}
	}

	transform, err := tagtransform.FromConfig(cfg.TagTransform)
	if err != nil {
		log.Sugar().Fatalf("initializing tag transform: %v", err)
	}

	builder := graphbuilder.New(cfg, transform, log)
	if err := builder.Build(context.Background(), osmparser.NewPBFSource(*pbfPath)); err != nil {
		log.Sugar().Fatalf("build failed: %v", err)
	}
	log.Info("build finished")
}
