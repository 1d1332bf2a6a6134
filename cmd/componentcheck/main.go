// componentcheck validates the controller components of a service
// configuration offline and optionally runs one calculation cycle on file data.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/nergy-se/controlkit/pkg/api/v1/config"
	"github.com/nergy-se/controlkit/pkg/component"
	"github.com/nergy-se/controlkit/pkg/component/builtin"
	"github.com/nergy-se/controlkit/pkg/connection/file"
	"github.com/nergy-se/controlkit/pkg/entity"
	"github.com/sirupsen/logrus"
)

func main() {
	configFile := flag.String("config", "config.json", "service configuration")
	staticFile := flag.String("static", "static_data.json", "static data file")
	inputFile := flag.String("input", "", "input data file (json or csv), runs one cycle if set")
	list := flag.Bool("list", false, "list registered component types and their schemas")
	debug := flag.Bool("debug", false, "debug logging")
	flag.Parse()

	if *debug {
		logrus.SetLevel(logrus.DebugLevel)
	}

	registry := builtin.Registry()
	if *list {
		listTypes(registry)
		return
	}

	err := run(registry, *configFile, *staticFile, *inputFile)
	if err != nil {
		log.Fatal(err)
	}
}

func listTypes(r *component.Registry) {
	for _, t := range r.Types() {
		fmt.Println(t)
		for _, kind := range []component.SchemaKind{component.SchemaInput, component.SchemaOutput, component.SchemaConfig, component.SchemaStaticData} {
			s, err := r.ResolveSchema(t, kind)
			if err != nil || s == nil {
				continue
			}
			fmt.Printf("  %s: %s\n", component.SchemaName(t, kind), strings.Join(s.FieldNames(), ", "))
		}
	}
}

// run reads every entity through the file connection regardless of its configured interface.
func run(r *component.Registry, configFile, staticFile, inputFile string) error {
	svc, err := config.LoadServiceConfig(configFile)
	if err != nil {
		return err
	}

	ctx := context.Background()
	conn := file.New(inputFile, staticFile, os.TempDir())
	read := func(entities []config.Entity) []entity.Entity {
		out := make([]entity.Entity, 0, len(entities))
		for _, e := range entities {
			read, err := conn.Read(ctx, e)
			if err != nil {
				logrus.WithField("entity", e.ID).Debugf("not found: %s", err)
				continue
			}
			out = append(out, read)
		}
		return out
	}

	static := read(svc.StaticData)
	var components []*component.Component
	var failed int
	for _, cfg := range svc.ControllerComponents {
		if !cfg.IsActive() {
			fmt.Printf("%s: inactive\n", cfg.ID)
			continue
		}
		c, err := component.New(r, cfg, static)
		if err != nil {
			failed++
			fmt.Printf("%s: %s\n", cfg.ID, err)
			continue
		}
		fmt.Printf("%s: ok (%s)\n", c.ID(), c.Type())
		components = append(components, c)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d components are invalid", failed, len(svc.ControllerComponents))
	}
	if inputFile == "" {
		return nil
	}

	snapshot := entity.Snapshot{
		InputEntities:  read(svc.Inputs),
		StaticEntities: static,
	}
	var wbs []entity.WriteBack
	for _, c := range components {
		out, err := c.Run(snapshot)
		if err != nil {
			return err
		}
		wbs = append(wbs, out...)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(wbs)
}
